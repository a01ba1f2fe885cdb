package scanner

import (
	"fmt"
	"image"
)

// yuyvToImage converts a packed YUYV 4:2:2 frame to an image without
// copying through RGB
func yuyvToImage(frame []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("yuyv: unsupported frame size %dx%d", width, height)
	}
	if len(frame) < width*height*2 {
		return nil, fmt.Errorf("yuyv: short frame: %d bytes for %dx%d", len(frame), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := frame[y*width*2 : (y+1)*width*2]
		for i := 0; i < width/2; i++ {
			px := row[i*4 : i*4+4]
			img.Y[y*img.YStride+2*i] = px[0]
			img.Cb[y*img.CStride+i] = px[1]
			img.Y[y*img.YStride+2*i+1] = px[2]
			img.Cr[y*img.CStride+i] = px[3]
		}
	}
	return img, nil
}

// closestSize picks the supported size nearest to the requested one by area
func closestSize(sizes [][2]int, width, height int) (int, int, bool) {
	if len(sizes) == 0 {
		return 0, 0, false
	}
	want := width * height
	best := sizes[0]
	bestDiff := abs(best[0]*best[1] - want)
	for _, s := range sizes[1:] {
		if d := abs(s[0]*s[1] - want); d < bestDiff {
			best, bestDiff = s, d
		}
	}
	return best[0], best[1], true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
