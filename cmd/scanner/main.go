// Package main is the packing station CLI. It scans item labels with a
// camera, packs matching items, and follows live order changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/config"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/logger"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/scanner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	serverURL string
	device    string
	imagePath string
	logLevel  string
)

func main() {
	flag.StringVar(&serverURL, "server", "", "Order API base URL (default: scanner.server_url)")
	flag.StringVar(&device, "device", "", "V4L2 device path (default: scanner.device)")
	flag.StringVar(&imagePath, "image", "", "Scan a PNG or JPEG file instead of a camera")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "15:04:05",
		Service:    "scanner",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "label":
		err = runLabel(args[1:])
	case "pack", "watch":
		var cfg *config.Config
		cfg, err = config.Load()
		if err != nil {
			break
		}
		if serverURL != "" {
			cfg.Scanner.ServerURL = serverURL
		}
		if device != "" {
			cfg.Scanner.Device = device
		}
		if args[0] == "pack" {
			err = runPack(ctx, cfg, log, args[1:])
		} else {
			err = runWatch(ctx, cfg, log, args[1:])
		}
	default:
		err = fmt.Errorf("unknown command %q", args[0])
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Command failed", zap.String("command", args[0]), zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
}

// runPack scans every unpacked item of one order in turn. Items packed
// elsewhere while waiting are skipped, and a running scan for such an item
// is cancelled.
func runPack(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	orderFlag := fs.String("order", "", "Order ID to pack (required)")
	_ = fs.Parse(args)

	orderID, err := uuid.Parse(*orderFlag)
	if err != nil {
		return fmt.Errorf("invalid --order %q: %w", *orderFlag, err)
	}

	api, err := client.NewAPI(cfg.Scanner.ServerURL, log)
	if err != nil {
		return err
	}

	cache := client.NewOrderCache(api, log)
	order, err := cache.Watch(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	defer cache.Wait()

	controller := scanner.NewController(scanner.Constraints{
		Facing: scanner.FacingEnvironment,
		Width:  cfg.Scanner.Width,
		Height: cfg.Scanner.Height,
	}, log, cameraSources(cfg, log)...)
	station := scanner.NewStation(controller, api, scanner.NewLogNotifier(log), scanner.SessionConfig{
		FPS:             cfg.Scanner.FPS,
		Cooldown:        cfg.Scanner.Cooldown,
		MutationTimeout: cfg.Scanner.MutationTimeout,
	}, log)
	defer station.Close()

	cache.OnUpdate(func(o client.Order) {
		sess := station.Current()
		if sess == nil || o.ID != orderID {
			return
		}
		if item, ok := o.Item(sess.Target().ProductID); ok && item.Fulfilled {
			log.Info("Item packed at another station", zap.String("sku", item.SKU))
			sess.Cancel()
		}
	})

	liveCtx, stopLive := context.WithCancel(ctx)
	defer stopLive()
	go runLive(liveCtx, api, cache, cfg, log)

	targets := scanner.PendingTargets(order)
	if len(targets) == 0 {
		log.Info("Order already fully packed", zap.String("order_number", order.OrderNumber))
		return nil
	}

	for _, target := range targets {
		if current, _, ok := cache.Get(orderID); ok {
			if item, found := current.Item(target.ProductID); found && item.Fulfilled {
				continue
			}
		}

		log.Info("Scan item",
			zap.String("order_number", target.OrderNumber),
			zap.String("sku", target.SKU),
			zap.String("product", target.ProductName),
		)
		result, err := station.Scan(ctx, target)
		if err != nil {
			return fmt.Errorf("scan %s: %w", target.SKU, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if result.Cancelled {
			continue
		}
		if result.Order != nil && result.Order.FullyPacked {
			break
		}
	}

	final, err := api.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	log.Info("Packing finished",
		zap.String("order_number", final.OrderNumber),
		zap.Int("packed", final.PackedCount),
		zap.Int("items", len(final.Items)),
		zap.Bool("fully_packed", final.FullyPacked),
	)
	return nil
}

// runWatch follows orders and logs every refresh without mutating anything
func runWatch(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	status := fs.String("status", "pending", "Watch every order with this status")
	_ = fs.Parse(args)

	api, err := client.NewAPI(cfg.Scanner.ServerURL, log)
	if err != nil {
		return err
	}
	cache := client.NewOrderCache(api, log)
	defer cache.Wait()

	watchList := func() {
		orders, err := api.ListOrders(ctx, client.ListOrdersOptions{Status: *status, PageSize: 100})
		if err != nil {
			log.Warn("List orders failed", zap.Error(err))
			return
		}
		for _, o := range orders {
			if _, _, ok := cache.Get(o.ID); ok {
				continue
			}
			if _, err := cache.Watch(ctx, o.ID); err != nil {
				log.Warn("Watch order failed", zap.String("order_id", o.ID.String()), zap.Error(err))
			}
		}
		log.Info("Watching orders", zap.Int("count", len(cache.Watched())))
	}

	cache.OnUpdate(func(o client.Order) {
		log.Info("Order refreshed",
			zap.String("order_number", o.OrderNumber),
			zap.String("status", o.Status),
			zap.Int("packed", o.PackedCount),
			zap.Int("items", len(o.Items)),
		)
	})
	cache.OnListStale(func() {
		if cache.ListStale() {
			watchList()
		}
	})

	watchList()
	runLive(ctx, api, cache, cfg, log)
	return nil
}

func runLive(ctx context.Context, api *client.API, cache *client.OrderCache, cfg *config.Config, log *zap.Logger) {
	live := client.NewLiveClient(client.LiveConfig{
		URL:         client.LiveURL(api.BaseURL(), cfg.Live.Path),
		ReadTimeout: 2 * cfg.Live.HeartbeatInterval,
		OnState: func(state client.ConnState, err error) {
			if err != nil {
				log.Warn("Live channel", zap.Stringer("state", state), zap.Error(err))
				return
			}
			log.Info("Live channel", zap.Stringer("state", state))
		},
	}, api, cache, log)
	if err := live.Run(ctx); err != nil {
		log.Error("Live channel stopped", zap.Error(err))
	}
}

// runLabel renders a scannable QR label for a SKU
func runLabel(args []string) error {
	fs := flag.NewFlagSet("label", flag.ExitOnError)
	text := fs.String("text", "", "Label payload, usually the SKU (required)")
	out := fs.String("out", "label.png", "Output PNG path")
	size := fs.Int("size", 300, "Label size in pixels")
	_ = fs.Parse(args)

	if *text == "" {
		return errors.New("--text is required")
	}
	img, err := scanner.RenderQR(*text, *size)
	if err != nil {
		return fmt.Errorf("render label: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%s)\n", *out, *text)
	return nil
}

func cameraSources(cfg *config.Config, log *zap.Logger) []scanner.Source {
	if imagePath != "" {
		return []scanner.Source{scanner.NewImageFileSource(imagePath)}
	}
	return []scanner.Source{scanner.NewV4L2Source(cfg.Scanner.Device, scanner.FacingEnvironment, log)}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Packing station client

Usage:
  scanner [flags] <command> [command flags]

Commands:
  pack   --order <id>        Scan and pack every unpacked item of an order
  watch  [--status pending]  Follow orders live and log every refresh
  label  --text <sku>        Render a QR label PNG (--out, --size)

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Configuration is read from config.toml and DOOBIE_ environment variables
(scanner.server_url, scanner.device, scanner.fps, scanner.cooldown).
`)
}
