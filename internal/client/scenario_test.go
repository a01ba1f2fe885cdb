package client_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ResonantCEO/Doobie-Division-sub002/internal/application/fulfillment"
	notificationapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/notification"
	orderapp "github.com/ResonantCEO/Doobie-Division-sub002/internal/application/order"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/client"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/broadcast"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/config"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/event"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/infrastructure/persistence"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/handler"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/middleware"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/interfaces/http/router"
	"github.com/ResonantCEO/Doobie-Division-sub002/internal/scanner"
	"github.com/cenkalti/backoff/v4"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type backend struct {
	srv    *httptest.Server
	hub    *broadcast.Hub
	orders *orderapp.Service
}

func startBackend(t *testing.T) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "scenario.db"),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	log := zap.NewNop()
	hub := broadcast.NewHub(broadcast.HubConfig{ClientBuffer: 16}, broadcast.NewLocalRelay(),
		broadcast.NewMetrics(prometheus.NewRegistry()), log)
	require.NoError(t, hub.Start(context.Background()))

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	bus := event.NewInMemoryEventBus(log)
	recorder := notificationapp.NewRecorder(notificationRepo, hub, log)
	bus.Subscribe(recorder, recorder.EventTypes()...)

	orders := orderapp.NewService(orderRepo, bus, log)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/ws", handler.NewLiveHandler(hub).Connect)
	r := router.NewRouter(engine)
	r.Register(router.OrderRoutes(handler.NewOrderHandler(orders, fulfillment.NewService(orderRepo, bus, log))))
	r.Register(router.NotificationRoutes(handler.NewNotificationHandler(notificationapp.NewService(notificationRepo, log))))
	r.Setup()

	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		srv.Close()
	})
	return &backend{srv: srv, hub: hub, orders: orders}
}

func (b *backend) createOrder(t *testing.T) *orderapp.Response {
	t.Helper()
	resp, err := b.orders.Create(context.Background(), orderapp.CreateOrderRequest{
		CustomerName: "Robin",
		Items: []orderapp.CreateOrderItemInput{
			{ProductID: 7, ProductName: "Rolling Tray", SKU: "RT-7", Quantity: 1, UnitPrice: decimal.RequireFromString("12.00")},
			{ProductID: 8, ProductName: "Lighter", SKU: "LT-8", Quantity: 2, UnitPrice: decimal.RequireFromString("1.50")},
		},
	})
	require.NoError(t, err)
	return resp
}

type updates struct {
	mu     sync.Mutex
	orders []client.Order
}

func (u *updates) add(o client.Order) {
	u.mu.Lock()
	u.orders = append(u.orders, o)
	u.mu.Unlock()
}

func (u *updates) last() (client.Order, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.orders) == 0 {
		return client.Order{}, false
	}
	return u.orders[len(u.orders)-1], true
}

// countingPacker wraps the API to prove the watching client never mutates
type countingPacker struct {
	api   *client.API
	mu    sync.Mutex
	calls int
}

func (p *countingPacker) PackItem(ctx context.Context, orderID uuid.UUID, productID int64) (*client.PackResult, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return p.api.PackItem(ctx, orderID, productID)
}

func TestScenario_ScanOnOneStationUpdatesAnother(t *testing.T) {
	b := startBackend(t)
	created := b.createOrder(t)
	log := zap.NewNop()

	// station B only watches
	apiB, err := client.NewAPI(b.srv.URL, log)
	require.NoError(t, err)
	cache := client.NewOrderCache(apiB, log)
	seen := &updates{}
	cache.OnUpdate(seen.add)

	initial, err := cache.Watch(context.Background(), created.ID)
	require.NoError(t, err)
	item, ok := initial.Item(8)
	require.True(t, ok)
	assert.False(t, item.Fulfilled)

	live := client.NewLiveClient(client.LiveConfig{
		URL:     client.LiveURL(apiB.BaseURL(), "/ws"),
		Backoff: func() backoff.BackOff { return backoff.NewConstantBackOff(20 * time.Millisecond) },
	}, apiB, cache, log)
	liveCtx, stopLive := context.WithCancel(context.Background())
	liveDone := make(chan error, 1)
	go func() { liveDone <- live.Run(liveCtx) }()
	t.Cleanup(func() {
		stopLive()
		<-liveDone
		cache.Wait()
	})
	require.Eventually(t, func() bool {
		return live.State() == client.StateConnected && b.hub.SessionCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	// station A scans the lighter's label
	apiA, err := client.NewAPI(b.srv.URL, log)
	require.NoError(t, err)
	packer := &countingPacker{api: apiA}
	label, err := scanner.RenderQR("LT-8", 200)
	require.NoError(t, err)
	controller := scanner.NewController(scanner.Constraints{Facing: scanner.FacingEnvironment}, log,
		scanner.NewImageSource("label", scanner.FacingEnvironment, label))
	cfg := scanner.DefaultSessionConfig()
	cfg.FPS = 100
	station := scanner.NewStation(controller, packer, scanner.NewLogNotifier(log), cfg, log)
	t.Cleanup(station.Close)

	order, err := apiA.GetOrder(context.Background(), created.ID)
	require.NoError(t, err)
	var target scanner.Target
	for _, candidate := range scanner.PendingTargets(order) {
		if candidate.SKU == "LT-8" {
			target = candidate
		}
	}
	require.Equal(t, int64(8), target.ProductID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := station.Scan(ctx, target)
	require.NoError(t, err)
	require.True(t, result.Packed)
	assert.True(t, result.Changed)
	assert.Nil(t, controller.Current(), "camera released after the match")

	// station B converges without issuing a mutation of its own
	require.Eventually(t, func() bool {
		o, ok := seen.last()
		if !ok {
			return false
		}
		it, _ := o.Item(8)
		return it.Fulfilled
	}, 3*time.Second, 10*time.Millisecond)

	cached, fresh, ok := cache.Get(created.ID)
	require.True(t, ok)
	assert.True(t, fresh)
	assert.Equal(t, 1, cached.PackedCount)
	tray, _ := cached.Item(7)
	assert.False(t, tray.Fulfilled)

	packer.mu.Lock()
	assert.Equal(t, 1, packer.calls)
	packer.mu.Unlock()
}
