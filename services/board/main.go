package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"

	"github.com/dinesync/dinesync/pkg"
	"github.com/dinesync/dinesync/services/board/internal/board"
	"github.com/dinesync/dinesync/services/board/internal/cache"
)

const (
	appNamespace = "BOARD"
	appName      = "board"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	var lifecycles []interface{}

	// Durable cache: Redis when configured, in-memory otherwise. The board
	// still works cacheless, it just starts cold after a restart.
	var store cache.Store
	redisURL, _ := config.GetString("cache.redis.url")
	if redisURL != "" {
		redisStore, err := cache.NewRedisFromURL(redisURL, logger)
		if err != nil {
			log.Fatalf("%s(%s) invalid cache.redis.url: %v", appName, appVersion, err)
		}
		if err := redisStore.Start(ctx); err != nil {
			log.Fatalf("%s(%s) cannot connect to Redis: %v", appName, appVersion, err)
		}
		lifecycles = append(lifecycles, apt.LifecycleHooks{OnStop: redisStore.Stop})
		store = redisStore
	} else {
		logger.Info("no cache.redis.url configured, using in-memory cache")
		store = cache.NewMemory()
	}

	orderServiceURL := config.GetStringOrDef("services.order.url", "http://localhost:8081")
	orderDA := board.NewOrderDataAccess(apt.NewServiceClient(orderServiceURL))

	// Optional JetStream replay for cold starts when the order service is down.
	var stream events.StreamConsumer
	if enabled, _ := config.GetString("events.stream.enabled"); enabled == "true" {
		natsStream, err := pkg.NewNATSStream(pkg.NATSStreamConfig{
			URL:          config.GetStringOrDef("nats.url", "nats://localhost:4222"),
			StreamName:   "ORDER_EVENTS",
			Topic:        "orders.lifecycle",
			ConsumerName: "board-replay",
			MaxAge:       24 * time.Hour,
		})
		if err != nil {
			logger.Error("cannot set up stream replay, continuing without", "error", err)
		} else {
			lifecycles = append(lifecycles, apt.LifecycleHooks{
				OnStop: func(context.Context) error { return natsStream.Close() },
			})
			stream = natsStream
		}
	}

	session := board.NewSession(store, logger)
	cart := board.NewCart(store, logger)
	registry := board.NewRegistry(store, orderDA, stream, logger)
	ledger := board.NewLedger(store, orderDA, logger)
	notifications := board.NewNotifications()
	submitter := board.NewSubmitter(orderDA, cart, session, registry, logger)
	broadcaster := board.NewBroadcaster(logger)

	natsURL := config.GetStringOrDef("nats.url", "nats://localhost:4222")
	sub, err := pkg.NewNATSSubscriber(natsURL)
	if err != nil {
		log.Fatalf("%s(%s) cannot connect to NATS: %v", appName, appVersion, err)
	}

	eventSubscriber := board.NewEventSubscriber(sub, registry, ledger, notifications, broadcaster, logger)

	lifecycles = append(lifecycles,
		apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error {
				session.Warm(ctx)
				cart.Use(ctx, session.TableKey())
				registry.Warm(ctx)
				ledger.Warm(ctx)
				return eventSubscriber.Start(ctx)
			},
			OnStop: func(context.Context) error { return sub.Close() },
		},
		apt.LifecycleHooks{OnStop: broadcaster.Stop},
	)

	hd := board.HandlerDeps{
		Session:       session,
		Cart:          cart,
		Registry:      registry,
		Ledger:        ledger,
		Notifications: notifications,
		Submitter:     submitter,
		OrderSvc:      orderDA,
	}

	handler := board.NewHandler(hd, config, logger)
	handler.SetSSEHandler(board.NewSSEHandler(broadcaster, logger))

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger: logger,
	})

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", handler),
		apt.WithLifecycle(lifecycles...),
		apt.WithHealthChecks(appName),
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	err = ms.Run(ctx)
	if err != nil {
		log.Fatalf("%s(%s) stopped: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
