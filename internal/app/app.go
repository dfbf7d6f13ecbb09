package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/api/rest"
	"github.com/Dhoini/subscription-commerce/internal/api/rest/handlers"
	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/kafka"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/middleware"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/internal/repository/memory"
	"github.com/Dhoini/subscription-commerce/internal/repository/postgres"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/internal/storage"
	"github.com/Dhoini/subscription-commerce/internal/worker"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const systemMetricsInterval = 15 * time.Second

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config   *config.Config
	Router   *gin.Engine
	Registry *prometheus.Registry

	server   *rest.Server
	events   *service.EventDispatcher
	producer kafka.Producer
	consumer *kafka.Consumer
	system   *metrics.SystemMetrics
	log      *logger.Logger

	// closers освобождают ресурсы в обратном порядке
	closers []func()
}

// repos - репозитории выбранного драйвера хранения
type repos struct {
	orders        repository.OrderRepository
	subscriptions repository.SubscriptionRepository
	tx            repository.Transactor
	plans         repository.PlanRepository
	services      repository.ServiceRepository
	users         repository.UserRepository
	admins        repository.AdminRepository
	verifications repository.VerificationRepository
	denylist      repository.TokenDenylist
	ready         map[string]handlers.Pinger
}

// New собирает приложение. Внешние клиенты создаются только если настроены.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, log: log}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Registry = registry
	commerceMetrics := metrics.NewCommerceMetrics(registry)
	a.system = metrics.NewSystemMetrics(registry, log)

	r, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// Кеш каталога и списков подписок, хранилище отозванных refresh токенов
	basePlans := r.plans
	var cacheInvalidator service.BuyerCacheInvalidator
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.CacheTTL, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := cache.Close(); err != nil {
				log.Errorw("Error closing Redis connection", "error", err)
			}
		})
		cachedSubs := repository.NewCachedSubscriptionRepository(r.subscriptions, cache, log)
		r.subscriptions = cachedSubs
		r.plans = repository.NewCachedPlanRepository(r.plans, cache, log)
		r.denylist = cache
		r.ready["redis"] = cache
		cacheInvalidator = cachedSubs
		log.Infow("Redis cache enabled", "addr", cfg.Redis.Addr)
	} else if r.denylist == nil {
		log.Warnw("Redis is not configured, revoked refresh tokens are kept in process memory")
		r.denylist = memory.NewStore()
	}

	if err := a.openKafka(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.events = service.NewEventDispatcher(a.producer, log.Named("events"))

	mailer, err := newMailer(cfg.Mail, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	uploader, err := newUploader(ctx, cfg.Storage, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	verifier, err := newIdentityVerifier(ctx, cfg.Firebase, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Kafka.NotifierEnabled && len(cfg.Kafka.Brokers) > 0 {
		notifier := worker.NewReceiptNotifier(r.users, mailer, log)
		consumer, err := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, notifier.Handle, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.consumer = consumer
	}

	gw := gateway.NewRazorpayGateway(cfg.Razorpay, log)
	tokens := auth.NewTokenManager(cfg.Auth)

	ledger := service.NewOrderLedger(r.orders, r.users, basePlans, gw, commerceMetrics, cfg.Razorpay.DefaultCurr, log)
	activator := service.NewActivationService(service.ActivationDeps{
		Ledger:        ledger,
		Orders:        r.orders,
		Subscriptions: r.subscriptions,
		Transactor:    r.tx,
		Plans:         basePlans,
		Gateway:       gw,
		Signer:        gateway.NewSigner(cfg.Razorpay.KeySecret),
		Events:        a.events,
		Cache:         cacheInvalidator,
		Metrics:       commerceMetrics,
		Timeout:       cfg.Razorpay.Timeout,
	}, log)
	subscriptions := service.NewSubscriptionService(r.subscriptions, r.plans, a.events, commerceMetrics, log)
	users := service.NewUserService(service.UserDeps{
		Users:         r.users,
		Verifications: r.verifications,
		Subscriptions: r.subscriptions,
		Denylist:      r.denylist,
		Tokens:        tokens,
		Mailer:        mailer,
		Identity:      verifier,
	}, log)
	admins := service.NewAdminService(r.admins, tokens, mailer, log)
	plans := service.NewPlanService(r.plans, r.services, log)
	catalog := service.NewCatalogService(r.services, uploader, log)

	a.Router = rest.SetupRouter(rest.Handlers{
		Payment:      handlers.NewPaymentHandler(ledger, activator, log),
		Subscription: handlers.NewSubscriptionHandler(subscriptions, cfg.Subscriptions.SelfServiceUpsert, log),
		User:         handlers.NewUserHandler(users, cfg.Auth, log),
		Admin:        handlers.NewAdminHandler(admins, subscriptions, log),
		Plan:         handlers.NewPlanHandler(plans, log),
		Services:     handlers.NewServicesHandler(catalog, cfg.Storage.MaxUploadBytes, log),
		Auth:         middleware.NewJWTMiddleware(tokens, log),
		Ready:        r.ready,
	}, registry, commerceMetrics, log)
	a.server = rest.NewServer(a.Router, cfg.App, log)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) (*repos, error) {
	if a.Config.Database.Driver == "memory" {
		a.log.Warnw("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &repos{
			orders:        store.Orders(),
			subscriptions: store.Subscriptions(),
			tx:            store,
			plans:         store.Plans(),
			services:      store.Services(),
			users:         store.Users(),
			admins:        store.Admins(),
			verifications: store.Verifications(),
			denylist:      store,
			ready:         map[string]handlers.Pinger{},
		}, nil
	}

	pool, err := postgres.NewConnection(ctx, a.Config.Database, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if a.Config.Database.Migrate {
		if err := postgres.Migrate(ctx, pool, a.log); err != nil {
			return nil, err
		}
	}

	db := postgres.NewSQLX(pool)
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			a.log.Errorw("Error closing sqlx connection", "error", err)
		}
	})
	store := postgres.NewStore(pool, a.log)
	return &repos{
		orders:        store.Orders(),
		subscriptions: store.Subscriptions(),
		tx:            store,
		plans:         postgres.NewPlanRepository(db, a.log),
		services:      postgres.NewServiceRepository(db, a.log),
		users:         postgres.NewUserRepository(db, a.log),
		admins:        postgres.NewAdminRepository(db, a.log),
		verifications: postgres.NewVerificationRepository(db),
		ready:         map[string]handlers.Pinger{"postgres": pool},
	}, nil
}

func (a *App) openKafka(ctx context.Context) error {
	brokers := a.Config.Kafka.Brokers
	if len(brokers) == 0 {
		a.log.Warnw("Kafka is not configured, subscription events are not published")
		a.producer = kafka.NopProducer{}
		return nil
	}
	if a.Config.Kafka.EnsureTopics {
		if err := kafka.EnsureKafkaTopics(ctx, brokers, a.log); err != nil {
			// Топики могли создать заранее, продюсер сообщит о реальной проблеме
			a.log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
	}
	producer, err := kafka.NewKafkaProducer(brokers, a.log)
	if err != nil {
		return fmt.Errorf("failed to create kafka producer: %w", err)
	}
	a.producer = producer
	return nil
}

func newMailer(cfg config.MailConfig, log *logger.Logger) (mail.Sender, error) {
	if cfg.ServerToken == "" {
		log.Warnw("Postmark is not configured, e-mails are written to the log")
		return mail.NewLogSender(log), nil
	}
	return mail.NewPostmarkSender(cfg)
}

func newUploader(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (storage.Uploader, error) {
	if cfg.Bucket == "" {
		log.Warnw("S3 bucket is not configured, logos are kept in memory")
		return storage.NewMemoryUploader(cfg.PublicBaseURL), nil
	}
	return storage.NewS3Uploader(ctx, cfg)
}

func newIdentityVerifier(ctx context.Context, cfg config.FirebaseConfig, log *logger.Logger) (identity.Verifier, error) {
	if cfg.ProjectID == "" && cfg.CredentialsFile == "" {
		log.Warnw("Firebase is not configured, Google sign-in is disabled")
		return identity.DisabledVerifier{}, nil
	}
	return identity.NewFirebaseVerifier(ctx, cfg)
}

// Run запускает HTTP сервер и фоновые задачи и блокируется до отмены ctx
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.system.Run(bgCtx, systemMetricsInterval)
	}()

	if a.consumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.consumer.Run(bgCtx); err != nil {
				a.log.Errorw("Receipt notifier stopped", "error", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.server.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Infow("Shutdown signal received")
	case err := <-serverErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.App.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Errorw("HTTP server shutdown error", "error", err)
	}

	stopBackground()
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.log.Errorw("Error closing Kafka consumer", "error", err)
		}
	}
	wg.Wait()
	return runErr
}

// Close дожидается отправки событий и освобождает ресурсы
func (a *App) Close() {
	a.events.Wait()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Errorw("Error closing Kafka producer", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
