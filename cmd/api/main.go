package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"sakanect/internal/adapter/api"
	"sakanect/internal/adapter/api/handler"
	apimiddleware "sakanect/internal/adapter/api/middleware"
	"sakanect/internal/adapter/api/router"
	"sakanect/internal/adapter/repository"
	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/adapter/repository/postgres"
	domainrepo "sakanect/internal/domain/repository"
	"sakanect/internal/domain/service"
	"sakanect/internal/infrastructure/firebase"
	"sakanect/internal/infrastructure/jwtauth"
	"sakanect/internal/infrastructure/listingapi"
	"sakanect/internal/infrastructure/lock"
	"sakanect/internal/infrastructure/ratelimit"
	"sakanect/internal/infrastructure/websocket"
	"sakanect/internal/usecase"
	"sakanect/pkg/config"
	"sakanect/pkg/logger"
)

type stores struct {
	listings      domainrepo.ListingRepository
	offers        domainrepo.OfferRepository
	sagas         domainrepo.OfferSagaRepository
	transactions  domainrepo.TransactionRepository
	conversations domainrepo.ConversationRepository
	notifications domainrepo.NotificationRepository
	users         domainrepo.UserRepository
	marketPrices  domainrepo.MarketPriceRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Configure(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.HealthCheck{}

	var (
		firebaseApp     *fbapp.App
		firestoreClient *firestore.Client
	)
	if cfg.StoreBackend == "firestore" || cfg.AuthMode == "firebase" {
		opt := firebaseCredentials(cfg)
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase: %v", err)
		}
		if cfg.StoreBackend == "firestore" {
			firestoreClient, err = firestore.NewClient(ctx, cfg.FirebaseProject, opt)
			if err != nil {
				logger.Fatal("Failed to create Firestore client: %v", err)
			}
			defer firestoreClient.Close()
			checks["firestore"] = func(ctx context.Context) error {
				_, err := firestoreClient.Collection("listings").Limit(1).Documents(ctx).Next()
				if errors.Is(err, iterator.Done) {
					return nil
				}
				return err
			}
		}
	}

	var st stores
	switch cfg.StoreBackend {
	case "firestore":
		st = stores{
			listings:      repository.NewFirestoreListingRepository(firestoreClient),
			offers:        repository.NewFirestoreOfferRepository(firestoreClient),
			sagas:         repository.NewFirestoreOfferSagaRepository(firestoreClient),
			transactions:  repository.NewFirestoreTransactionRepository(firestoreClient),
			conversations: repository.NewFirestoreConversationRepository(firestoreClient),
			notifications: repository.NewFirestoreNotificationRepository(firestoreClient),
			users:         repository.NewFirestoreUserRepository(firestoreClient),
			marketPrices:  repository.NewFirestoreMarketPriceRepository(firestoreClient),
		}
	case "memory":
		logger.Warn("Using in-memory stores; data is lost on restart")
		st = stores{
			listings:      memory.NewListingRepository(),
			offers:        memory.NewOfferRepository(),
			sagas:         memory.NewOfferSagaRepository(),
			transactions:  memory.NewTransactionRepository(),
			conversations: memory.NewConversationRepository(),
			notifications: memory.NewNotificationRepository(),
			users:         memory.NewUserRepository(),
			marketPrices:  memory.NewMarketPriceRepository(),
		}
	default:
		logger.Fatal("Unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch cfg.ListingBackend {
	case "store":
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Failed to connect to Postgres: %v", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("Failed to prepare listings schema: %v", err)
		}
		st.listings = postgres.NewListingRepository(pool)
		checks["postgres"] = pool.Ping
	case "http":
		if cfg.ListingAPIURL == "" {
			logger.Fatal("LISTING_API_URL is required when LISTING_BACKEND=http")
		}
		st.listings = listingapi.NewClient(cfg.ListingAPIURL, cfg.ListingAPIRPS, cfg.HTTPClientTimeout)
	default:
		logger.Fatal("Unknown LISTING_BACKEND %q", cfg.ListingBackend)
	}

	var verifier apimiddleware.TokenVerifier
	switch cfg.AuthMode {
	case "firebase":
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)
	case "jwt":
		verifier = jwtauth.NewVerifier(cfg.JWTSecret)
	default:
		logger.Fatal("Unknown AUTH_MODE %q", cfg.AuthMode)
	}

	var emailSender service.EmailSender = service.NoopEmailService{}
	if cfg.EmailAPIURL != "" {
		emailSender = service.NewHTTPEmailService(cfg.EmailAPIURL, cfg.HTTPClientTimeout)
	}

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine()

	inventoryUseCase := usecase.NewInventoryUseCase(st.listings, lock.NewKeyedMutex())
	notificationUseCase := usecase.NewNotificationUseCase(st.notifications, st.users, wsManager, emailSender)
	chatUseCase := usecase.NewChatUseCase(st.conversations, st.users, wsManager, rateLimiter)
	offerUseCase := usecase.NewOfferUseCase(
		st.offers,
		st.sagas,
		st.transactions,
		st.listings,
		inventoryUseCase,
		chatUseCase,
		notificationUseCase,
		wsManager,
		rateLimiter,
		cfg.SagaLease,
	)
	offerUseCase.StartDeferredSweep(ctx, cfg.SagaSweepInterval)
	transactionUseCase := usecase.NewTransactionUseCase(st.transactions, notificationUseCase)
	listingUseCase := usecase.NewListingUseCase(st.listings, inventoryUseCase)
	marketPriceUseCase := usecase.NewMarketPriceUseCase(st.marketPrices)
	userUseCase := usecase.NewUserUseCase(st.users)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: cfg.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	ipLimiter := apimiddleware.NewIPRateLimiter(120, time.Minute)
	ipLimiter.StartCleanup(ctx, 2*time.Hour)
	e.Use(ipLimiter.Middleware())

	e.Validator = api.NewValidator()

	router.Setup(e, handler.Handlers{
		Health:       handler.NewHealthHandler(checks),
		Listing:      handler.NewListingHandler(listingUseCase),
		Chat:         handler.NewChatHandler(chatUseCase),
		Offer:        handler.NewOfferHandler(offerUseCase),
		Transaction:  handler.NewTransactionHandler(transactionUseCase),
		Notification: handler.NewNotificationHandler(notificationUseCase),
		MarketPrice:  handler.NewMarketPriceHandler(marketPriceUseCase),
		User:         handler.NewUserHandler(userUseCase),
		WebSocket:    handler.NewWebSocketHandler(wsManager, cfg.AllowedOrigins),
	}, apimiddleware.NewAuthMiddleware(verifier))

	go func() {
		logger.WithFields(logger.Fields{
			"port":            cfg.ServerPort,
			"store_backend":   cfg.StoreBackend,
			"listing_backend": cfg.ListingBackend,
			"auth_mode":       cfg.AuthMode,
		}).Info("Starting server")
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// firebaseCredentials prefers inline JSON (production) over a key file
// (local development).
func firebaseCredentials(cfg *config.Config) option.ClientOption {
	if cfg.FirebaseServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return option.WithCredentialsJSON([]byte(cfg.FirebaseServiceAccountJSON))
	}

	if _, err := os.Stat(cfg.FirebaseServiceAccountPath); os.IsNotExist(err) {
		logger.Fatal("Service account file does not exist: %s", cfg.FirebaseServiceAccountPath)
	}
	logger.Info("Using Firebase service account from file: %s", cfg.FirebaseServiceAccountPath)
	return option.WithCredentialsFile(cfg.FirebaseServiceAccountPath)
}
