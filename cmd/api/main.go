package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fieldline/customer-api/internal/handlers"
	"github.com/fieldline/customer-api/internal/payments"
	"github.com/fieldline/customer-api/internal/platform/auth"
	"github.com/fieldline/customer-api/internal/platform/config"
	"github.com/fieldline/customer-api/internal/platform/events"
	pfieldservice "github.com/fieldline/customer-api/internal/platform/fieldservice"
	pfirestore "github.com/fieldline/customer-api/internal/platform/firestore"
	"github.com/fieldline/customer-api/internal/platform/idempotency"
	"github.com/fieldline/customer-api/internal/platform/observability"
	"github.com/fieldline/customer-api/internal/platform/planpricing"
	"github.com/fieldline/customer-api/internal/platform/secrets"
	platformstorage "github.com/fieldline/customer-api/internal/platform/storage"
	"github.com/fieldline/customer-api/internal/repositories"
	fieldserviceRepo "github.com/fieldline/customer-api/internal/repositories/fieldservice"
	firestoreRepo "github.com/fieldline/customer-api/internal/repositories/firestore"
	"github.com/fieldline/customer-api/internal/services"
)

const (
	webhookSourceFieldService = "fieldservice"
	archiveHTTPTimeout        = 30 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		logger.Fatal("failed to read environment values", zap.Error(err))
	}

	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
		config.WithRequiredSecrets(requiredSecretNames(envValues)...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}
	if strings.TrimSpace(cfg.Storage.DocumentsBucket) == "" {
		logger.Fatal("documents bucket is required")
	}

	buildInfo := buildInfoFromEnv(envValues, cfg, startedAt)
	serviceLogger := services.Logger(observability.EventLogger(logger.Named("services")))
	location := cfg.FieldService.Location()

	var firestoreOpts []pfirestore.ProviderOption
	if cfg.Firebase.CredentialsFile != "" {
		firestoreOpts = append(firestoreOpts, pfirestore.WithClientOptions(option.WithCredentialsFile(cfg.Firebase.CredentialsFile)))
	}
	firestoreProvider := pfirestore.NewProvider(cfg.Firestore, firestoreOpts...)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	fieldClient, err := pfieldservice.NewClient(pfieldservice.Config{
		BaseURL:           cfg.FieldService.BaseURL,
		AuthKey:           cfg.FieldService.AuthKey,
		AuthToken:         cfg.FieldService.AuthToken,
		Timeout:           cfg.FieldService.Timeout,
		RequestsPerSecond: cfg.FieldService.RequestsPerSecond,
		Burst:             cfg.FieldService.Burst,
	},
		pfieldservice.WithLimiter(rate.NewLimiter(rate.Limit(cfg.FieldService.RequestsPerSecond), max(cfg.FieldService.Burst, 1))),
		pfieldservice.WithLogger(logger.Named("fieldservice")),
		pfieldservice.WithMeter(otel.Meter("github.com/fieldline/customer-api/fieldservice")),
		pfieldservice.WithTracer(otel.Tracer("github.com/fieldline/customer-api/fieldservice")),
	)
	if err != nil {
		logger.Fatal("failed to initialise field-service client", zap.Error(err))
	}
	repos, err := newFieldServiceRepositories(fieldClient, location)
	if err != nil {
		logger.Fatal("failed to initialise field-service repositories", zap.Error(err))
	}

	accountRepo, err := firestoreRepo.NewAccountRepository(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise account repository", zap.Error(err))
	}

	var planCache planpricing.Cache = planpricing.NoopCache{}
	var redisCache *planpricing.RedisCache
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		redisCache, err = planpricing.NewRedisCache(ctx, planpricing.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger.Named("redis"))
		if err != nil {
			logger.Warn("plan cache disabled; redis unavailable", zap.Error(err))
		} else {
			planCache = redisCache
			defer func() {
				if err := redisCache.Close(); err != nil {
					logger.Warn("redis close error", zap.Error(err))
				}
			}()
		}
	}
	planClient, err := planpricing.NewClient(planpricing.Config{
		BaseURL:  cfg.PlanPricing.BaseURL,
		APIKey:   cfg.PlanPricing.APIKey,
		Timeout:  cfg.PlanPricing.Timeout,
		CacheTTL: cfg.PlanPricing.CacheTTL,
	}, planpricing.WithCache(planCache), planpricing.WithLogger(logger.Named("planpricing")))
	if err != nil {
		logger.Fatal("failed to initialise plan-pricing client", zap.Error(err))
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Events.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	topic := pubsubClient.Topic(cfg.Events.Topic)
	defer topic.Stop()
	publisher, err := events.NewPubSubPublisher(topic)
	if err != nil {
		logger.Fatal("failed to initialise event publisher", zap.Error(err))
	}

	stripeConfig := payments.StripeProviderConfig{
		APIKey: cfg.PSP.StripeAPIKey,
		Logger: payments.StripeLogger(observability.EventLogger(logger.Named("payments"))),
		Clock:  time.Now,
	}
	stripeProvider, err := payments.NewStripeProvider(stripeConfig)
	if err != nil {
		logger.Fatal("failed to initialise stripe payment provider", zap.Error(err))
	}
	paymentManager, err := payments.NewManager(
		map[string]payments.Provider{"stripe": stripeProvider},
		payments.WithDefaultProvider("stripe"),
	)
	if err != nil {
		logger.Fatal("failed to initialise payment manager", zap.Error(err))
	}
	cardVerifier, err := payments.NewStripePaymentMethodVerifier(stripeConfig)
	if err != nil {
		logger.Fatal("failed to initialise stripe payment verifier", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	archiver, err := platformstorage.NewArchiver(storageClient, cfg.Storage.DocumentsBucket,
		&http.Client{Timeout: archiveHTTPTimeout}, logger.Named("storage"))
	if err != nil {
		logger.Fatal("failed to initialise document archiver", zap.Error(err))
	}
	signer, err := newURLSigner(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to initialise url signer", zap.Error(err))
	}
	signedURLClient, err := platformstorage.NewClient(signer, cfg.Storage.DocumentsBucket,
		platformstorage.WithDefaultExpiry(cfg.Storage.SignedURLTTL))
	if err != nil {
		logger.Fatal("failed to initialise signed url client", zap.Error(err))
	}

	accountService, err := services.NewAccountService(services.AccountServiceDeps{
		Accounts:  accountRepo,
		Customers: repos.customers,
		Offices:   repos.offices,
		Clock:     time.Now,
		Logger:    serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise account service", zap.Error(err))
	}
	customerService, err := services.NewCustomerService(services.CustomerServiceDeps{
		Customers:       repos.customers,
		PaymentProfiles: repos.paymentProfiles,
		Logger:          serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise customer service", zap.Error(err))
	}
	appointmentService, err := services.NewAppointmentService(services.AppointmentServiceDeps{
		Appointments:  repos.appointments,
		Customers:     repos.customers,
		Spots:         repos.spots,
		Employees:     repos.employees,
		ServiceTypes:  repos.serviceTypes,
		Publisher:     publisher,
		SchedulerName: cfg.FieldService.SchedulerName,
		Clock:         time.Now,
		Logger:        serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise appointment service", zap.Error(err))
	}
	subscriptionService, err := services.NewSubscriptionService(services.SubscriptionServiceDeps{
		Subscriptions: repos.subscriptions,
		Customers:     repos.customers,
		ServiceTypes:  repos.serviceTypes,
		Publisher:     publisher,
		Clock:         time.Now,
		Logger:        serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise subscription service", zap.Error(err))
	}
	upgradeService, err := services.NewUpgradeService(services.UpgradeServiceDeps{
		Plans:               planClient,
		Subscriptions:       repos.subscriptions,
		ProPlusDifferential: cfg.Upgrades.ProPlusDifferential,
		Logger:              serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise upgrade service", zap.Error(err))
	}
	paymentService, err := services.NewPaymentService(services.PaymentServiceDeps{
		Payments:        repos.payments,
		PaymentProfiles: repos.paymentProfiles,
		Charger:         paymentManager,
		Cards:           cardVerifier,
		Publisher:       publisher,
		Clock:           time.Now,
		Logger:          serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment service", zap.Error(err))
	}
	profileService, err := services.NewPaymentProfileService(services.PaymentProfileServiceDeps{
		PaymentProfiles: repos.paymentProfiles,
		Customers:       repos.customers,
		Cards:           cardVerifier,
		Publisher:       publisher,
		Clock:           time.Now,
		Logger:          serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise payment profile service", zap.Error(err))
	}
	documentService, err := services.NewDocumentService(services.DocumentServiceDeps{
		Documents:   repos.documents,
		Contracts:   repos.contracts,
		Forms:       repos.forms,
		Archiver:    archiver,
		Signer:      signedURLClient,
		DownloadTTL: cfg.Storage.SignedURLTTL,
		Logger:      serviceLogger,
	})
	if err != nil {
		logger.Fatal("failed to initialise document service", zap.Error(err))
	}

	systemService, err := newSystemService(dependencyChecks{
		firestore:    firestoreProvider,
		fieldService: fieldClient,
		redis:        redisCache,
		topic:        topic,
		fetcher:      fetcher,
	}, buildInfo)
	if err != nil {
		logger.Warn("health: system service init failed", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithMethods(http.MethodPost),
		idempotency.WithOptionalKey(),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	var cleanupWG sync.WaitGroup
	cleanupTicker := time.NewTicker(cfg.Idempotency.CleanupInterval)
	cleanupWG.Add(1)
	go func() {
		defer cleanupWG.Done()
		cleanupLogger := logger.Named("idempotency")
		for {
			select {
			case <-cleanupTicker.C:
				runCtx, cancel := context.WithTimeout(cleanupCtx, time.Minute)
				removed, err := idempotencyStore.CleanupExpired(runCtx, time.Now().UTC(), cfg.Idempotency.CleanupBatchSize)
				cancel()
				if err != nil {
					cleanupLogger.Error("idempotency cleanup error", zap.Error(err))
					continue
				}
				if removed > 0 {
					cleanupLogger.Info("idempotency cleanup removed records", zap.Int("count", removed))
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase, 0)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)
	oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg)
	hmacMiddleware := buildHMACMiddleware(logger.Named("auth"), cfg)

	customerHandlers := handlers.NewCustomerHandlers(accountService, customerService)
	appointmentHandlers := handlers.NewAppointmentHandlers(appointmentService,
		handlers.WithAppointmentIdempotency(idempotencyMiddleware))
	subscriptionHandlers := handlers.NewSubscriptionHandlers(subscriptionService, upgradeService)
	billingHandlers := handlers.NewBillingHandlers(paymentService, profileService,
		handlers.WithBillingIdempotency(idempotencyMiddleware),
		handlers.WithBillingCustomers(customerService))
	documentHandlers := handlers.NewDocumentHandlers(documentService)
	flexIVRHandlers := handlers.NewFlexIVRHandlers(appointmentService)
	webhookHandlers := handlers.NewWebhookHandlers(planClient)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthSystemService(systemService),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCustomerMiddlewares(
			authenticator.RequireCustomer(),
			handlers.RateLimit(cfg.RateLimits.PerMinute, cfg.RateLimits.Burst, time.Now),
		),
		handlers.WithLinkRoutes(customerHandlers.LinkRoutes),
		handlers.WithAccountMiddlewares(handlers.RequireAccount(accountService)),
		handlers.WithAccountRoutes(
			customerHandlers.Routes,
			appointmentHandlers.Routes,
			subscriptionHandlers.Routes,
			billingHandlers.Routes,
			documentHandlers.Routes,
		),
		handlers.WithInternalRoutes(flexIVRHandlers.Routes),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if oidcMiddleware != nil {
		opts = append(opts, handlers.WithInternalMiddlewares(oidcMiddleware))
	}
	if hmacMiddleware != nil {
		opts = append(opts, handlers.WithWebhookMiddlewares(hmacMiddleware))
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("customer api listening",
			zap.String("version", buildInfo.Version),
			zap.String("timezone", location.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	cleanupTicker.Stop()
	cleanupCancel()
	cleanupWG.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

type fieldServiceRepositories struct {
	appointments    repositories.AppointmentRepository
	customers       repositories.CustomerRepository
	spots           repositories.SpotRepository
	subscriptions   repositories.SubscriptionRepository
	payments        repositories.PaymentRepository
	paymentProfiles repositories.PaymentProfileRepository
	documents       repositories.DocumentRepository
	contracts       repositories.ContractRepository
	forms           repositories.FormRepository
	employees       repositories.EmployeeRepository
	serviceTypes    repositories.ServiceTypeRepository
	offices         repositories.OfficeRepository
}

func newFieldServiceRepositories(client *pfieldservice.Client, loc *time.Location) (fieldServiceRepositories, error) {
	var (
		repos fieldServiceRepositories
		errs  []error
	)
	opts := []fieldserviceRepo.Option{fieldserviceRepo.WithLocation(loc)}
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	appointments, err := fieldserviceRepo.NewAppointmentRepository(client, opts...)
	collect(err)
	customers, err := fieldserviceRepo.NewCustomerRepository(client, opts...)
	collect(err)
	spots, err := fieldserviceRepo.NewSpotRepository(client, opts...)
	collect(err)
	tickets, err := fieldserviceRepo.NewTicketRepository(client)
	collect(err)
	subscriptions, err := fieldserviceRepo.NewSubscriptionRepository(client, append(opts, fieldserviceRepo.WithTicketRepository(tickets))...)
	collect(err)
	paymentRepo, err := fieldserviceRepo.NewPaymentRepository(client, opts...)
	collect(err)
	profiles, err := fieldserviceRepo.NewPaymentProfileRepository(client)
	collect(err)
	documents, err := fieldserviceRepo.NewDocumentRepository(client)
	collect(err)
	contracts, err := fieldserviceRepo.NewContractRepository(client)
	collect(err)
	forms, err := fieldserviceRepo.NewFormRepository(client)
	collect(err)
	employees, err := fieldserviceRepo.NewEmployeeRepository(client)
	collect(err)
	serviceTypes, err := fieldserviceRepo.NewServiceTypeRepository(client)
	collect(err)
	offices, err := fieldserviceRepo.NewOfficeRepository(client)
	collect(err)
	if err := errors.Join(errs...); err != nil {
		return repos, err
	}

	repos = fieldServiceRepositories{
		appointments:    appointments,
		customers:       customers,
		spots:           spots,
		subscriptions:   subscriptions,
		payments:        paymentRepo,
		paymentProfiles: profiles,
		documents:       documents,
		contracts:       contracts,
		forms:           forms,
		employees:       employees,
		serviceTypes:    serviceTypes,
		offices:         offices,
	}
	return repos, nil
}

func newURLSigner(ctx context.Context, cfg config.StorageConfig) (platformstorage.Signer, error) {
	if path := strings.TrimSpace(cfg.SignerKeyFile); path != "" {
		return platformstorage.NewServiceAccountSignerFromFile(path)
	}
	email := strings.TrimSpace(cfg.SignerEmail)
	if email == "" {
		return nil, errors.New("storage signer email or key file is required")
	}
	return platformstorage.NewIAMSigner(ctx, email)
}

func buildInfoFromEnv(env map[string]string, cfg config.Config, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["API_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(env["API_BUILD_COMMIT_SHA"])
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

type dependencyChecks struct {
	firestore    *pfirestore.Provider
	fieldService *pfieldservice.Client
	redis        *planpricing.RedisCache
	topic        *pubsub.Topic
	fetcher      *secrets.Fetcher
}

func newSystemService(deps dependencyChecks, build services.BuildInfo) (services.SystemService, error) {
	checks := make([]repositories.DependencyCheck, 0, 5)
	if deps.firestore != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   deps.firestore.Ping,
		})
	}
	if deps.fieldService != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "fieldService",
			Timeout: 3 * time.Second,
			Check:   deps.fieldService.Ping,
		})
	}
	if deps.redis != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:     "redis",
			Timeout:  500 * time.Millisecond,
			Optional: true,
			Check:    deps.redis.Ping,
		})
	}
	if deps.topic != nil {
		topic := deps.topic
		checks = append(checks, repositories.DependencyCheck{
			Name:     "pubsub",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				ok, err := topic.Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s not found", topic.ID())
				}
				return nil
			},
		})
	}
	if deps.fetcher != nil {
		const secretHealthReference = "secret://system/healthz?version=latest"
		fetcher := deps.fetcher
		checks = append(checks, repositories.DependencyCheck{
			Name:     "secretManager",
			Timeout:  time.Second,
			Optional: true,
			Check: func(ctx context.Context) error {
				_, err := fetcher.Resolve(ctx, secretHealthReference)
				if err == nil || status.Code(err) == codes.NotFound {
					return nil
				}
				return err
			},
		})
	}
	repo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, err
	}
	return services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: repo,
		Clock:            time.Now,
		Build:            build,
	})
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	adapter := observability.NewPrintfAdapter(logger)
	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL, auth.WithJWKSLogger(adapter))
	validator := auth.NewServiceValidator(cache, adapter)

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	return validator.RequireService(audience, cfg.Security.OIDC.Issuers)
}

func buildHMACMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	secrets := make(map[string]string)
	for key, value := range cfg.Security.HMAC.Secrets {
		if strings.TrimSpace(value) == "" {
			continue
		}
		secrets[strings.ToLower(strings.TrimSpace(key))] = value
	}
	if len(secrets) == 0 {
		logger.Warn("auth: no webhook secrets configured; webhooks will be rejected")
	}

	verifier := auth.NewWebhookVerifier(secrets, auth.NewMemoryNonceStore(), auth.SignatureConfig{
		SignatureHeader: cfg.Security.HMAC.SignatureHeader,
		TimestampHeader: cfg.Security.HMAC.TimestampHeader,
		NonceHeader:     cfg.Security.HMAC.NonceHeader,
		ClockSkew:       cfg.Security.HMAC.ClockSkew,
		NonceTTL:        cfg.Security.HMAC.NonceTTL,
	}, auth.WithWebhookLogger(observability.NewPrintfAdapter(logger)))
	return verifier.RequireSignature(webhookSourceFieldService)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("API_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("API_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("API_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithMeter(otel.Meter("github.com/fieldline/customer-api/secrets")),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if raw := lookup("API_SECRET_CACHE_TTL"); raw != "" {
		if ttl, err := time.ParseDuration(raw); err == nil {
			opts = append(opts, secrets.WithCacheTTL(ttl))
		}
	}
	if credentialsFile := lookup("API_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}

func requiredSecretNames(env map[string]string) []string {
	required := []string{
		"FieldService.AuthToken",
		"PlanPricing.APIKey",
		"PSP.StripeAPIKey",
	}
	for _, key := range parseHMACSecretKeys(env["API_SECURITY_HMAC_SECRETS"]) {
		required = append(required, fmt.Sprintf("Security.HMAC.Secrets[%s]", key))
	}
	return uniqueStrings(required)
}

func parseHMACSecretKeys(raw string) []string {
	values := parseKeyValueList(raw)
	if len(values) == 0 {
		return nil
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func parseKeyValueList(raw string) map[string]string {
	result := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok {
			continue
		}
		key, value = strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		result[key] = value
	}
	return result
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	sort.Strings(out)
	return out
}
