package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultShutdownTimeout      = 20 * time.Second
	defaultSignedURLTTL         = 15 * time.Minute
	defaultFieldServiceTimeout  = 10 * time.Second
	defaultFieldServiceRPS      = 8.0
	defaultFieldServiceBurst    = 4
	defaultSchedulerName        = "Customer Portal"
	defaultTimeZone             = "America/Chicago"
	defaultPlanPricingTimeout   = 5 * time.Second
	defaultPlanPricingCacheTTL  = 15 * time.Minute
	defaultEventsTopic          = "customer-events"
	defaultProPlusDifferential  = "20.00"
	defaultRateLimitPerMinute   = 120
	defaultRateLimitBurst       = 20
	defaultSecurityEnvironment  = "local"
	defaultOIDCJWKSURL          = "https://www.googleapis.com/oauth2/v3/certs"
	defaultSecurityIssuer       = "https://accounts.google.com"
	defaultSecurityIAPIssuer    = "https://cloud.google.com/iap"
	defaultHMACSignatureHeader  = "X-Signature"
	defaultHMACTimestampHeader  = "X-Signature-Timestamp"
	defaultHMACNonceHeader      = "X-Signature-Nonce"
	defaultHMACClockSkew        = 5 * time.Minute
	defaultHMACNonceTTL         = 5 * time.Minute
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server       ServerConfig
	Firebase     FirebaseConfig
	Firestore    FirestoreConfig
	Storage      StorageConfig
	FieldService FieldServiceConfig
	PlanPricing  PlanPricingConfig
	Redis        RedisConfig
	PSP          PSPConfig
	Events       EventsConfig
	Upgrades     UpgradeConfig
	RateLimits   RateLimitConfig
	Security     SecurityConfig
	Idempotency  IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig names the bucket documents are archived to before download.
type StorageConfig struct {
	DocumentsBucket string
	SignedURLTTL    time.Duration
	SignerEmail     string
	// SignerKeyFile is a service account JSON key used instead of IAM signBlob, for local runs.
	SignerKeyFile string
}

// FieldServiceConfig holds the field-service API connection and scheduling defaults.
type FieldServiceConfig struct {
	BaseURL           string
	AuthKey           string
	AuthToken         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	SchedulerName     string
	ReserviceTypeID   int
	TimeZone          string
}

// Location resolves TimeZone; unknown zones fall back to UTC.
func (c FieldServiceConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PlanPricingConfig points at the plan-pricing service.
type PlanPricingConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// RedisConfig enables the plan cache when Addr is set.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PSPConfig collects secrets for the payment gateway.
type PSPConfig struct {
	StripeAPIKey string
}

// EventsConfig selects the Pub/Sub topic domain events are published to.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// UpgradeConfig tunes upgrade offers.
type UpgradeConfig struct {
	ProPlusDifferential decimal.Decimal
}

// RateLimitConfig controls per-account request throttling.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// SecurityConfig groups server-to-server authentication settings.
type SecurityConfig struct {
	Environment string
	OIDC        OIDCConfig
	HMAC        HMACConfig
}

// OIDCConfig controls Google-signed token verification.
type OIDCConfig struct {
	JWKSURL   string
	Audience  string
	Audiences map[string]string
	Issuers   []string
}

// HMACConfig captures webhook signing expectations.
type HMACConfig struct {
	Secrets         map[string]string
	SignatureHeader string
	TimestampHeader string
	NonceHeader     string
	ClockSkew       time.Duration
	NonceTTL        time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}
	env := lookupFunc(func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	})

	cfg := Config{
		Server: ServerConfig{
			Port:            env.str("API_SERVER_PORT", defaultPort),
			ReadTimeout:     env.duration("API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    env.duration("API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     env.duration("API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: env.duration("API_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       env.str("API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: env.str("API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    env.str("API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: env.str("API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			DocumentsBucket: env.str("API_STORAGE_DOCUMENTS_BUCKET", ""),
			SignedURLTTL:    env.duration("API_STORAGE_SIGNED_URL_TTL", defaultSignedURLTTL),
			SignerEmail:     env.str("API_STORAGE_SIGNER_EMAIL", ""),
			SignerKeyFile:   env.str("API_STORAGE_SIGNER_KEY_FILE", ""),
		},
		FieldService: FieldServiceConfig{
			BaseURL:           env.str("API_FIELDSERVICE_BASE_URL", ""),
			AuthKey:           env.str("API_FIELDSERVICE_AUTH_KEY", ""),
			AuthToken:         env.str("API_FIELDSERVICE_AUTH_TOKEN", ""),
			Timeout:           env.duration("API_FIELDSERVICE_TIMEOUT", defaultFieldServiceTimeout),
			RequestsPerSecond: env.float("API_FIELDSERVICE_RPS", defaultFieldServiceRPS),
			Burst:             env.integer("API_FIELDSERVICE_BURST", defaultFieldServiceBurst),
			SchedulerName:     env.str("API_FIELDSERVICE_SCHEDULER_NAME", defaultSchedulerName),
			ReserviceTypeID:   env.integer("API_FIELDSERVICE_RESERVICE_TYPE_ID", 0),
			TimeZone:          env.str("API_FIELDSERVICE_TIMEZONE", defaultTimeZone),
		},
		PlanPricing: PlanPricingConfig{
			BaseURL:  env.str("API_PLANPRICING_BASE_URL", ""),
			APIKey:   env.str("API_PLANPRICING_API_KEY", ""),
			Timeout:  env.duration("API_PLANPRICING_TIMEOUT", defaultPlanPricingTimeout),
			CacheTTL: env.duration("API_PLANPRICING_CACHE_TTL", defaultPlanPricingCacheTTL),
		},
		Redis: RedisConfig{
			Addr:     env.str("API_REDIS_ADDR", ""),
			Password: env.str("API_REDIS_PASSWORD", ""),
			DB:       env.integer("API_REDIS_DB", 0),
		},
		PSP: PSPConfig{
			StripeAPIKey: env.str("API_PSP_STRIPE_API_KEY", ""),
		},
		Events: EventsConfig{
			ProjectID: env.str("API_EVENTS_PROJECT_ID", ""),
			Topic:     env.str("API_EVENTS_TOPIC", defaultEventsTopic),
		},
		Upgrades: UpgradeConfig{
			ProPlusDifferential: env.money("API_UPGRADES_PRO_PLUS_DIFFERENTIAL", defaultProPlusDifferential),
		},
		RateLimits: RateLimitConfig{
			PerMinute: env.integer("API_RATELIMIT_PER_MIN", defaultRateLimitPerMinute),
			Burst:     env.integer("API_RATELIMIT_BURST", defaultRateLimitBurst),
		},
		Security: SecurityConfig{
			Environment: strings.ToLower(env.str("API_SECURITY_ENVIRONMENT", defaultSecurityEnvironment)),
			OIDC: OIDCConfig{
				JWKSURL:   env.str("API_SECURITY_OIDC_JWKS_URL", defaultOIDCJWKSURL),
				Audience:  env.str("API_SECURITY_OIDC_AUDIENCE", ""),
				Audiences: env.keyValues("API_SECURITY_OIDC_AUDIENCES"),
				Issuers:   env.csv("API_SECURITY_OIDC_ISSUERS"),
			},
			HMAC: HMACConfig{
				Secrets:         env.keyValues("API_SECURITY_HMAC_SECRETS"),
				SignatureHeader: env.str("API_SECURITY_HMAC_HEADER_SIGNATURE", defaultHMACSignatureHeader),
				TimestampHeader: env.str("API_SECURITY_HMAC_HEADER_TIMESTAMP", defaultHMACTimestampHeader),
				NonceHeader:     env.str("API_SECURITY_HMAC_HEADER_NONCE", defaultHMACNonceHeader),
				ClockSkew:       env.duration("API_SECURITY_HMAC_CLOCK_SKEW", defaultHMACClockSkew),
				NonceTTL:        env.duration("API_SECURITY_HMAC_NONCE_TTL", defaultHMACNonceTTL),
			},
		},
		Idempotency: IdempotencyConfig{
			Header:           env.str("API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              env.duration("API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  env.duration("API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: env.integer("API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
		},
	}

	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}
	if len(cfg.Security.OIDC.Issuers) == 0 {
		cfg.Security.OIDC.Issuers = []string{defaultSecurityIssuer, defaultSecurityIAPIssuer}
	}
	if cfg.Security.OIDC.Audience == "" {
		cfg.Security.OIDC.Audience = cfg.Security.OIDC.Audiences[cfg.Security.Environment]
	}

	secrets := newSecretSet(options.secret)
	for key, value := range cfg.Security.HMAC.Secrets {
		resolved, err := secrets.resolve(ctx, fmt.Sprintf("Security.HMAC.Secrets[%s]", key), value)
		if err != nil {
			return Config{}, err
		}
		cfg.Security.HMAC.Secrets[key] = resolved
	}
	fields := []struct {
		name  string
		field *string
	}{
		{"FieldService.AuthToken", &cfg.FieldService.AuthToken},
		{"PlanPricing.APIKey", &cfg.PlanPricing.APIKey},
		{"Redis.Password", &cfg.Redis.Password},
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
	}
	for _, target := range fields {
		resolved, err := secrets.resolve(ctx, target.name, *target.field)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if missing := findMissingSecrets(options.requiredSecrets, secrets.resolved); missing != nil {
		if options.panicOnMissingSecrets {
			fmt.Fprintf(os.Stderr, "config: %s\n", missing.Error())
			panic(missing)
		}
		return Config{}, missing
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var missing []string
	require := func(ok bool, field string) {
		if !ok {
			missing = append(missing, field)
		}
	}

	require(cfg.Server.Port != "", "Server.Port")
	require(cfg.Firebase.ProjectID != "", "Firebase.ProjectID")
	require(cfg.Firestore.ProjectID != "", "Firestore.ProjectID")
	require(cfg.FieldService.BaseURL != "", "FieldService.BaseURL")
	require(cfg.FieldService.AuthKey != "", "FieldService.AuthKey")
	require(cfg.FieldService.RequestsPerSecond > 0, "FieldService.RequestsPerSecond")
	require(cfg.PlanPricing.BaseURL != "", "PlanPricing.BaseURL")
	require(cfg.Upgrades.ProPlusDifferential.IsPositive(), "Upgrades.ProPlusDifferential")
	require(cfg.RateLimits.PerMinute > 0, "RateLimits.PerMinute")
	require(strings.TrimSpace(cfg.Idempotency.Header) != "", "Idempotency.Header")
	require(cfg.Idempotency.TTL > 0, "Idempotency.TTL")
	require(cfg.Idempotency.CleanupInterval > 0, "Idempotency.CleanupInterval")
	require(cfg.Idempotency.CleanupBatchSize > 0, "Idempotency.CleanupBatchSize")
	if _, err := time.LoadLocation(cfg.FieldService.TimeZone); err != nil {
		missing = append(missing, "FieldService.TimeZone")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}
