package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Commerce      CommerceConfig
	Breaker       BreakerConfig
	Storefront    StorefrontConfig
	Checkout      CheckoutConfig
	Square        SquareConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.Commerce.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type AuthRateLimitConfig struct {
	SignInWindow            time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGN_IN_WINDOW" default:"1m"`
	SignInIdentifierLimit   int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGN_IN_IDENTIFIER_LIMIT" default:"5"`
	SignInIPLimit           int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_SIGN_IN_IP_LIMIT" default:"20"`
	RegisterWindow          time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterIdentifierLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IDENTIFIER_LIMIT" default:"3"`
	RegisterIPLimit         int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// CommerceConfig points at the order/catalog/payment API the storefront consumes.
type CommerceConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_COMMERCE_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"STOREFRONT_COMMERCE_API_KEY"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_COMMERCE_REQUEST_TIMEOUT" default:"15s"`
}

func (c CommerceConfig) validate() error {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", EnvCommerceBaseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute url", EnvCommerceBaseURL)
	}
	return nil
}

type BreakerConfig struct {
	MaxRequests         uint32        `envconfig:"STOREFRONT_BREAKER_MAX_REQUESTS" default:"1"`
	Interval            time.Duration `envconfig:"STOREFRONT_BREAKER_INTERVAL" default:"60s"`
	Timeout             time.Duration `envconfig:"STOREFRONT_BREAKER_TIMEOUT" default:"30s"`
	ConsecutiveFailures uint32        `envconfig:"STOREFRONT_BREAKER_CONSECUTIVE_FAILURES" default:"5"`
}

type StorefrontConfig struct {
	PublicOrigin         string        `envconfig:"STOREFRONT_PUBLIC_ORIGIN" required:"true"`
	AllowedOrigins       []string      `envconfig:"STOREFRONT_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	OrderSource          string        `envconfig:"STOREFRONT_ORDER_SOURCE" default:"storefront"`
	DefaultCountryCode   string        `envconfig:"STOREFRONT_DEFAULT_COUNTRY_CODE" default:"256"`
	ReceiptBaseURL       string        `envconfig:"STOREFRONT_RECEIPT_BASE_URL"`
	ReceiptDefaultOrigin string        `envconfig:"STOREFRONT_RECEIPT_DEFAULT_ORIGIN" default:"https://api.storefront.example"`
	ConfirmationPath     string        `envconfig:"STOREFRONT_CONFIRMATION_PATH" default:"/orders/%s/confirmation"`
	RecentlyViewedLimit  int           `envconfig:"STOREFRONT_RECENTLY_VIEWED_LIMIT" default:"12"`
	CartTTL              time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"168h"`
	SessionCookieDomain  string        `envconfig:"STOREFRONT_SESSION_COOKIE_DOMAIN"`
	SessionCookieSecure  bool          `envconfig:"STOREFRONT_SESSION_COOKIE_SECURE" default:"true"`
}

// CheckoutConfig carries the timing constants of the purchase path.
type CheckoutConfig struct {
	PollInterval   time.Duration `envconfig:"STOREFRONT_PAYMENT_POLL_INTERVAL" default:"3s"`
	RedirectDelay  time.Duration `envconfig:"STOREFRONT_PAYMENT_REDIRECT_DELAY" default:"2s"`
	LookupDebounce time.Duration `envconfig:"STOREFRONT_LOOKUP_DEBOUNCE" default:"500ms"`
	SessionTTL     time.Duration `envconfig:"STOREFRONT_CHECKOUT_SESSION_TTL" default:"24h"`
	PaymentTTL     time.Duration `envconfig:"STOREFRONT_PAYMENT_SESSION_TTL" default:"1h"`
}

// CronConfig drives the background worker binary.
type CronConfig struct {
	Interval    time.Duration `envconfig:"STOREFRONT_CRON_INTERVAL" default:"15m"`
	LockTTL     time.Duration `envconfig:"STOREFRONT_CRON_LOCK_TTL" default:"10m"`
	MetricsAddr string        `envconfig:"STOREFRONT_CRON_METRICS_ADDR" default:":9091"`
}

// SquareConfig enables the customer directory used to recognise returning shoppers.
type SquareConfig struct {
	AccessToken    string        `envconfig:"STOREFRONT_SQUARE_ACCESS_TOKEN"`
	Env            string        `envconfig:"STOREFRONT_SQUARE_ENV" default:"sandbox"`
	RequestTimeout time.Duration `envconfig:"STOREFRONT_SQUARE_REQUEST_TIMEOUT" default:"5s"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

// Enabled reports whether customer recognition against Square is configured.
func (s SquareConfig) Enabled() bool {
	return strings.TrimSpace(s.AccessToken) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
