package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Mail         MailConfig
	Payments     PaymentsConfig
	Dispatch     DispatchConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GIGFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"GIGFLOW_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"GIGFLOW_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"GIGFLOW_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"GIGFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GIGFLOW_SERVICE_KIND" default:"api"`
	// MetricsAddr exposes /metrics from the background binaries when set.
	MetricsAddr string `envconfig:"GIGFLOW_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIGFLOW_DB_DSN"`
	Driver string `envconfig:"GIGFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GIGFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"GIGFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GIGFLOW_DB_USER"`
	LegacyPassword string `envconfig:"GIGFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"GIGFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"GIGFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIGFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIGFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIGFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIGFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"GIGFLOW_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GIGFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GIGFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"GIGFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIGFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIGFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIGFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIGFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIGFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIGFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GIGFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GIGFLOW_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GIGFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"GIGFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"GIGFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	RecordsTopic        string `envconfig:"GIGFLOW_PUBSUB_RECORDS_TOPIC" default:"gf-record-events"`
	RecordsSubscription string `envconfig:"GIGFLOW_PUBSUB_RECORDS_SUBSCRIPTION" required:"true"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"GIGFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"GIGFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"GIGFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"GIGFLOW_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

// MailConfig carries the SendGrid transport credentials handed to the mail executor.
type MailConfig struct {
	APIKey      string        `envconfig:"GIGFLOW_SENDGRID_API_KEY"`
	FromAddress string        `envconfig:"GIGFLOW_MAIL_FROM_ADDRESS" default:"no-reply@gigflow.app"`
	FromName    string        `envconfig:"GIGFLOW_MAIL_FROM_NAME" default:"GigFlow"`
	SendTimeout time.Duration `envconfig:"GIGFLOW_MAIL_SEND_TIMEOUT" default:"10s"`
}

// PaymentsConfig selects the payment channel once at startup.
type PaymentsConfig struct {
	Mode           string        `envconfig:"GIGFLOW_PAYMENTS_MODE" default:"simulated"`
	Currency       string        `envconfig:"GIGFLOW_PAYMENTS_CURRENCY" default:"USD"`
	SimulatedDelay time.Duration `envconfig:"GIGFLOW_PAYMENTS_SIMULATED_DELAY" default:"1500ms"`
	SigningSecret  string        `envconfig:"GIGFLOW_PAYMENTS_SIGNING_SECRET"`

	SquareAccessToken string `envconfig:"GIGFLOW_SQUARE_ACCESS_TOKEN"`
	SquareEnv         string `envconfig:"GIGFLOW_SQUARE_ENV" default:"sandbox"`
	SquareLocationID  string `envconfig:"GIGFLOW_SQUARE_LOCATION_ID"`
}

// IsLive reports whether checkout should go through the real gateway.
func (p PaymentsConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(p.Mode), PaymentsModeLive)
}

func (p PaymentsConfig) validate() error {
	mode := strings.ToLower(strings.TrimSpace(p.Mode))
	switch mode {
	case PaymentsModeLive:
		if strings.TrimSpace(p.SquareAccessToken) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvSquareAccessToken, EnvPaymentsMode, PaymentsModeLive)
		}
		if strings.TrimSpace(p.SquareLocationID) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvSquareLocationID, EnvPaymentsMode, PaymentsModeLive)
		}
		return nil
	case PaymentsModeSimulated, "":
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPaymentsMode, PaymentsModeLive, PaymentsModeSimulated)
	}
}

type DispatchConfig struct {
	LeaseTTL     time.Duration `envconfig:"GIGFLOW_DISPATCH_LEASE_TTL" default:"2m"`
	ProcessedTTL time.Duration `envconfig:"GIGFLOW_DISPATCH_PROCESSED_TTL" default:"168h"`
	ConsumerName string        `envconfig:"GIGFLOW_DISPATCH_CONSUMER_NAME" default:"dispatcher"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
