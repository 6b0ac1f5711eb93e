package config

const EnvPrefix = "GIGFLOW"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"

	PaymentsModeLive      = "live"
	PaymentsModeSimulated = "simulated"
)

const (
	EnvAppEnv   = "GIGFLOW_APP_ENV"
	EnvPort     = "GIGFLOW_APP_PORT"
	EnvLogLevel = "GIGFLOW_LOG_LEVEL"

	EnvDBDSN  = "GIGFLOW_DB_DSN"
	EnvDBHost = "GIGFLOW_DB_HOST"
	EnvDBUser = "GIGFLOW_DB_USER"
	EnvDBName = "GIGFLOW_DB_NAME"

	EnvRedisURL = "GIGFLOW_REDIS_URL"

	EnvGCPProjectID       = "GIGFLOW_GCP_PROJECT_ID"
	EnvPubSubRecordsTopic = "GIGFLOW_PUBSUB_RECORDS_TOPIC"
	EnvPubSubRecordsSub   = "GIGFLOW_PUBSUB_RECORDS_SUBSCRIPTION"

	EnvSendgridAPIKey  = "GIGFLOW_SENDGRID_API_KEY"
	EnvMailSendTimeout = "GIGFLOW_MAIL_SEND_TIMEOUT"

	EnvPaymentsMode           = "GIGFLOW_PAYMENTS_MODE"
	EnvPaymentsSimulatedDelay = "GIGFLOW_PAYMENTS_SIMULATED_DELAY"
	EnvSquareAccessToken      = "GIGFLOW_SQUARE_ACCESS_TOKEN"
	EnvSquareLocationID       = "GIGFLOW_SQUARE_LOCATION_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
