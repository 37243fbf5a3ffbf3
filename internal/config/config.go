package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/voxtour/ticket-gateway/pkg/logger"
)

const ConfigTagName = "env"
const ConfigDefaultTagName = "default"

var config *Config

// Config holds every env-sourced setting of the ticket gateway. Only this
// struct must be used to hold configuration values, no direct access to
// env, ini or any other config source should be made.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"ticket_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`
	AppBaseUrl          string `env:"APP_BASE_URL"`

	HttpListenAddr            string `env:"HTTP_LISTEN_ADDR" validation:"mustExists"`
	HttpBaseRequestUrl        string `env:"HTTP_BASE_REQUEST_URI" validation:"mustExists"`
	HttpServerReadTimeout     int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout    int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`
	HttpServerReadBufferSize  int    `env:"HTTP_SERVER_READ_BUFFER_SIZE"`
	HttpServerWriteBufferSize int    `env:"HTTP_SERVER_WRITE_BUFFER_SIZE"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE"`

	ProfilerEnable bool `env:"PROFILER_ENABLE"`
	ProfilerPort   int  `env:"PROFILER_PORT"`

	LogLevel []string `env:"LOG_LEVEL"`

	// Messaging vendor. WhatsApp and SMS share one account.
	MessagingBaseUrl      string        `env:"MESSAGING_BASE_URL" default:"https://api.twilio.com"`
	MessagingAccountSID   string        `env:"MESSAGING_ACCOUNT_SID"`
	MessagingAuthToken    string        `env:"MESSAGING_AUTH_TOKEN"`
	MessagingFromPhone    string        `env:"MESSAGING_FROM_PHONE"`
	MessagingFromWhatsApp string        `env:"MESSAGING_FROM_WHATSAPP"`
	MessagingTimeout      time.Duration `env:"MESSAGING_TIMEOUT" default:"5s"`
	MessagingCallbackUrl  string        `env:"MESSAGING_CALLBACK_URL"`

	// Line-type lookup used by the WhatsApp capability probe.
	LookupBaseUrl    string        `env:"LOOKUP_BASE_URL" default:"https://lookups.twilio.com"`
	LookupTimeout    time.Duration `env:"LOOKUP_TIMEOUT" default:"3s"`
	LookupFailClosed bool          `env:"LOOKUP_FAIL_CLOSED"`

	EmailBaseUrl  string        `env:"EMAIL_BASE_URL" default:"https://api.sendgrid.com"`
	EmailAPIKey   string        `env:"EMAIL_API_KEY"`
	EmailFromAddr string        `env:"EMAIL_FROM_ADDR"`
	EmailFromName string        `env:"EMAIL_FROM_NAME" default:"VoxTour Tickets"`
	EmailTimeout  time.Duration `env:"EMAIL_TIMEOUT" default:"10s"`

	// Attachment storage and signed download links.
	StorageRoot          string        `env:"STORAGE_ROOT" default:"/var/lib/ticket-gateway/files"`
	StoragePublicBaseUrl string        `env:"STORAGE_PUBLIC_BASE_URL"`
	StorageUrlSecret     string        `env:"STORAGE_URL_SECRET"`
	StorageUrlTTL        time.Duration `env:"STORAGE_URL_TTL" default:"1h"`

	DispatchLockTTL time.Duration `env:"DISPATCH_LOCK_TTL" default:"30s"`

	RetryBatchLimit int           `env:"RETRY_BATCH_LIMIT" default:"50"`
	RetryBatchDelay time.Duration `env:"RETRY_BATCH_DELAY" default:"200ms"`

	QueueName              string        `env:"QUEUE_NAME" default:"ticket_retry"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"retriers"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.New("failed to load configuration file " + path + " error: " + err.Error())
		}
	}

	_, err = env.UnmarshalFromEnviron(c)

	if err != nil {
		return errors.New("failed to map env variables to Configuration object " + " error: " + err.Error())
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
