package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"sage-api"`
	Port                          int      `env:"PORT" env-default:"3004"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST,PUT,DELETE"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL
	DatabaseDriver              string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                string        `env:"DB_HOST" env-default:""`
	DatabasePort                string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName            string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword            string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                string        `env:"DB_NAME" env-default:"sage"`
	DatabaseSSLMode             string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns        int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns        int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime     time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion    int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce      int           `env:"DB_MIGRATION_FORCE" env-default:"0"`

	// Redis (calibration run lock)
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka Consumer (signal evaluator output - detection events)
	KafkaBrokers         []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaInputTopic      string   `env:"KAFKA_INPUT_TOPIC" env-default:"signal-detections"`
	KafkaConsumerGroup   string   `env:"KAFKA_CONSUMER_GROUP" env-default:"sage-consumer"`
	KafkaConsumerEnabled bool     `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`

	// Kafka Producer (lifecycle + calibration events)
	KafkaOutputTopic  string `env:"KAFKA_OUTPUT_TOPIC" env-default:"signal-intelligence-events"`
	KafkaBatchSize    int    `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int    `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int    `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Business calendar + seasonal configuration document (read-only after load)
	CalendarConfigPath string `env:"CALENDAR_CONFIG_PATH" env-default:"config/calendar.json"`

	// Lifecycle classification
	RecentMaxBusinessDays    int `env:"LIFECYCLE_RECENT_MAX_BUSINESS_DAYS" env-default:"3"`
	OngoingMaxBusinessDays   int `env:"LIFECYCLE_ONGOING_MAX_BUSINESS_DAYS" env-default:"10"`
	ChronicEscalationDays    int `env:"LIFECYCLE_CHRONIC_ESCALATION_BUSINESS_DAYS" env-default:"14"`
	LifecycleHistoryMaxItems int `env:"LIFECYCLE_HISTORY_MAX_ITEMS" env-default:"50"`

	// Recency weighting
	RecencyHalfLifeDays  float64 `env:"RECENCY_HALF_LIFE_BUSINESS_DAYS" env-default:"14"`
	RecencyMinimumWeight float64 `env:"RECENCY_MINIMUM_WEIGHT" env-default:"0.01"`
	TrendSlopeThreshold  float64 `env:"RECENCY_TREND_SLOPE_THRESHOLD" env-default:"0.3"`

	// Correlation confidence
	CorrelationCycleHours       float64 `env:"CORRELATION_CYCLE_HOURS" env-default:"24"`
	CorrelationRecurrenceWindow int     `env:"CORRELATION_RECURRENCE_WINDOW_CYCLES" env-default:"10"`

	// Effectiveness scoring
	EffectivenessMinimumFires  int `env:"EFFECTIVENESS_MINIMUM_FIRES" env-default:"20"`
	EffectivenessLookbackDays  int `env:"EFFECTIVENESS_LOOKBACK_DAYS" env-default:"90"`
	EffectivenessHighTierFires int `env:"EFFECTIVENESS_HIGH_TIER_FIRES" env-default:"50"`

	// Calibration
	CalibrationMaxAdjustmentPercent float64 `env:"CALIBRATION_MAX_ADJUSTMENT_PERCENT" env-default:"30"`
	CalibrationCooldownDays         int     `env:"CALIBRATION_COOLDOWN_DAYS" env-default:"14"`
	CalibrationLockTTLSeconds       int     `env:"CALIBRATION_LOCK_TTL_SECONDS" env-default:"120"`

	// Profile synthesis
	ProfileProjectionUnits int `env:"PROFILE_PROJECTION_UNITS" env-default:"30"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
	TracingInsecure     bool   `env:"TRACING_INSECURE" env-default:"true"`
}
