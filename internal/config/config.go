package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"GapWatchAPI/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	MQTT      MQTTConfig
	NATS      NATSConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	State     StateConfig
	Scheduler SchedulerConfig
	Alerts    AlertsConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxHeaderBytes  int
	MaxBodyBytes    int64
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	AutoMigrate     bool
}

type MQTTConfig struct {
	Enabled        bool
	Broker         string
	Port           int
	ClientID       string
	Username       string
	Password       string
	QoS            byte
	RetainMessages bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	AutoReconnect  bool
}

type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type StateConfig struct {
	Backend string
}

type SchedulerConfig struct {
	Interval   time.Duration
	RunOnStart bool
	Timeout    time.Duration
}

type AlertsConfig struct {
	MQTTTopicPrefix string
	NATSSubject     string
	MonitorsFile    string
	Retention       time.Duration
}

type SecurityConfig struct {
	AuthEnabled        bool
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	RateLimitPerMinute int
	EnableRateLimit    bool
}

type LoggingConfig struct {
	Level     logger.Level
	Mode      logger.Mode
	FilePath  string
	UseColors bool
}

const (
	StateBackendPostgres = "postgres"
	StateBackendRedis    = "redis"
	StateBackendMemory   = "memory"
)

var requiredEnvVars = []string{
	"DB_HOST",
	"DB_PORT",
	"DB_USER",
	"DB_PASSWORD",
	"DB_NAME",
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired(); err != nil {
		return nil, err
	}

	return FromEnv(), nil
}

// FromEnv builds a Config from the current environment without loading
// .env or checking required variables.
func FromEnv() *Config {
	return &Config{
		Server:    loadServerConfig(),
		Database:  loadDatabaseConfig(),
		MQTT:      loadMQTTConfig(),
		NATS:      loadNATSConfig(),
		Kafka:     loadKafkaConfig(),
		Redis:     loadRedisConfig(),
		State:     StateConfig{Backend: strings.ToLower(getEnv("STATE_BACKEND", StateBackendPostgres))},
		Scheduler: loadSchedulerConfig(),
		Alerts:    loadAlertsConfig(),
		Security:  loadSecurityConfig(),
		Logging:   loadLoggingConfig(),
	}
}

func validateRequired() error {
	var missing []string

	for _, key := range requiredEnvVars {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SERVER_HOST", "0.0.0.0"),
		Port:            getEnvAsInt("SERVER_PORT", 8080),
		Environment:     getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", "15s"),
		ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", "10s"),
		WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", "10s"),
		MaxHeaderBytes:  getEnvAsInt("MAX_HEADER_BYTES", 1048576),
		MaxBodyBytes:    int64(getEnvAsInt("MAX_BODY_BYTES", 1048576)),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "gapwatch"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "gapwatch"),
		SSLMode:         getEnv("DB_SSL_MODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", "5m"),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
}

func loadMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Enabled:        getEnvAsBool("MQTT_ENABLED", true),
		Broker:         getEnv("MQTT_BROKER", "localhost"),
		Port:           getEnvAsInt("MQTT_PORT", 1883),
		ClientID:       getEnv("MQTT_CLIENT_ID", "gapwatch"),
		Username:       getEnv("MQTT_USERNAME", ""),
		Password:       getEnv("MQTT_PASSWORD", ""),
		QoS:            byte(getEnvAsInt("MQTT_QOS", 1)),
		RetainMessages: getEnvAsBool("MQTT_RETAIN", false),
		KeepAlive:      getEnvAsDuration("MQTT_KEEP_ALIVE", "60s"),
		ConnectTimeout: getEnvAsDuration("MQTT_CONNECT_TIMEOUT", "10s"),
		AutoReconnect:  getEnvAsBool("MQTT_AUTO_RECONNECT", true),
	}
}

func loadNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           getEnv("NATS_URL", ""),
		MaxReconnects: getEnvAsInt("NATS_MAX_RECONNECTS", 10),
		ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", "2s"),
	}
}

func loadKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:  getEnvAsList("KAFKA_BROKERS", ""),
		GroupID:  getEnv("KAFKA_GROUP_ID", "gapwatch"),
		MinBytes: getEnvAsInt("KAFKA_MIN_BYTES", 1),
		MaxBytes: getEnvAsInt("KAFKA_MAX_BYTES", 10e6),
		MaxWait:  getEnvAsDuration("KAFKA_MAX_WAIT", "1s"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      getEnv("REDIS_ADDR", ""),
		Password:  getEnv("REDIS_PASSWORD", ""),
		DB:        getEnvAsInt("REDIS_DB", 0),
		KeyPrefix: getEnv("REDIS_KEY_PREFIX", "gapwatch:state:"),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:   getEnvAsDuration("SCHEDULER_INTERVAL", "10m"),
		RunOnStart: getEnvAsBool("SCHEDULER_RUN_ON_START", true),
		Timeout:    getEnvAsDuration("SCHEDULER_TIMEOUT", "1m"),
	}
}

func loadAlertsConfig() AlertsConfig {
	return AlertsConfig{
		MQTTTopicPrefix: getEnv("ALERT_MQTT_TOPIC_PREFIX", "gapwatch/alerts"),
		NATSSubject:     getEnv("ALERT_NATS_SUBJECT", "gapwatch.alerts"),
		MonitorsFile:    getEnv("MONITORS_FILE", ""),
		Retention:       getEnvAsDuration("ALERT_RETENTION", "720h"),
	}
}

func loadSecurityConfig() SecurityConfig {
	origins := getEnv("CORS_ALLOWED_ORIGINS", "*")
	methods := getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")

	return SecurityConfig{
		AuthEnabled:        getEnvAsBool("AUTH_ENABLED", false),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "gapwatch"),
		CORSAllowedOrigins: strings.Split(origins, ","),
		CORSAllowedMethods: strings.Split(methods, ","),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 100),
		EnableRateLimit:    getEnvAsBool("ENABLE_RATE_LIMIT", true),
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:     logger.ParseLevel(getEnv("LOG_LEVEL", "info")),
		Mode:      logger.ParseMode(getEnv("LOG_MODE", "normal")),
		FilePath:  getEnv("LOG_FILE_PATH", ""),
		UseColors: getEnvAsBool("LOG_USE_COLORS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func MQTTBrokerURL(m *MQTTConfig) string {
	return fmt.Sprintf("tcp://%s:%d", m.Broker, m.Port)
}

func (c *Config) Validate() error {
	var errors []string

	if c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD cannot be empty")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}

	if c.MQTT.Enabled && (c.MQTT.Port < 1 || c.MQTT.Port > 65535) {
		errors = append(errors, "MQTT_PORT must be between 1 and 65535")
	}

	if c.Scheduler.Interval <= 0 {
		errors = append(errors, "SCHEDULER_INTERVAL must be a positive duration")
	}

	switch c.State.Backend {
	case StateBackendPostgres, StateBackendMemory:
	case StateBackendRedis:
		if c.Redis.Addr == "" {
			errors = append(errors, "REDIS_ADDR is required when STATE_BACKEND=redis")
		}
	default:
		errors = append(errors, fmt.Sprintf("STATE_BACKEND must be one of postgres, redis, memory (got %q)", c.State.Backend))
	}

	if c.Security.AuthEnabled && c.Security.JWTSecret == "" {
		errors = append(errors, "JWT_SECRET cannot be empty when AUTH_ENABLED=true")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func (c *Config) Print() {
	fmt.Println("╔══════════════════════════════════════════════════════════╗")
	fmt.Println("║               GapWatch - Configuration                   ║")
	fmt.Println("╚══════════════════════════════════════════════════════════╝")
	fmt.Printf("Environment:     %s\n", c.Server.Environment)
	fmt.Printf("Server:          %s:%d\n", c.Server.Host, c.Server.Port)
	fmt.Printf("Database:        %s:%d/%s\n", c.Database.Host, c.Database.Port, c.Database.Database)
	fmt.Printf("State backend:   %s\n", c.State.Backend)
	fmt.Printf("Check interval:  %s\n", c.Scheduler.Interval)
	if c.MQTT.Enabled {
		fmt.Printf("MQTT Broker:     %s\n", MQTTBrokerURL(&c.MQTT))
	}
	if c.NATS.URL != "" {
		fmt.Printf("NATS:            %s\n", c.NATS.URL)
	}
	if len(c.Kafka.Brokers) > 0 {
		fmt.Printf("Kafka:           %s\n", strings.Join(c.Kafka.Brokers, ","))
	}
	fmt.Println("──────────────────────────────────────────────────────────")
}
