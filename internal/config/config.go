package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig параметры HTTP сервера
type AppConfig struct {
	Port            string        `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	LogLevel        string        `mapstructure:"logLevel"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// DatabaseConfig параметры PostgreSQL. Driver "memory" включает хранилище в памяти.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"maxConns"`
	MinConns int32  `mapstructure:"minConns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// RedisConfig параметры кеша. Пустой Addr отключает кеш.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cacheTTL"`
}

// KafkaConfig параметры публикации и чтения событий. Пустой Brokers отключает Kafka.
type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"groupId"`
	EnsureTopics    bool     `mapstructure:"ensureTopics"`
	NotifierEnabled bool     `mapstructure:"notifierEnabled"`
}

// RazorpayConfig ключи платежного шлюза
type RazorpayConfig struct {
	KeyID       string        `mapstructure:"keyId"`
	KeySecret   string        `mapstructure:"keySecret"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxElapsed  time.Duration `mapstructure:"maxElapsed"`
	DefaultCurr string        `mapstructure:"defaultCurrency"`
}

// AuthConfig секреты и сроки жизни токенов
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwtSecret"`
	AdminJWTSecret  string        `mapstructure:"adminJwtSecret"`
	AccessTokenTTL  time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL time.Duration `mapstructure:"refreshTokenTTL"`
	AdminTokenTTL   time.Duration `mapstructure:"adminTokenTTL"`
	CookieDomain    string        `mapstructure:"cookieDomain"`
	CookieSecure    bool          `mapstructure:"cookieSecure"`
}

// MailConfig параметры Postmark. Пустой ServerToken включает логирующий отправитель.
type MailConfig struct {
	ServerToken  string `mapstructure:"serverToken"`
	AccountToken string `mapstructure:"accountToken"`
	SenderEmail  string `mapstructure:"senderEmail"`
	SupportEmail string `mapstructure:"supportEmail"`
}

// StorageConfig параметры S3 для логотипов услуг
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
	PublicBaseURL   string `mapstructure:"publicBaseUrl"`
	MaxUploadBytes  int64  `mapstructure:"maxUploadBytes"`
}

// FirebaseConfig параметры проверки Google ID токенов
type FirebaseConfig struct {
	ProjectID       string `mapstructure:"projectId"`
	CredentialsFile string `mapstructure:"credentialsFile"`
}

// SubscriptionsConfig политика ручного создания подписок
type SubscriptionsConfig struct {
	SelfServiceUpsert bool `mapstructure:"selfServiceUpsert"`
}

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Razorpay      RazorpayConfig      `mapstructure:"razorpay"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Mail          MailConfig          `mapstructure:"mail"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Firebase      FirebaseConfig      `mapstructure:"firebase"`
	Subscriptions SubscriptionsConfig `mapstructure:"subscriptions"`
}

// IsProduction сообщает, запущен ли сервис в production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.readTimeout", 10*time.Second)
	v.SetDefault("app.writeTimeout", 10*time.Second)
	v.SetDefault("app.shutdownTimeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.maxConns", 10)
	v.SetDefault("database.minConns", 2)
	v.SetDefault("database.migrate", true)

	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", 15*time.Minute)

	v.SetDefault("kafka.groupId", "subscription-notifier")
	v.SetDefault("kafka.ensureTopics", true)
	v.SetDefault("kafka.notifierEnabled", true)

	v.SetDefault("razorpay.timeout", 10*time.Second)
	v.SetDefault("razorpay.maxElapsed", 30*time.Second)
	v.SetDefault("razorpay.defaultCurrency", "USD")

	v.SetDefault("auth.accessTokenTTL", 24*time.Hour)
	v.SetDefault("auth.refreshTokenTTL", 100*24*time.Hour)
	v.SetDefault("auth.adminTokenTTL", 12*time.Hour)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxUploadBytes", 5<<20)
}

// LoadConfig загружает конфигурацию из YAML файла, .env и переменных окружения.
// Переменные окружения имеют приоритет: app.port -> APP_PORT.
// Отсутствующий файл конфигурации не является ошибкой.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // Чтение переменных окружения

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	// AutomaticEnv не видит ключи, которых нет ни в файле, ни в defaults
	for _, key := range []string{
		"database.dsn", "redis.addr", "redis.password", "kafka.brokers",
		"razorpay.keyId", "razorpay.keySecret", "auth.jwtSecret", "auth.adminJwtSecret",
		"auth.cookieDomain", "auth.cookieSecure",
		"mail.serverToken", "mail.accountToken", "mail.senderEmail", "mail.supportEmail",
		"storage.bucket", "storage.endpoint", "storage.accessKeyId", "storage.secretAccessKey",
		"storage.publicBaseUrl", "firebase.projectId", "firebase.credentialsFile",
		"subscriptions.selfServiceUpsert",
	} {
		_ = v.BindEnv(key)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Kafka.Brokers = splitList(config.Kafka.Brokers)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	var problems []string
	if c.Database.Driver != "memory" && c.Database.DSN == "" {
		problems = append(problems, "database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		problems = append(problems, "auth.jwtSecret is required")
	}
	if c.Auth.AdminJWTSecret == "" {
		problems = append(problems, "auth.adminJwtSecret is required")
	}
	if c.Auth.JWTSecret != "" && c.Auth.JWTSecret == c.Auth.AdminJWTSecret {
		problems = append(problems, "auth.adminJwtSecret must differ from auth.jwtSecret")
	}
	if c.Razorpay.KeySecret == "" {
		problems = append(problems, "razorpay.keySecret is required")
	}
	if c.IsProduction() && c.Database.Driver == "memory" {
		problems = append(problems, "memory storage is not allowed in production")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// splitList разбирает "a,b" из переменной окружения в список
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
