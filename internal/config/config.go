package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "campusknot-dev-secret-change-me-in-production"

type AppConfig struct {
	Env         string
	Name        string
	EmailDomain string
	SeedDemo    bool
}

type LogConfig struct {
	Level     string
	Format    string
	Component string
	Source    bool
}

type DBConfig struct {
	Driver     string
	DSN        string
	Host       string
	Port       string
	User       string
	Password   string
	Name       string
	SQLitePath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type HTTPConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Host            string
	Port            string
	ShutdownTimeout time.Duration
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type MailConfig struct {
	From           string
	SendGridAPIKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
}

type StorageConfig struct {
	Driver      string
	LocalDir    string
	PublicBase  string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

type UploadConfig struct {
	PhotoMaxBytes int64
	MediaMaxBytes int64
}

type RateLimitConfig struct {
	Window time.Duration
	API    int
	Auth   int
	OTP    int
	// TrustProxy keys clients by True-Client-IP, X-Real-IP or
	// X-Forwarded-For instead of the socket address.
	TrustProxy bool
}

type Config struct {
	App       AppConfig
	Log       LogConfig
	DB        DBConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	JWT       JWTConfig
	Mail      MailConfig
	Storage   StorageConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
}

// New reads configuration from the environment and an optional dotenv file
// (CONFIG_FILE, default ".env"). Missing files are ignored.
func New() *Config {
	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	v.SetConfigFile(v.GetString("CONFIG_FILE"))
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	cfg := &Config{}

	// App
	cfg.App.Env = strings.ToLower(v.GetString("APP_ENV"))
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.EmailDomain = strings.ToLower(v.GetString("EMAIL_DOMAIN"))
	cfg.App.SeedDemo = v.GetBool("SEED_DEMO")

	// Logger
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.Log.Component = v.GetString("LOG_COMPONENT")
	cfg.Log.Source = v.GetBool("LOG_SOURCE")

	// Database
	cfg.DB.SQLitePath = v.GetString("SQLITE_PATH")
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	switch {
	case cfg.DB.Driver == "postgres" || (cfg.DB.Driver == "" && v.GetString("DATABASE_URL") != ""):
		cfg.DB.Driver = "postgres"
		cfg.DB.DSN = v.GetString("DATABASE_URL")
	case cfg.DB.Driver == "mysql" || (cfg.DB.Driver == "" && (v.GetString("MYSQL_DSN") != "" || v.GetString("DB_HOST") != "")):
		cfg.DB.Driver = "mysql"
		cfg.DB.DSN = v.GetString("MYSQL_DSN")
		if cfg.DB.DSN == "" {
			cfg.DB.Host = stringOr(v.GetString("DB_HOST"), "localhost")
			cfg.DB.Port = v.GetString("DB_PORT")
			cfg.DB.User = v.GetString("DB_USER")
			cfg.DB.Password = v.GetString("DB_PASSWORD")
			cfg.DB.Name = v.GetString("DB_NAME")

			cfg.DB.DSN = fmt.Sprintf(
				"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
				cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
			)
		}
	default:
		cfg.DB.Driver = "sqlite"
		cfg.DB.DSN = cfg.DB.SQLitePath
	}

	// Redis
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// HTTP
	cfg.HTTP.Host = v.GetString("HTTP_HOST")
	cfg.HTTP.Port = v.GetString("PORT")
	cfg.HTTP.ReadTimeout = v.GetDuration("HTTP_READ_TIMEOUT")
	cfg.HTTP.WriteTimeout = v.GetDuration("HTTP_WRITE_TIMEOUT")
	cfg.HTTP.ShutdownTimeout = v.GetDuration("HTTP_SHUTDOWN_TIMEOUT")

	// gRPC
	cfg.GRPC.Host = v.GetString("GRPC_HOST")
	cfg.GRPC.Port = v.GetString("GRPC_PORT")
	cfg.GRPC.ShutdownTimeout = v.GetDuration("GRPC_SHUTDOWN_TIMEOUT")

	// JWT
	cfg.JWT.Secret = v.GetString("JWT_SECRET")
	cfg.JWT.TTL = v.GetDuration("JWT_TTL")

	// Mail
	cfg.Mail.From = v.GetString("EMAIL_FROM")
	cfg.Mail.SendGridAPIKey = v.GetString("SENDGRID_API_KEY")
	cfg.Mail.SMTPHost = v.GetString("SMTP_HOST")
	cfg.Mail.SMTPPort = v.GetInt("SMTP_PORT")
	cfg.Mail.SMTPUser = v.GetString("SMTP_USER")
	cfg.Mail.SMTPPassword = v.GetString("SMTP_PASSWORD")

	// Storage
	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.LocalDir = v.GetString("UPLOAD_DIR")
	cfg.Storage.PublicBase = v.GetString("UPLOAD_PUBLIC_BASE")
	cfg.Storage.S3Bucket = v.GetString("S3_BUCKET")
	cfg.Storage.S3Region = v.GetString("S3_REGION")
	cfg.Storage.S3Endpoint = v.GetString("S3_ENDPOINT")
	cfg.Storage.S3AccessKey = v.GetString("S3_ACCESS_KEY_ID")
	cfg.Storage.S3SecretKey = v.GetString("S3_SECRET_ACCESS_KEY")
	cfg.Storage.S3PublicURL = strings.TrimRight(v.GetString("S3_PUBLIC_URL"), "/")

	// Uploads
	cfg.Upload.PhotoMaxBytes = v.GetInt64("PHOTO_MAX_BYTES")
	cfg.Upload.MediaMaxBytes = v.GetInt64("MEDIA_MAX_BYTES")

	// Rate limits
	cfg.RateLimit.Window = v.GetDuration("RATE_LIMIT_WINDOW")
	cfg.RateLimit.API = v.GetInt("RATE_LIMIT_API")
	cfg.RateLimit.Auth = v.GetInt("RATE_LIMIT_AUTH")
	cfg.RateLimit.OTP = v.GetInt("RATE_LIMIT_OTP")
	cfg.RateLimit.TrustProxy = v.GetBool("RATE_LIMIT_TRUST_PROXY")

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONFIG_FILE", ".env")

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "campusknot")
	v.SetDefault("EMAIL_DOMAIN", "@nitk.edu.in")
	v.SetDefault("SEED_DEMO", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_COMPONENT", "api")
	v.SetDefault("LOG_SOURCE", false)

	v.SetDefault("SQLITE_PATH", "campusknot.db")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "root")
	v.SetDefault("DB_NAME", "campusknot")

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("PORT", "3000")
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second)

	v.SetDefault("GRPC_HOST", "127.0.0.1")
	v.SetDefault("GRPC_PORT", "50051")
	v.SetDefault("GRPC_SHUTDOWN_TIMEOUT", 5*time.Second)

	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("JWT_TTL", 30*24*time.Hour)

	v.SetDefault("EMAIL_FROM", "noreply@campusknot.app")
	v.SetDefault("SMTP_PORT", 587)

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("UPLOAD_PUBLIC_BASE", "/uploads")
	v.SetDefault("S3_REGION", "auto")

	v.SetDefault("PHOTO_MAX_BYTES", 10<<20)
	v.SetDefault("MEDIA_MAX_BYTES", 15<<20)

	v.SetDefault("RATE_LIMIT_WINDOW", 15*time.Minute)
	v.SetDefault("RATE_LIMIT_API", 2000)
	v.SetDefault("RATE_LIMIT_AUTH", 100)
	v.SetDefault("RATE_LIMIT_OTP", 20)
	v.SetDefault("RATE_LIMIT_TRUST_PROXY", false)
}

// IsProduction reports whether APP_ENV is "production".
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate rejects settings that must never reach a production deployment.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if !c.IsProduction() {
		return nil
	}
	if c.JWT.Secret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	if c.DB.Driver == "sqlite" {
		return errors.New("DATABASE_URL or MYSQL_DSN is required in production")
	}
	if c.Storage.Driver == "s3" && c.Storage.S3Bucket == "" {
		return errors.New("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}
	return nil
}

func stringOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
