package config

import (
	"os"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Booking    BookingConfig
	Gateway    GatewayConfig
	Cloudinary CloudinaryConfig
	Firebase   FirebaseConfig
	Rabbit     RabbitConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int
	RateWindow   time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | postgres | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type BookingConfig struct {
	SlotDuration        time.Duration
	Timezone            string
	DefaultRadiusMeters float64
	NotifyQueueSize     int
}

// Location resolves Timezone, falling back to UTC.
func (b BookingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil || b.Timezone == "" {
		return time.UTC
	}
	return loc
}

// GatewayConfig for the hosted checkout payment gateway.
type GatewayConfig struct {
	BaseURL         string
	StoreID         string
	StorePassword   string
	CallbackBaseURL string // e.g. https://api.example.com; callbacks become CallbackBaseURL + /api/v1/payments/gateway/{success,fail,cancel,ipn}
	WebhookSecret   string
	Currency        string
	Timeout         time.Duration
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type RabbitConfig struct {
	URL      string
	Exchange string
}

type LogConfig struct {
	ServiceName string
	Level       string
}

func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Server: ServerConfig{
			Port:         cast.ToString(getOrReturnDefault("HTTP_PORT", "8099")),
			Env:          cast.ToString(getOrReturnDefault("APP_ENV", "development")),
			ReadTimeout:  cast.ToDuration(getOrReturnDefault("HTTP_READ_TIMEOUT", "10s")),
			WriteTimeout: cast.ToDuration(getOrReturnDefault("HTTP_WRITE_TIMEOUT", "10s")),
			RateLimit:    cast.ToInt(getOrReturnDefault("RATE_LIMIT", 100)),
			RateWindow:   cast.ToDuration(getOrReturnDefault("RATE_WINDOW", "60s")),
		},
		Database: DatabaseConfig{
			Driver:          cast.ToString(getOrReturnDefault("DB_DRIVER", "mysql")),
			DSN:             cast.ToString(getOrReturnDefault("DB_DSN", "root:@tcp(localhost:3306)/fieldserve?charset=utf8mb4&parseTime=True&loc=UTC")),
			MaxIdleConns:    cast.ToInt(getOrReturnDefault("DB_MAX_IDLE", 10)),
			MaxOpenConns:    cast.ToInt(getOrReturnDefault("DB_MAX_OPEN", 100)),
			ConnMaxLifetime: cast.ToDuration(getOrReturnDefault("DB_CONN_MAX_LIFETIME", "1h")),
		},
		JWT: JWTConfig{
			AccessSecret: cast.ToString(getOrReturnDefault("JWT_ACCESS_SECRET", "change-me-in-production")),
			AccessExpiry: cast.ToDuration(getOrReturnDefault("JWT_ACCESS_EXPIRY", "15m")),
			Issuer:       cast.ToString(getOrReturnDefault("JWT_ISSUER", "fieldserve")),
		},
		Booking: BookingConfig{
			SlotDuration:        time.Duration(cast.ToInt(getOrReturnDefault("BOOKING_SLOT_MINUTES", 90))) * time.Minute,
			Timezone:            cast.ToString(getOrReturnDefault("BOOKING_TIMEZONE", "UTC")),
			DefaultRadiusMeters: cast.ToFloat64(getOrReturnDefault("SEARCH_DEFAULT_RADIUS_M", 10000)),
			NotifyQueueSize:     cast.ToInt(getOrReturnDefault("NOTIFY_QUEUE_SIZE", 256)),
		},
		Gateway: GatewayConfig{
			BaseURL:         cast.ToString(getOrReturnDefault("GATEWAY_BASE_URL", "https://sandbox.gateway.local")),
			StoreID:         cast.ToString(getOrReturnDefault("GATEWAY_STORE_ID", "")),
			StorePassword:   cast.ToString(getOrReturnDefault("GATEWAY_STORE_PASSWORD", "")),
			CallbackBaseURL: cast.ToString(getOrReturnDefault("GATEWAY_CALLBACK_BASE_URL", "http://localhost:8099")),
			WebhookSecret:   cast.ToString(getOrReturnDefault("GATEWAY_WEBHOOK_SECRET", "")),
			Currency:        cast.ToString(getOrReturnDefault("GATEWAY_CURRENCY", "BDT")),
			Timeout:         cast.ToDuration(getOrReturnDefault("GATEWAY_TIMEOUT", "30s")),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: cast.ToString(getOrReturnDefault("CLOUDINARY_CLOUD_NAME", "")),
			APIKey:    cast.ToString(getOrReturnDefault("CLOUDINARY_API_KEY", "")),
			APISecret: cast.ToString(getOrReturnDefault("CLOUDINARY_API_SECRET", "")),
			Folder:    cast.ToString(getOrReturnDefault("CLOUDINARY_FOLDER", "fieldserve")),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: cast.ToString(getOrReturnDefault("FIREBASE_SERVICE_ACCOUNT_PATH", "")),
		},
		Rabbit: RabbitConfig{
			URL:      cast.ToString(getOrReturnDefault("RABBIT_URL", "")),
			Exchange: cast.ToString(getOrReturnDefault("RABBIT_EXCHANGE", "booking.events")),
		},
		Log: LogConfig{
			ServiceName: cast.ToString(getOrReturnDefault("SERVICE_NAME", "fieldserve")),
			Level:       cast.ToString(getOrReturnDefault("LOG_LEVEL", "info")),
		},
	}
}

func getOrReturnDefault(key string, defaultValue interface{}) interface{} {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}
