// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Ledger      LedgerConfig
	Identities  IdentitiesConfig
	Content     ContentConfig
	AWS         AWSConfig
	Pinata      PinataConfig
	I18n        I18nConfig
	Log         LogConfig
	Frontend    FrontendConfig
}

type FrontendConfig struct {
	AllowedOrigins []string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
	// RateLimitRPS of zero disables request rate limiting.
	RateLimitRPS    float64
	RateLimitBurst  int
	UploadPerMinute int
}

type DatabaseConfig struct {
	Driver       string
	SQLitePath   string
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
	AutoMigrate  bool
}

type JWTConfig struct {
	SecretKey      string
	AccessTokenTTL int // in hours
}

type LedgerConfig struct {
	Backend         string
	RPCURL          string
	ContractAddress string
	// GenesisBalance is credited, in ether, to every identity of a local ledger.
	GenesisBalance string
	DialTimeout    int
}

// IdentitiesConfig holds the hex private keys of the signing personas.
type IdentitiesConfig struct {
	CreatorPrivateKey   string
	PurchaserPrivateKey string
	OwnerPrivateKey     string
}

type ContentConfig struct {
	Backend      string
	MaxSize      int64 // in bytes
	AllowedTypes []string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	Endpoint        string
}

type PinataConfig struct {
	APIURL    string
	APIKey    string
	SecretKey string
}

type I18nConfig struct {
	DefaultLocale string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "3001"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 120),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),

			RateLimitRPS:    getEnvAsFloat("RATE_LIMIT_RPS", 10),
			RateLimitBurst:  getEnvAsInt("RATE_LIMIT_BURST", 20),
			UploadPerMinute: getEnvAsInt("UPLOAD_RATE_PER_MINUTE", 10),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "sqlite"),
			SQLitePath:   getEnv("DB_SQLITE_PATH", "authchain.db"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "authchain"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", defaultJWTSecret),
			AccessTokenTTL: getEnvAsInt("JWT_ACCESS_TTL", 24),
		},
		Ledger: LedgerConfig{
			Backend:         getEnv("LEDGER_BACKEND", "local"),
			RPCURL:          getEnv("RPC_URL", ""),
			ContractAddress: getEnv("CONTRACT_ADDRESS", ""),
			GenesisBalance:  getEnv("LEDGER_GENESIS_BALANCE", "10000"),
			DialTimeout:     getEnvAsInt("LEDGER_DIAL_TIMEOUT", 10),
		},
		Identities: IdentitiesConfig{
			CreatorPrivateKey:   getEnv("CREATOR_PRIVATE_KEY", ""),
			PurchaserPrivateKey: getEnv("USER_PRIVATE_KEY", ""),
			OwnerPrivateKey:     getEnv("OWNER_PRIVATE_KEY", ""),
		},
		Content: ContentConfig{
			Backend:      getEnv("CONTENT_BACKEND", "memory"),
			MaxSize:      int64(getEnvAsInt("CONTENT_MAX_SIZE_MB", 50)) * 1024 * 1024,
			AllowedTypes: getEnvAsList("CONTENT_ALLOWED_TYPES", []string{".jpg", ".jpeg", ".png", ".gif", ".pdf", ".mp4", ".mp3", ".wav", ".zip"}),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			S3Bucket:        getEnv("AWS_S3_BUCKET", "authchain-works"),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
		},
		Pinata: PinataConfig{
			APIURL:    getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			APIKey:    getEnv("PINATA_API_KEY", ""),
			SecretKey: getEnv("PINATA_SECRET_KEY", ""),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Frontend: FrontendConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == defaultJWTSecret && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.Password == "" && c.Environment == "production" {
			return fmt.Errorf("database password is required in production")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Ledger.Backend {
	case "local":
	case "ethereum":
		if c.Ledger.RPCURL == "" {
			return fmt.Errorf("RPC_URL is required for the ethereum ledger")
		}
		if c.Ledger.ContractAddress == "" {
			return fmt.Errorf("CONTRACT_ADDRESS is required for the ethereum ledger")
		}
		if c.Identities.CreatorPrivateKey == "" || c.Identities.PurchaserPrivateKey == "" {
			return fmt.Errorf("CREATOR_PRIVATE_KEY and USER_PRIVATE_KEY are required for the ethereum ledger")
		}
	default:
		return fmt.Errorf("unsupported ledger backend %q", c.Ledger.Backend)
	}

	switch c.Content.Backend {
	case "memory":
	case "s3":
		if c.AWS.S3Bucket == "" {
			return fmt.Errorf("AWS_S3_BUCKET is required for the s3 content backend")
		}
	case "pinata":
		if c.Pinata.APIKey == "" || c.Pinata.SecretKey == "" {
			return fmt.Errorf("PINATA_API_KEY and PINATA_SECRET_KEY are required for the pinata content backend")
		}
	default:
		return fmt.Errorf("unsupported content backend %q", c.Content.Backend)
	}

	return nil
}

// RequireKeys reports whether every signing key must be configured rather than
// generated at start-up.
func (c *Config) RequireKeys() bool {
	return c.Ledger.Backend == "ethereum" || c.Environment == "production"
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
