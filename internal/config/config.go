package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string
	ServerPort  int

	DBDriver       string
	DatabaseURL    string
	CreateDatabase bool

	JWTSecret      []byte
	JWTAlgorithm   string
	AccessTokenTTL time.Duration

	Admin AdminConfig

	RedisURL string
	ES       ESConfig

	KafkaBrokers []string
	KafkaTopic   string

	CORSAllowOrigins []string

	LogLevel string
	LogFile  string
}

// AdminConfig describes the account provisioned at startup. It is only used
// when all three fields are set.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

func (a AdminConfig) Enabled() bool {
	return a.Username != "" && a.Email != "" && a.Password != ""
}

type ESConfig struct {
	URL      string
	User     string
	Password string
	Index    string
}

func defaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "product-api")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_CREATE_DATABASE", false)
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("ES_INDEX", "products")
	v.SetDefault("KAFKA_TOPIC", "product_events")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads .env (when present) into the process environment and then
// resolves every setting from the environment with defaults applied.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ServiceName: v.GetString("SERVICE_NAME"),
		ServerPort:  v.GetInt("SERVER_PORT"),

		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		CreateDatabase: v.GetBool("DB_CREATE_DATABASE"),

		JWTSecret:      []byte(v.GetString("JWT_SECRET")),
		JWTAlgorithm:   strings.ToUpper(v.GetString("JWT_ALGORITHM")),
		AccessTokenTTL: time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,

		Admin: AdminConfig{
			Username: v.GetString("ADMIN_USERNAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},

		RedisURL: v.GetString("REDIS_URL"),
		ES: ESConfig{
			URL:      v.GetString("ES_URL"),
			User:     v.GetString("ES_USER"),
			Password: v.GetString("ES_PASSWORD"),
			Index:    v.GetString("ES_INDEX"),
		},

		KafkaBrokers: CSV(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),

		CORSAllowOrigins: CSV(v.GetString("CORS_ALLOW_ORIGINS")),

		LogLevel: v.GetString("LOG_LEVEL"),
		LogFile:  v.GetString("LOG_FILE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) == 0 {
		return errors.New("missing required env JWT_SECRET")
	}
	if c.DatabaseURL == "" {
		return errors.New("missing required env DATABASE_URL")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.ServerPort <= 0 {
		c.ServerPort = 8080
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
