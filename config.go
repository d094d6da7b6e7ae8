// Config loading from env and an optional .env file using Viper.
package telltale

import (
	"errors"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment. It is
// built once at process start and passed to the components that need it; no
// package carries ambient configuration globals.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// StoreBackend selects the user store: "mongo", "gorm" or "fs".
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	// MongoURI is the MongoDB connection string (mongo backend).
	MongoURI string `mapstructure:"MONGO_URI"`
	// MongoDB is the MongoDB database name (mongo backend).
	MongoDB string `mapstructure:"MONGO_DB"`
	// DatabaseURL is the Postgres DSN (gorm backend).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// StoragePath is the data directory for the fs backend.
	StoragePath string `mapstructure:"STORAGE_PATH"`
	// GoogleClientID is the OAuth client id for Google login.
	GoogleClientID string `mapstructure:"GOOGLE_CLIENT_ID"`
	// GoogleClientSecret is the OAuth client secret for Google login.
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	// GoogleCallbackURL is the OAuth redirect URL registered with Google.
	GoogleCallbackURL string `mapstructure:"GOOGLE_CALLBACK_URL"`
	// SessionSecret signs API access tokens. Required in production.
	SessionSecret string `mapstructure:"SESSION_SECRET"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// LoadConfig reads .env (if present), then builds and validates Config from
// the environment via Viper. Missing .env is ignored (e.g. in CI); env vars
// override .env.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("STORE_BACKEND", "mongo")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DB", "userDB")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORAGE_PATH", "./data")
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_CALLBACK_URL", "http://localhost:3000/auth/google/secrets")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	switch cfg.StoreBackend {
	case "mongo", "gorm", "fs":
	default:
		return nil, errors.New("config: STORE_BACKEND must be one of mongo, gorm, fs")
	}
	if cfg.StoreBackend == "gorm" && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set for the gorm backend")
	}
	if cfg.SessionSecret == "" {
		if cfg.Env == "production" {
			return nil, errors.New("config: SESSION_SECRET must be set when APP_ENV=production")
		}
		cfg.SessionSecret = "telltale-dev-secret"
	}

	return &cfg, nil
}
