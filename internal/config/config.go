package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32    `mapstructure:"DB_MIN_CONNS"`
	PackageDir   string   `mapstructure:"PACKAGE_DIR"`
	TxAuth       string   `mapstructure:"TX_AUTH"`
	HTTPRetryMax int      `mapstructure:"HTTP_RETRY_MAX"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`
}

// Credential carries basic-auth credentials for one terminology server.
type Credential struct {
	Username string
	Password string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("HTTP_RETRY_MAX", 4)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("PACKAGE_DIR")
	v.BindEnv("TX_AUTH")
	v.BindEnv("HTTP_RETRY_MAX")
	v.BindEnv("CORS_ORIGINS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// TxCredentials parses TX_AUTH into per-server credentials. The format is a
// comma-separated list of entries shaped "base-url|user:password", e.g.
//
//	TX_AUTH=https://fhir.loinc.org|alice:secret,https://tx.fhir.org/r4/|bob:pw
//
// The base URL is everything up to the last "|" so URLs containing pipes
// still parse.
func (c *Config) TxCredentials() (map[string]Credential, error) {
	if c.TxAuth == "" {
		return nil, nil
	}
	creds := make(map[string]Credential)
	for _, entry := range strings.Split(c.TxAuth, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		sep := strings.LastIndex(entry, "|")
		if sep < 0 {
			return nil, fmt.Errorf("TX_AUTH entry %q: expected \"base-url|user:password\"", entry)
		}
		server := entry[:sep]
		userPass := entry[sep+1:]
		user, pass, ok := strings.Cut(userPass, ":")
		if !ok || server == "" || user == "" {
			return nil, fmt.Errorf("TX_AUTH entry %q: expected \"base-url|user:password\"", entry)
		}
		creds[server] = Credential{Username: user, Password: pass}
	}
	return creds, nil
}
