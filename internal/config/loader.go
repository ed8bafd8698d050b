package config

import (
	"log/slog"

	"github.com/spf13/viper"

	"github.com/tmasson/registre/internal/db"
)

// Config is the application configuration assembled from config.yaml and
// REGISTRE_-prefixed environment variables.
type Config struct {
	Database        db.Config
	ListenAddr      string
	AllowedOrigins  []string
	ImportBatchSize int
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Database:        db.DefaultConfig(),
		ListenAddr:      ":8090",
		AllowedOrigins:  []string{"http://localhost:3000"},
		ImportBatchSize: 100,
	}
}

// Load reads config.yaml from configPath, applying environment overrides on
// top of defaults. A missing file is not an error.
func Load(configPath string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("REGISTRE")

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.listen")
	v.BindEnv("import.batch_size")

	if err := v.ReadInConfig(); err != nil {
		slog.Info("no config.yaml found, using defaults and env vars")
	} else {
		slog.Info("loaded config.yaml", "path", v.ConfigFileUsed())
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.listen") {
		cfg.ListenAddr = v.GetString("server.listen")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("import.batch_size") {
		if size := v.GetInt("import.batch_size"); size > 0 {
			cfg.ImportBatchSize = size
		}
	}

	return cfg, nil
}
