package cardtable

import "github.com/caarlos0/env/v11"

// Config is the server's environment-derived configuration.
type Config struct {
	Addr        string  `env:"PORT" envDefault:"localhost:8080"`
	DatabaseURL string  `env:"DATABASE_URL" envDefault:"postgres://localhost/cardtable?sslmode=disable"`
	SIDKey      string  `env:"SID_KEY_1" envDefault:"aaa="`
	DevMode     bool    `env:"DEV_MODE"`
	BatchRate   float64 `env:"BATCH_RATE" envDefault:"30"`
	BatchBurst  int     `env:"BATCH_BURST" envDefault:"60"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
