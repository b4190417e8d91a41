package cardtable

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Addr == "" {
		t.Error("expected a default address")
	}
	if cfg.DatabaseURL == "" {
		t.Error("expected a default database URL")
	}
	if cfg.BatchRate <= 0 || cfg.BatchBurst <= 0 {
		t.Errorf("expected positive rate defaults, got %v/%v", cfg.BatchRate, cfg.BatchBurst)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "0.0.0.0:9999")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("BATCH_RATE", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Addr != "0.0.0.0:9999" {
		t.Errorf("expected PORT to win, got %v", cfg.Addr)
	}
	if !cfg.DevMode {
		t.Error("expected dev mode on")
	}
	if cfg.BatchRate != 5 {
		t.Errorf("expected rate 5, got %v", cfg.BatchRate)
	}
}
