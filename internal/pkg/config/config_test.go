package config

import (
	"os"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("eggtrail-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Routing.AverageSpeedKmh != 30 {
		t.Errorf("routing.average_speed_kmh = %v", cfg.Routing.AverageSpeedKmh)
	}
	if len(cfg.Routing.ConfidenceTiers) != 3 || cfg.Routing.ConfidenceTiers[0].Score != 0.95 {
		t.Errorf("unexpected tiers: %+v", cfg.Routing.ConfidenceTiers)
	}
	if cfg.Sync.InitialBackoffMs != 1000 || cfg.Sync.MaxBackoffMs != 60000 || cfg.Sync.MaxAttempts != 10 {
		t.Errorf("unexpected sync config: %+v", cfg.Sync)
	}
	if cfg.Telemetry.ServiceName != "eggtrail-test" {
		t.Errorf("telemetry.service_name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("EGGTRAIL_SERVER_PORT", "9090")
	t.Setenv("EGGTRAIL_ROUTING_AVERAGE_SPEED_KMH", "45")

	cfg, err := Load("eggtrail-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d", cfg.Server.Port)
	}
	if cfg.Routing.AverageSpeedKmh != 45 {
		t.Errorf("routing.average_speed_kmh = %v", cfg.Routing.AverageSpeedKmh)
	}
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "u", DBName: "db"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379"},
		Routing: RoutingConfig{
			AverageSpeedKmh:    30,
			ConfidenceTiers:    []ConfidenceTier{{MaxKm: 1, Score: 0.95}, {MaxKm: 5, Score: 0.8}},
			FallbackConfidence: 0.3,
		},
		Sync: SyncConfig{InitialBackoffMs: 1000, MaxBackoffMs: 60000, MaxAttempts: 10},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"zero speed", func(c *Config) { c.Routing.AverageSpeedKmh = 0 }, "average_speed_kmh"},
		{"tiers not increasing", func(c *Config) {
			c.Routing.ConfidenceTiers = []ConfidenceTier{{MaxKm: 5, Score: 0.95}, {MaxKm: 1, Score: 0.8}}
		}, "confidence_tiers[1]"},
		{"fallback too high", func(c *Config) { c.Routing.FallbackConfidence = 0.9 }, "fallback_confidence"},
		{"backoff inverted", func(c *Config) { c.Sync.MaxBackoffMs = 10 }, "sync backoff"},
		{"no attempts", func(c *Config) { c.Sync.MaxAttempts = 0 }, "sync.max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}
