package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadRequiresLicenseSecret(t *testing.T) {
	t.Setenv("LICENSE_SECRET", "")
	t.Setenv("JWT_SECRET", "test-jwt-secret")

	_, err := Load()
	if !errors.Is(err, ErrMissingLicenseSecret) {
		t.Fatalf("expected ErrMissingLicenseSecret, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LICENSE_SECRET", "test-license-secret")
	t.Setenv("JWT_SECRET", "test-jwt-secret")
	t.Setenv("DEVICE_POLL_LIMIT", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.License.TrialQuota != 3 {
		t.Errorf("TrialQuota = %d, want 3", cfg.License.TrialQuota)
	}
	if cfg.Device.CodeTTL != 10*time.Minute {
		t.Errorf("CodeTTL = %v, want 10m", cfg.Device.CodeTTL)
	}
	if cfg.Device.CompletedTTL != 5*time.Minute {
		t.Errorf("CompletedTTL = %v, want 5m", cfg.Device.CompletedTTL)
	}
	if cfg.Device.PollLimit.Limit != 20 {
		t.Errorf("PollLimit = %d, want 20", cfg.Device.PollLimit.Limit)
	}
	if cfg.Jobs.EventRetention != 90*24*time.Hour {
		t.Errorf("EventRetention = %v, want 2160h", cfg.Jobs.EventRetention)
	}
	if cfg.License.Product != "KYB" {
		t.Errorf("Product = %s, want KYB", cfg.License.Product)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite"},
			Auth:     AuthConfig{JWTSecret: "s3cret"},
			License:  LicenseConfig{Secret: "license-secret", TrialQuota: 3},
			Device:   DeviceConfig{CodeTTL: 10 * time.Minute, CompletedTTL: 5 * time.Minute},
			Jobs:     JobsConfig{EventRetention: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"default jwt secret", func(c *Config) { c.Auth.JWTSecret = "supersecretkey" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"negative quota", func(c *Config) { c.License.TrialQuota = -1 }, true},
		{"completed ttl too long", func(c *Config) { c.Device.CompletedTTL = time.Hour }, true},
		{"zero event retention", func(c *Config) { c.Jobs.EventRetention = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
