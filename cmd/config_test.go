package cmd_test

import (
	"errors"
	"testing"

	"db-siard/cmd"
	"db-siard/internal/failure"

	"github.com/spf13/viper"
)

func setDatabases(t *testing.T, dbs ...map[string]any) {
	t.Helper()
	list := make([]any, len(dbs))
	for i, d := range dbs {
		list[i] = d
	}
	viper.Set("databases", list)
	t.Cleanup(func() { viper.Set("databases", nil) })
}

func TestGetActiveDBConfig(t *testing.T) {
	setDatabases(t,
		map[string]any{"name": "a", "driver": "mysql", "dsn": "root@/a", "active": false},
		map[string]any{"name": "b", "driver": "sqlite", "dsn": "file:b.db", "active": true},
	)
	cfg, err := cmd.GetActiveDBConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "b" || cfg.Driver != "sqlite" || cfg.DSN != "file:b.db" {
		t.Errorf("Expected database b, got %+v", cfg)
	}
}

func TestGetActiveDBConfig_ExactlyOne(t *testing.T) {
	setDatabases(t,
		map[string]any{"name": "a", "driver": "mysql", "dsn": "x", "active": true},
		map[string]any{"name": "b", "driver": "mysql", "dsn": "y", "active": true},
	)
	if _, err := cmd.GetActiveDBConfig(); !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected configuration error for two active databases, got %v", err)
	}

	setDatabases(t, map[string]any{"name": "a", "driver": "mysql", "dsn": "x"})
	if _, err := cmd.GetActiveDBConfig(); !errors.Is(err, failure.ErrConfiguration) {
		t.Errorf("Expected configuration error without an active database, got %v", err)
	}
}
