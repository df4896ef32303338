package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"expenses/internal/config"
	"expenses/internal/core"
	"expenses/internal/log"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"CONFIG_FILE":  "",
		"APP_ENV":      config.EnvTest,
		"PORT":         "8081",
		"LOG_LEVEL":    "debug",
		"LOG_FORMAT":   "json",
		"DATA_BACKEND": config.BackendMemory,
		"AMQP_URL":     "",

		"GOOGLE_SPREADSHEET_ID": "",
	}
}

func TestLoadConfig(t *testing.T) {
	setEnv(t, baseEnv())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.DataBackend != config.BackendMemory || cfg.LogFormat != "json" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	env := baseEnv()
	env["DATA_BACKEND"] = "oracle"
	setEnv(t, env)

	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "invalid data backend") {
		t.Fatalf("expected backend validation error, got %v", err)
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)
	if logger.Component() != log.ComponentWorker {
		t.Errorf("component = %q", logger.Component())
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug level should be enabled")
	}
	if slog.Default() != logger.Logger {
		t.Error("logger should be installed as default")
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DataBackend:  config.BackendSQLite,
		SQLiteDBPath: filepath.Join(t.TempDir(), "expenses.db"),
	}

	res, err := OpenStore(ctx, cfg, log.Discard())
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer res.Cleanup()

	id, err := res.Store.InsertExpense(ctx, core.Expense{Payee: "Starbucks", Amount: 5.75, Date: core.NewDate(2017, 6, 1)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != 1 {
		t.Errorf("first id = %d, want 1", id)
	}
}

func TestOpenStoreInvalidBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{DataBackend: "oracle"}, log.Discard())
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestConnectAMQPDisabled(t *testing.T) {
	client, err := ConnectAMQP(&config.Config{}, log.Discard())
	if err != nil || client != nil {
		t.Fatalf("ConnectAMQP() = %v, %v; want nil, nil", client, err)
	}
}
