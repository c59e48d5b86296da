package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("NOTIFIER_WORKERS", "abc")
	t.Setenv("SERVICE_NAME", "   ")

	cfg := Load()
	if cfg.StoreDriver != "postgres" {
		t.Fatalf("store driver = %q, want postgres", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected no brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.NotifierWorkers != 4 {
		t.Fatalf("workers = %d, want fallback 4", cfg.NotifierWorkers)
	}
	if cfg.ServiceName != "canteen-api" {
		t.Fatalf("blank service name should fall back, got %q", cfg.ServiceName)
	}
	if cfg.PostgresMaxConns != 8 {
		t.Fatalf("max conns = %d, want 8", cfg.PostgresMaxConns)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Pebble")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("INBOX_LIMIT", "50")
	t.Setenv("POSTGRES_MAX_CONNS", "16")

	cfg := Load()
	if cfg.StoreDriver != "pebble" {
		t.Fatalf("store driver = %q", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if cfg.InboxLimit != 50 {
		t.Fatalf("inbox limit = %d", cfg.InboxLimit)
	}
	if cfg.PostgresMaxConns != 16 {
		t.Fatalf("max conns = %d", cfg.PostgresMaxConns)
	}
}
