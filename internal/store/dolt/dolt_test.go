package dolt

import "testing"

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.ServerHost != "127.0.0.1" || cfg.ServerPort != 3307 {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.ServerUser != "root" || cfg.Database != "queue_engine" {
		t.Fatalf("unexpected identity defaults: %+v", cfg)
	}
	if cfg.ConnectTimeout <= 0 {
		t.Fatalf("expected a positive connect timeout default")
	}
}

func TestConfigWithDefaultsPreservesOverrides(t *testing.T) {
	cfg := Config{ServerHost: "dolt.internal", Database: "custom"}.withDefaults()
	if cfg.ServerHost != "dolt.internal" || cfg.Database != "custom" {
		t.Fatalf("expected explicit overrides to survive withDefaults, got %+v", cfg)
	}
}

func TestBuildServerDSN(t *testing.T) {
	cfg := Config{ServerHost: "127.0.0.1", ServerPort: 3307, ServerUser: "root", Database: "queue_engine"}
	dsn := buildServerDSN(cfg)
	want := "root@tcp(127.0.0.1:3307)/queue_engine?parseTime=true"
	if dsn != want {
		t.Fatalf("expected %q, got %q", want, dsn)
	}
}

func TestBuildServerDSNWithPassword(t *testing.T) {
	cfg := Config{ServerHost: "127.0.0.1", ServerPort: 3307, ServerUser: "root", ServerPassword: "secret", Database: "queue_engine"}
	dsn := buildServerDSN(cfg)
	want := "root:secret@tcp(127.0.0.1:3307)/queue_engine?parseTime=true"
	if dsn != want {
		t.Fatalf("expected %q, got %q", want, dsn)
	}
}

func TestBuildEmbeddedDSN(t *testing.T) {
	cfg := Config{Path: "/tmp/queue-dolt", Database: "queue_engine"}
	dsn := buildEmbeddedDSN(cfg)
	want := "file:///tmp/queue-dolt?commitname=queue-engine&commitemail=queue-engine@local&database=queue_engine"
	if dsn != want {
		t.Fatalf("expected %q, got %q", want, dsn)
	}
}
