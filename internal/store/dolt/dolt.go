// Package dolt is the secondary, versioned queue engine backend: a
// Dolt sql-server instance addressed over the MySQL wire protocol via
// go-sql-driver/mysql, with an embedded mode via dolthub/driver for
// single-process deployments. Grounded on the teacher's
// internal/storage/dolt/store.go: the embedded-vs-server split, the
// cenkalti/backoff connection-retry loop, and the server DSN assembly.
// CRUD idiom mirrors internal/store/sqlite; the MySQL dialect only
// differs in schema DDL and unique-violation detection.
package dolt

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"

	"github.com/beads-queue/orchestrator/internal/clock"
	"github.com/beads-queue/orchestrator/internal/store"
)

var _ store.Store = (*Store)(nil)

// Config describes how to reach a Dolt-backed queue store.
type Config struct {
	// ServerMode selects the MySQL-wire-protocol server connector. When
	// false, Path must point at an on-disk Dolt database directory opened
	// via the embedded dolthub/driver connector.
	ServerMode bool
	Path       string

	ServerHost     string
	ServerPort     int
	ServerUser     string
	ServerPassword string
	Database       string

	// ConnectTimeout bounds the total time New spends retrying the
	// initial connection via exponential backoff.
	ConnectTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ServerHost == "" {
		c.ServerHost = "127.0.0.1"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 3307
	}
	if c.ServerUser == "" {
		c.ServerUser = "root"
	}
	if c.Database == "" {
		c.Database = "queue_engine"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	return c
}

func buildServerDSN(cfg Config) string {
	userPart := cfg.ServerUser
	if cfg.ServerPassword != "" {
		userPart = fmt.Sprintf("%s:%s", cfg.ServerUser, cfg.ServerPassword)
	}
	addr := net.JoinHostPort(cfg.ServerHost, fmt.Sprintf("%d", cfg.ServerPort))
	return fmt.Sprintf("%s@tcp(%s)/%s?parseTime=true", userPart, addr, cfg.Database)
}

func buildEmbeddedDSN(cfg Config) string {
	return fmt.Sprintf("file://%s?commitname=queue-engine&commitemail=queue-engine@local&database=%s", cfg.Path, cfg.Database)
}

// Store is the Dolt-backed implementation of store.Store.
type Store struct {
	db  *sql.DB
	clk clock.Clock
}

// New opens a connection (server or embedded, per cfg.ServerMode), retrying
// with exponential backoff up to cfg.ConnectTimeout since a freshly started
// dolt sql-server often isn't accepting connections yet, then applies the
// queue schema.
func New(ctx context.Context, cfg Config, clk clock.Clock) (*Store, error) {
	cfg = cfg.withDefaults()

	driverName := "mysql"
	dsn := buildServerDSN(cfg)
	if !cfg.ServerMode {
		driverName = "dolt"
		dsn = buildEmbeddedDSN(cfg)
	}

	var db *sql.DB
	connect := func() error {
		var err error
		db, err = sql.Open(driverName, dsn)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("dolt: open %s: %w", driverName, err))
		}
		return db.PingContext(ctx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.ConnectTimeout
	if err := backoff.Retry(connect, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("dolt: connect: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("dolt: apply schema: %w", err)
	}
	return &Store{db: db, clk: clk}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS queue_items (
	id               VARCHAR(128) PRIMARY KEY,
	status           VARCHAR(16) NOT NULL,
	priority         VARCHAR(4) NOT NULL,
	task             TEXT NOT NULL,
	success_criteria TEXT NOT NULL,
	due_at_kst       VARCHAR(32) NOT NULL DEFAULT '-',
	notes            TEXT NOT NULL,
	owner_session    VARCHAR(128) NOT NULL DEFAULT '-',
	started_at_kst   VARCHAR(32) NOT NULL DEFAULT '-',
	attempt_count    INT NOT NULL DEFAULT 0,
	max_attempts     INT NOT NULL DEFAULT 3,
	last_error       TEXT NOT NULL,
	review_attempts  INT NOT NULL DEFAULT 0,
	lease_owner      VARCHAR(128),
	lease_expires_at BIGINT,
	idempotency_key  VARCHAR(128),
	created_at       VARCHAR(32) NOT NULL,
	updated_at       VARCHAR(32) NOT NULL,
	created_at_epoch BIGINT NOT NULL,
	updated_at_epoch BIGINT NOT NULL,
	INDEX idx_queue_items_lease_expires_at (lease_expires_at),
	INDEX idx_queue_items_idempotency_key (idempotency_key),
	INDEX idx_queue_items_status (status)
);

CREATE TABLE IF NOT EXISTS queue_events (
	event_id     BIGINT AUTO_INCREMENT PRIMARY KEY,
	item_id      VARCHAR(128) NOT NULL,
	event_type   VARCHAR(32) NOT NULL,
	payload_json TEXT NOT NULL,
	created_at   VARCHAR(32) NOT NULL,
	INDEX idx_queue_events_item_id (item_id)
);
`
