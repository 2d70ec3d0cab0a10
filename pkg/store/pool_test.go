package store

import (
	"context"
	"testing"
)

func TestNewPool_InvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*PoolConfig)
	}{
		{"empty DSN", func(c *PoolConfig) { c.DSN = "" }},
		{"empty driver", func(c *PoolConfig) { c.DriverName = "" }},
		{"zero open conns", func(c *PoolConfig) { c.MaxOpenConns = 0 }},
		{"negative idle conns", func(c *PoolConfig) { c.MaxIdleConns = -1 }},
		{"idle exceeds open", func(c *PoolConfig) { c.MaxOpenConns = 1; c.MaxIdleConns = 2 }},
		{"negative lifetime", func(c *PoolConfig) { c.ConnMaxLifetime = -1 }},
		{"negative idle time", func(c *PoolConfig) { c.ConnMaxIdleTime = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultPoolConfig(":memory:")
			tc.mutate(&config)
			if _, err := NewPool(config); err == nil {
				t.Fatal("expected error for invalid config")
			}
		})
	}
}

func TestPool_ExecAndQuery(t *testing.T) {
	pool, err := NewPool(DefaultPoolConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()

	if _, err := pool.Exec(ctx, "CREATE TABLE samples (id INTEGER PRIMARY KEY, value REAL)"); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	if _, err := pool.Exec(ctx, "INSERT INTO samples (value) VALUES (?)", 3.14); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	var count int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM samples").Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Errorf("ping failed: %v", err)
	}

	stats := pool.Stats()
	if stats.MaxOpenConnections != 1 {
		t.Errorf("expected MaxOpenConnections 1, got %d", stats.MaxOpenConnections)
	}
}

func TestPool_ClosedState(t *testing.T) {
	pool, err := NewPool(DefaultPoolConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	var nilPool *Pool
	if err := nilPool.Close(); err == nil {
		t.Error("expected error closing nil pool")
	}
	if err := nilPool.Ping(context.Background()); err == nil {
		t.Error("expected error pinging nil pool")
	}
	if _, err := nilPool.Exec(context.Background(), "SELECT 1"); err == nil {
		t.Error("expected error executing on nil pool")
	}
}

func TestPool_EmptyQuery(t *testing.T) {
	pool, err := NewPool(DefaultPoolConfig(":memory:"))
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Query(context.Background(), ""); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := pool.Exec(context.Background(), ""); err == nil {
		t.Error("expected error for empty exec")
	}
}
