package redis

import (
	"testing"

	"github.com/sakibsarkar/docvia-backend/pkg/config"
)

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error for empty config")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@localhost:6380/2", PoolSize: 5})
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.PoolSize != 5 {
		t.Fatalf("pool size fallback not applied, got %d", opts.PoolSize)
	}
}

func TestOptionsFromConfigAddressFallback(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{Address: "127.0.0.1:6379", Password: "pw", DB: 1})
	if err != nil {
		t.Fatalf("build options: %v", err)
	}
	if opts.Addr != "127.0.0.1:6379" || opts.Password != "pw" || opts.DB != 1 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestIdempotencyKeyNamespacing(t *testing.T) {
	c := &Client{}
	key := c.IdempotencyKey("stripe_webhook", "evt_123")
	if key != "dv:idempotency:stripe_webhook:evt_123" {
		t.Fatalf("unexpected key %q", key)
	}
}
