package config

import (
	"context"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Server.Port)
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Fatalf("expected default idempotency TTL 24h, got %v", cfg.Idempotency.TTL)
	}
	if cfg.Environment != "local" {
		t.Fatalf("expected local environment, got %q", cfg.Environment)
	}
}

func TestLoadEnvMapPrecedence(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_SERVER_PORT":              "9090",
			"API_PUBSUB_ORDER_EVENT_TOPIC": "orders-test",
			"API_SERVER_READ_TIMEOUT":      "45s",
		}),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.PubSub.OrderEventTopic != "orders-test" {
		t.Fatalf("expected topic orders-test, got %q", cfg.PubSub.OrderEventTopic)
	}
	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Fatalf("expected read timeout 45s, got %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://webhook-signing" {
			t.Fatalf("unexpected ref %q", ref)
		}
		return "resolved-secret", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_WEBHOOK_SIGNING_SECRET": "secret://webhook-signing",
		}),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Webhooks.SigningSecret != "resolved-secret" {
		t.Fatalf("expected resolved secret, got %q", cfg.Webhooks.SigningSecret)
	}
}

func TestLoadFailsWithoutResolver(t *testing.T) {
	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(map[string]string{
			"API_SECURITY_OWNER_JWT_SECRET": "secret://owner-jwt",
		}),
	)
	if err == nil {
		t.Fatal("expected error for unresolvable secret reference")
	}
}
