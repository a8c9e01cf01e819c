package http

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/auth"
	"github.com/ndudnik/pairchat-server/internal/config"
	"github.com/ndudnik/pairchat-server/internal/core"
	"github.com/ndudnik/pairchat-server/internal/store"
	"github.com/ndudnik/pairchat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store, jwtSecret string) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(jwtSecret),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

// createTestRealtime wires core components over the given store.
func createTestRealtime(st store.Store, logger *zerolog.Logger) *Realtime {
	registry := core.NewRegistry()
	return &Realtime{
		Registry: registry,
		Presence: core.NewPresencer(registry, st, logger),
		Typing:   core.NewTypingRelay(registry),
		Delivery: core.NewDelivery(registry, st, logger),
		Sender:   core.NewSender(registry, st, st, logger),
	}
}

// testConfig returns a config suitable for httptest servers.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.JWTSecret = "test-secret"
	return &cfg
}
