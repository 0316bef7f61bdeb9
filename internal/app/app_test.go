package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/riskibarqy/fantasy-roster/internal/config"
	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		AppEnv:                 config.EnvDev,
		HTTPAddr:               ":0",
		StoreDriver:            config.StoreMemory,
		RosterInitialBudget:    1000,
		RosterDefaultFormation: "3-4-3",
		RosterFormations:       []string{"3-4-3", "4-4-2"},
		AuthMode:               config.AuthModeDev,
		CommitWorkers:          1,
	}
}

func TestNewServer_MemoryStore(t *testing.T) {
	srv, err := NewServer(context.Background(), memoryConfig(), logging.NewNop())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	defer func() {
		if err := srv.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	rec := httptest.NewRecorder()
	srv.HTTP.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/formations", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"4-4-2"`) {
		t.Fatalf("expected configured formations in body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/roster/session", nil)
	req.Header.Set("Authorization", "Bearer player-one")
	srv.HTTP.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from session start, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestNewServer_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "empty addr", mutate: func(c *config.Config) { c.HTTPAddr = "" }},
		{name: "unknown store", mutate: func(c *config.Config) { c.StoreDriver = "redis" }},
		{name: "bad formation", mutate: func(c *config.Config) { c.RosterFormations = []string{"5-5-5"} }},
		{name: "missing feed", mutate: func(c *config.Config) { c.CatalogFeedPath = "/nonexistent/players.json" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(&cfg)
			if _, err := NewServer(context.Background(), cfg, logging.NewNop()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestReadCatalogRecords_Seed(t *testing.T) {
	records, err := readCatalogRecords("")
	if err != nil {
		t.Fatalf("read seed: %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("expected bundled seed records")
	}
}

func TestFormatDBQueryForTrace(t *testing.T) {
	got := formatDBQueryForTrace("  SELECT *\n\tFROM roster_players\n WHERE user_id = $1 ")
	if got != "SELECT * FROM roster_players WHERE user_id = $1" {
		t.Fatalf("unexpected formatted query %q", got)
	}

	long := formatDBQueryForTrace(strings.Repeat("x", maxTracedQueryLength+10))
	if len(long) != maxTracedQueryLength+3 || !strings.HasSuffix(long, "...") {
		t.Fatalf("expected truncated query, got length %d", len(long))
	}
}
