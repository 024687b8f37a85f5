package bootstrap

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	postgresadapter "assembly/contexts/legislature/legislative-workflow/adapters/postgres"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/internal/platform/config"
	"assembly/internal/platform/db"

	"go.uber.org/goleak"
)

const roster = `members:
  - id: dep-1
    name: Deputy One
    role: deputy
    constituency: North
  - id: pres-1
    name: President
    role: president
  - id: dep-retired
    name: Former Deputy
    role: deputy
    active: false
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeRoster(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "members.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func request(t *testing.T, handler http.Handler, method, path, userID, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestMemoryAPIDeliversNotifications(t *testing.T) {
	defer goleak.VerifyNone(t)

	cfg := config.Default()
	cfg.MembersFile = writeRoster(t, roster)
	cfg.OutboxPollInterval = 10 * time.Millisecond

	app, err := BuildAPI(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.runtime.runWorkers(ctx)
	}()

	handler := app.server.Handler()
	rr := request(t, handler, http.MethodPost, "/v1/bills", "dep-1", "deputy",
		`{"subject":"Water","code":"LAW-1","rationale":"Health"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var submitted struct {
		BillID string `json:"bill_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("decode bill: %v", err)
	}
	billID := submitted.BillID

	rr = request(t, handler, http.MethodPost, "/v1/bills/"+billID+"/conference-decision", "pres-1", "president",
		`{"decision":"validate"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rr = request(t, handler, http.MethodGet, "/v1/notifications", "dep-1", "deputy", "")
		if rr.Code == http.StatusOK && strings.Contains(rr.Body.String(), billID) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("notification for %s not delivered: %s", billID, rr.Body.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("workers stopped with error: %v", err)
	}
}

func TestBuildWorkerRefusesMemoryStore(t *testing.T) {
	if _, err := BuildWorker(context.Background(), config.Default(), discardLogger()); err == nil {
		t.Fatalf("expected error for memory store worker")
	}
}

func TestMigrateSeedsSQLiteMembers(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "assembly.sqlite")
	cfg.MembersFile = writeRoster(t, roster)

	if err := Migrate(context.Background(), cfg, discardLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	database, err := db.ConnectSQLite(cfg.SQLitePath)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer database.Close()

	members, err := postgresadapter.NewRepository(database.DB, discardLogger()).ListMembers(context.Background())
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	for _, member := range members {
		if member.MemberID == "dep-retired" && member.Active {
			t.Fatalf("expected dep-retired to stay inactive")
		}
	}
}

func TestBuildAPIRestoresActiveSessionGauge(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDriver = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "assembly.sqlite")
	cfg.MembersFile = writeRoster(t, roster)
	ctx := context.Background()

	if err := Migrate(ctx, cfg, discardLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	database, err := db.ConnectSQLite(cfg.SQLitePath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo := postgresadapter.NewRepository(database.DB, discardLogger())
	if err := repo.SaveSession(ctx, entities.PlenarySession{
		SessionID: "s1",
		BillID:    "bill-1",
		Active:    true,
		OpenedAt:  time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	_ = database.Close()

	app, err := BuildAPI(ctx, cfg, discardLogger())
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	defer app.Close()

	rr := request(t, app.server.Handler(), http.MethodGet, "/metrics", "", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "assembly_workflow_plenary_session_active 1") {
		t.Fatalf("expected restored active gauge, got:\n%s", rr.Body.String())
	}
}

func TestLoadMembersRejectsUnknownRole(t *testing.T) {
	path := writeRoster(t, "members:\n  - id: x\n    role: senator\n")
	if _, err := loadMembers(path); err == nil {
		t.Fatalf("expected unknown role error")
	}
}

func TestNormalizeAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "9090": ":9090", ":7000": ":7000"}
	for in, want := range cases {
		if got := normalizeAddr(in); got != want {
			t.Fatalf("normalizeAddr(%q) = %q, want %q", in, got, want)
		}
	}
}
