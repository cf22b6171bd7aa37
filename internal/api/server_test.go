package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/david/eu-grants-monitor/internal/auth"
	"github.com/david/eu-grants-monitor/internal/config"
	"github.com/david/eu-grants-monitor/internal/db"
	"github.com/david/eu-grants-monitor/internal/logging"
	"github.com/david/eu-grants-monitor/internal/metrics"
	"github.com/david/eu-grants-monitor/internal/models"
	"github.com/david/eu-grants-monitor/internal/monitor"
)

const testAdminSecret = "admin-test-secret"

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fakeStore struct {
	mu         sync.Mutex
	grants     map[string]models.Grant
	apps       map[uuid.UUID]models.Application
	users      map[string]models.User
	lastParams db.ListParams
	pingErr    error
}

func newFakeStore() *fakeStore {
	g := models.Grant{
		ID:              "HE-2026-AI-01",
		Title:           "AI for SMEs",
		Description:     "Artificial intelligence pilots for manufacturing SMEs",
		Program:         models.ProgramHorizonEurope,
		FundingAmount:   400000,
		Deadline:        models.DateAfter(testNow, 60),
		Keywords:        []string{"artificial intelligence"},
		ComplexityScore: 40,
		PriorityScore:   72,
	}
	return &fakeStore{
		grants: map[string]models.Grant{g.ID: g},
		apps:   map[uuid.UUID]models.Application{},
		users:  map[string]models.User{},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListGrants(_ context.Context, p db.ListParams) (*db.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastParams = p
	res := &db.ListResult{Grants: []models.Grant{}, Limit: p.Limit, Offset: p.Offset}
	for _, g := range f.grants {
		res.Grants = append(res.Grants, g)
	}
	res.Total = len(res.Grants)
	return res, nil
}

func (f *fakeStore) GetGrant(_ context.Context, id string) (*models.Grant, error) {
	g, ok := f.grants[id]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", id, db.ErrNotFound)
	}
	return &g, nil
}

func (f *fakeStore) ListMonitoringSessions(context.Context, int) ([]models.MonitoringSession, error) {
	return []models.MonitoringSession{}, nil
}

func (f *fakeStore) ListAlerts(context.Context, int) ([]models.Alert, error) {
	return []models.Alert{}, nil
}

func (f *fakeStore) GetStats(context.Context) (*db.Stats, error) {
	return &db.Stats{TotalGrants: len(f.grants), Programs: map[string]int{}}, nil
}

func (f *fakeStore) CreateApplication(_ context.Context, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app.ID = uuid.New()
	app.Status = models.StatusDraft
	f.apps[app.ID] = *app
	return nil
}

func (f *fakeStore) ListApplications(_ context.Context, userID uuid.UUID) ([]models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Application{}
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateApplicationStatus(_ context.Context, userID, id uuid.UUID, to models.ApplicationStatus) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.UserID != userID {
		return nil, db.ErrNotFound
	}
	if err := a.Status.CanTransition(to); err != nil {
		return nil, err
	}
	a.Status = to
	f.apps[id] = a
	return &a, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return db.ErrDuplicate
	}
	u.ID = uuid.New()
	f.users[u.Email] = *u
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &u, nil
}

type staticSource struct{ grants []models.Grant }

func (s staticSource) Name() string { return "static" }

func (s staticSource) Fetch(context.Context) ([]models.Grant, error) { return s.grants, nil }

func newTestServer(t *testing.T) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	authSvc, err := auth.NewService(store, "jwt-test-secret")
	if err != nil {
		t.Fatalf("auth.NewService: %v", err)
	}
	mon := monitor.New(config.Default(), monitor.Options{
		Sources: []monitor.Source{staticSource{grants: []models.Grant{store.grants["HE-2026-AI-01"]}}},
		Logger:  logging.Discard(),
		Now:     func() time.Time { return testNow },
	})
	srv, err := NewServer(Options{
		Store:       store,
		Auth:        authSvc,
		Monitor:     mon,
		Metrics:     metrics.New("test"),
		Profile:     models.DefaultProfile(),
		AdminSecret: testAdminSecret,
		Now:         func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	srv, store := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
	store.pingErr = fmt.Errorf("closed")
	if rec := do(t, srv, http.MethodGet, "/health", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("health with db down = %d", rec.Code)
	}
}

func TestListGrantsParsesFilters(t *testing.T) {
	srv, store := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/v1/grants?q=ai&min_amount=1000&max_amount=900000&complexity_max=medium&deadline_days_min=14&program=horizon_europe&sort=deadline&limit=10&offset=5", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	want := db.ListParams{
		Query: "ai", MinAmount: 1000, MaxAmount: 900000, MaxComplexity: models.ComplexityMedium,
		MinDaysToDeadline: 14, Program: models.ProgramHorizonEurope, SortBy: "deadline", Limit: 10, Offset: 5,
	}
	if store.lastParams != want {
		t.Errorf("params = %+v\nwant %+v", store.lastParams, want)
	}
	var res db.ListResult
	decode(t, rec, &res)
	if res.Total != 1 || res.Grants[0].ID != "HE-2026-AI-01" {
		t.Errorf("result = %+v", res)
	}
}

func TestListGrantsRejectsBadParams(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, q := range []string{"complexity_max=extreme", "sort=random", "limit=-1", "min_amount=abc"} {
		t.Run(q, func(t *testing.T) {
			if rec := do(t, srv, http.MethodGet, "/api/v1/grants?"+q, "", nil); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d", rec.Code)
			}
		})
	}
}

func TestGetGrant(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/api/v1/grants/HE-2026-AI-01", "", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/api/v1/grants/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing grant status = %d", rec.Code)
	}
}

func TestAssist(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("guidance by default", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/HE-2026-AI-01/assist", `{}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var g models.Guidance
		decode(t, rec, &g)
		if g.GrantID != "HE-2026-AI-01" || len(g.Timeline) == 0 {
			t.Errorf("guidance = %+v", g)
		}
	})

	t.Run("generate returns documents", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/HE-2026-AI-01/assist", `{"assistance_type":"generate"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			Documents []struct {
				Name string `json:"document_name"`
			} `json:"documents"`
			Status string `json:"status"`
		}
		decode(t, rec, &body)
		if len(body.Documents) != 6 || body.Status != "missing_data" {
			t.Errorf("body = %+v", body)
		}
	})

	t.Run("analyze", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/HE-2026-AI-01/assist", `{"assistance_type":"analyze"}`, nil)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"fit"`) {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid profile", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/HE-2026-AI-01/assist", `{"business_profile":{"company_name":"X","company_size":"huge"}}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/HE-2026-AI-01/assist", `{"assistance_type":"magic"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unknown grant", func(t *testing.T) {
		rec := do(t, srv, http.MethodPost, "/api/v1/grants/nope/assist", `{}`, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestBudgetWorkbookDownload(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/v1/grants/HE-2026-AI-01/budget.xlsx", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "HE-2026-AI-01_budget.xlsx") {
		t.Errorf("disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	// xlsx is a zip archive
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Errorf("body is not a zip archive")
	}
}

func TestMonitorJobRequiresAdminAndCompletes(t *testing.T) {
	srv, _ := newTestServer(t)

	if rec := do(t, srv, http.MethodPost, "/api/v1/monitor", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	rec := do(t, srv, http.MethodPost, "/api/v1/monitor", "", map[string]string{"X-Admin-Secret": testAdminSecret})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var started struct {
		JobID string `json:"job_id"`
		Poll  string `json:"poll"`
	}
	decode(t, rec, &started)
	if started.Poll != "/api/v1/admin/job/"+started.JobID {
		t.Fatalf("poll = %q", started.Poll)
	}

	bearer := map[string]string{"Authorization": "Bearer " + testAdminSecret}
	var job struct {
		Status string         `json:"status"`
		Result map[string]any `json:"result"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := do(t, srv, http.MethodGet, started.Poll, "", bearer)
		if rec.Code != http.StatusOK {
			t.Fatalf("poll status = %d", rec.Code)
		}
		decode(t, rec, &job)
		if job.Status != "running" || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if job.Status != "completed" {
		t.Fatalf("job status = %q", job.Status)
	}
	if job.Result["grants_processed"] != float64(1) {
		t.Errorf("result = %v", job.Result)
	}

	if rec := do(t, srv, http.MethodGet, "/api/v1/admin/job/unknown", "", bearer); rec.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"last_cycle"`) {
		t.Errorf("status endpoint = %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminSecretCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{"header", map[string]string{"X-Admin-Secret": testAdminSecret}, http.StatusNotFound},
		{"bearer", map[string]string{"Authorization": "bearer " + testAdminSecret}, http.StatusNotFound},
		{"wrong secret", map[string]string{"X-Admin-Secret": testAdminSecret + "x"}, http.StatusUnauthorized},
		{"prefix of secret", map[string]string{"X-Admin-Secret": testAdminSecret[:len(testAdminSecret)-1]}, http.StatusUnauthorized},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/v1/admin/job/unknown", "", tt.headers)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSignupLoginAndApplications(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := do(t, srv, http.MethodPost, "/api/v1/auth/signup", `{"email":"founder@example.org","password":"correct horse"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/auth/signup", `{"email":"founder@example.org","password":"correct horse"}`, nil); rec.Code != http.StatusConflict {
		t.Errorf("duplicate signup = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/auth/login", `{"email":"founder@example.org","password":"wrong password"}`, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/auth/login", `{"email":"founder@example.org","password":"correct horse"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	var login auth.AuthResponse
	decode(t, rec, &login)
	bearer := map[string]string{"Authorization": "Bearer " + login.Token}

	if rec := do(t, srv, http.MethodGet, "/api/v1/applications", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/v1/applications", `{"grant_id":"missing"}`, bearer); rec.Code != http.StatusNotFound {
		t.Errorf("create for unknown grant = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/v1/applications", `{"grant_id":"HE-2026-AI-01"}`, bearer)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	var app models.Application
	decode(t, rec, &app)

	path := "/api/v1/applications/" + app.ID.String()
	if rec := do(t, srv, http.MethodPatch, path, `{"status":"withdrawn"}`, bearer); rec.Code != http.StatusOK {
		t.Fatalf("withdraw = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, srv, http.MethodPatch, path, `{"status":"submitted"}`, bearer); rec.Code != http.StatusConflict {
		t.Errorf("move out of terminal state = %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPatch, "/api/v1/applications/"+uuid.NewString(), `{"status":"submitted"}`, bearer); rec.Code != http.StatusNotFound {
		t.Errorf("unknown application = %d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/v1/applications", "", bearer)
	var apps []models.Application
	decode(t, rec, &apps)
	if len(apps) != 1 || apps[0].Status != models.StatusWithdrawn {
		t.Errorf("applications = %+v", apps)
	}
}
