package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lana/internal/core"
	"lana/internal/ledger/memory"
	applog "lana/internal/log"
	"lana/internal/metrics"
	"lana/internal/middleware/ratelimit"
	"lana/internal/services"
)

const testToken = "s3cret"

type testServer struct {
	*Server
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, Options{})
}

func newTestServerWith(t *testing.T, opts Options) *testServer {
	t.Helper()
	opts.APIToken = testToken
	if opts.RateLimit.RequestsPerSecond == 0 {
		opts.RateLimit = ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000}
	}
	store := memory.New()
	evaluator := services.NewBudgetEvaluator(store, store, store)
	srv := NewServer(":0", Deps{
		Catalog:       services.NewCatalogService(store),
		Transactions:  services.NewTransactionService(store, evaluator),
		Budgets:       services.NewBudgetService(store),
		Payments:      services.NewPaymentService(store),
		Processor:     services.NewRecurringProcessor(store, services.WithEvaluator(evaluator)),
		Notifications: services.NewNotificationService(store),
		Reports:       services.NewReportService(store),
		Store:         store,
		Metrics:       metrics.New(),
	}, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, store: store}
}

// do sends an authenticated request as owner and decodes a JSON response
// into out when out is not nil.
func (s *testServer) do(t *testing.T, method, path string, owner int64, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testToken)
	if owner > 0 {
		req.Header.Set("X-Owner-ID", itoa(owner))
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

// seed creates an account and an expense category for owner 1.
func (s *testServer) seed(t *testing.T) (account, category int64) {
	t.Helper()
	var cat categoryResponse
	if rr := s.do(t, http.MethodPost, "/api/v1/categories", 1, map[string]any{"name": "Groceries", "kind": "expense"}, &cat); rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body)
	}
	var acc accountResponse
	if rr := s.do(t, http.MethodPost, "/api/v1/accounts", 1, map[string]any{"name": "Checking", "kind": "bank", "opening_balance": "100.00"}, &acc); rr.Code != http.StatusCreated {
		t.Fatalf("create account status=%d body=%s", rr.Code, rr.Body)
	}
	return acc.ID, cat.ID
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }

func TestReadyReportsStorageFailure(t *testing.T) {
	srv := newTestServer(t)
	srv.deps.Store = failingPinger{}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name  string
		token string
		owner string
	}{
		{"no token", "", "1"},
		{"wrong token", "Bearer nope", "1"},
		{"missing owner", "Bearer " + testToken, ""},
		{"bad owner", "Bearer " + testToken, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", tt.token)
			}
			if tt.owner != "" {
				req.Header.Set("X-Owner-ID", tt.owner)
			}
			rr := httptest.NewRecorder()
			srv.Handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status=%d, want 401", rr.Code)
			}
			if !strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
				t.Errorf("error response is not JSON: %q", rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequestLogsShareRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelInfo, Format: "json", Component: applog.ComponentHTTP, Output: &buf})
	srv := newTestServerWith(t, Options{Logger: logger})
	account, category := srv.seed(t)
	buf.Reset()

	rr := srv.do(t, http.MethodPost, "/api/v1/transactions", 1, map[string]any{
		"account_id": account, "category_id": category, "amount": "12.50", "date": "2024-03-02",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body)
	}
	requestID := rr.Header().Get("X-Request-ID")

	records := map[string]map[string]any{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var rec map[string]any
		if err := json.Unmarshal(line, &rec); err != nil {
			t.Fatalf("log line is not JSON: %q", line)
		}
		records[rec["msg"].(string)] = rec
	}

	recorded, ok := records["Transaction recorded"]
	if !ok || recorded[applog.FieldRequestID] != requestID {
		t.Errorf("transaction log = %v, want request_id %q", recorded, requestID)
	}
	access, ok := records["HTTP request completed"]
	if !ok || access[applog.FieldRequestID] != requestID || access[applog.FieldStatusCode] != float64(http.StatusCreated) {
		t.Errorf("access log = %v, want request_id %q", access, requestID)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodGet, "/api/v1/nope", 1, nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestTransactionRaisesBudgetAlert(t *testing.T) {
	srv := newTestServer(t)
	account, category := srv.seed(t)

	var b budgetResponse
	rr := srv.do(t, http.MethodPost, "/api/v1/budgets", 1, map[string]any{
		"category_id": category, "year": 2024, "month": 3, "limit": "100.00",
	}, &b)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create budget status=%d body=%s", rr.Code, rr.Body)
	}
	if b.Period != "2024-03" || b.Limit != "100.00" || !b.Alert80 || !b.Alert100 {
		t.Fatalf("unexpected budget: %+v", b)
	}

	rr = srv.do(t, http.MethodPost, "/api/v1/transactions", 1, map[string]any{
		"account_id": account, "category_id": category, "amount": 85.5, "date": "2024-03-10", "description": "Weekly shop",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("record status=%d body=%s", rr.Code, rr.Body)
	}

	var st budgetStatusResponse
	rr = srv.do(t, http.MethodGet, "/api/v1/budgets/"+itoa(b.ID)+"/status", 1, nil, &st)
	if rr.Code != http.StatusOK {
		t.Fatalf("status endpoint=%d", rr.Code)
	}
	if st.Spent != "85.50" || st.Remaining != "14.50" || st.Tier != "80%" {
		t.Fatalf("unexpected status: %+v", st)
	}

	var pending []notificationResponse
	srv.do(t, http.MethodGet, "/api/v1/notifications/pending", 1, nil, &pending)
	if len(pending) != 1 || pending[0].Kind != core.KindBudgetExceeded {
		t.Fatalf("pending = %+v", pending)
	}

	// Another owner sees nothing.
	var other []notificationResponse
	srv.do(t, http.MethodGet, "/api/v1/notifications/pending", 2, nil, &other)
	if len(other) != 0 {
		t.Fatalf("owner 2 sees %d notifications", len(other))
	}
}

func TestReports(t *testing.T) {
	srv := newTestServer(t)
	account, groceries := srv.seed(t)
	var salary categoryResponse
	srv.do(t, http.MethodPost, "/api/v1/categories", 1, map[string]any{"name": "Salary", "kind": "income"}, &salary)
	srv.do(t, http.MethodPost, "/api/v1/budgets", 1, map[string]any{
		"category_id": groceries, "year": 2024, "month": 3, "limit": "100.00",
	}, nil)

	for _, tx := range []map[string]any{
		{"account_id": account, "category_id": groceries, "amount": "60.00", "date": "2024-03-02"},
		{"account_id": account, "category_id": groceries, "amount": "25.50", "date": "2024-03-20"},
		{"account_id": account, "category_id": groceries, "amount": "40.00", "date": "2024-05-01"},
		{"account_id": account, "category_id": salary.ID, "amount": "2000", "date": "2024-03-01"},
	} {
		if rr := srv.do(t, http.MethodPost, "/api/v1/transactions", 1, tx, nil); rr.Code != http.StatusCreated {
			t.Fatalf("record status=%d body=%s", rr.Code, rr.Body)
		}
	}

	var overview monthOverviewResponse
	if rr := srv.do(t, http.MethodGet, "/api/v1/reports/categories?year=2024&month=3", 1, nil, &overview); rr.Code != http.StatusOK {
		t.Fatalf("categories status=%d body=%s", rr.Code, rr.Body)
	}
	if overview.TotalIncome != "2000.00" || overview.TotalExpense != "85.50" || overview.Balance != "1914.50" {
		t.Errorf("overview = %+v", overview)
	}
	if len(overview.Expenses) != 1 || overview.Expenses[0].Name != "Groceries" || len(overview.Income) != 1 {
		t.Errorf("overview categories = %+v", overview)
	}

	var history yearHistoryResponse
	srv.do(t, http.MethodGet, "/api/v1/reports/history?year=2024", 1, nil, &history)
	if len(history.Months) != 2 || history.Months[0].Month != 3 || history.Months[1].Expense != "40.00" {
		t.Errorf("history = %+v", history)
	}
	if history.Balance != "1874.50" {
		t.Errorf("history balance = %s", history.Balance)
	}

	var top []categoryShareResponse
	srv.do(t, http.MethodGet, "/api/v1/reports/top-categories?year=2024&kind=expense&limit=3", 1, nil, &top)
	if len(top) != 1 || top[0].Total != "125.50" || top[0].Percent != "100.00" {
		t.Errorf("top categories = %+v", top)
	}

	var budgets []budgetStatusResponse
	srv.do(t, http.MethodGet, "/api/v1/reports/budgets?year=2024&month=3", 1, nil, &budgets)
	if len(budgets) != 1 || budgets[0].Spent != "85.50" || budgets[0].Tier != "80%" {
		t.Errorf("budget report = %+v", budgets)
	}

	var empty monthOverviewResponse
	srv.do(t, http.MethodGet, "/api/v1/reports/categories?year=2024&month=3", 2, nil, &empty)
	if empty.TotalExpense != "0.00" || empty.Expenses == nil || len(empty.Expenses) != 0 {
		t.Errorf("owner 2 overview = %+v", empty)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/reports/categories?year=2024&month=13", http.StatusUnprocessableEntity},
		{"/api/v1/reports/categories?month=march", http.StatusBadRequest},
		{"/api/v1/reports/history?year=1999", http.StatusUnprocessableEntity},
		{"/api/v1/reports/top-categories?limit=0", http.StatusBadRequest},
		{"/api/v1/reports/top-categories?kind=transfer", http.StatusUnprocessableEntity},
		{"/api/v1/reports/budgets?year=2024&month=0", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rr := srv.do(t, http.MethodGet, tt.path, 1, nil, nil); rr.Code != tt.want {
				t.Errorf("status=%d, want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestBudgetErrors(t *testing.T) {
	srv := newTestServer(t)
	_, category := srv.seed(t)
	body := map[string]any{"category_id": category, "year": 2024, "month": 3, "limit": "50"}
	srv.do(t, http.MethodPost, "/api/v1/budgets", 1, body, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duplicate period", http.MethodPost, "/api/v1/budgets", body, http.StatusConflict},
		{"zero limit", http.MethodPost, "/api/v1/budgets", map[string]any{"category_id": category, "year": 2024, "month": 4, "limit": "0"}, http.StatusUnprocessableEntity},
		{"bad month", http.MethodPost, "/api/v1/budgets", map[string]any{"category_id": category, "year": 2024, "month": 13, "limit": "1"}, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/api/v1/budgets", map[string]any{"category": category}, http.StatusBadRequest},
		{"missing budget", http.MethodGet, "/api/v1/budgets/999/status", nil, http.StatusNotFound},
		{"update with bad limit", http.MethodPatch, "/api/v1/budgets/1", map[string]any{"limit": "-5"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(t, tt.method, tt.path, 1, tt.body, nil)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body)
			}
		})
	}
}

func TestScheduledPaymentLifecycle(t *testing.T) {
	srv := newTestServer(t)
	account, category := srv.seed(t)

	var p paymentResponse
	rr := srv.do(t, http.MethodPost, "/api/v1/scheduled-payments", 1, map[string]any{
		"account_id": account, "category_id": category, "description": "Rent",
		"amount": "800", "frequency": "Monthly", "next_due": "2024-01-31",
	}, &p)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}
	if p.Frequency != core.Monthly || p.LeadDays != core.DefaultLeadDays || !p.Active {
		t.Fatalf("unexpected payment: %+v", p)
	}

	var result processResponse
	rr = srv.do(t, http.MethodPost, "/api/v1/scheduled-payments/process", 1, map[string]any{"date": "2024-01-31"}, &result)
	if rr.Code != http.StatusOK {
		t.Fatalf("process status=%d body=%s", rr.Code, rr.Body)
	}
	if result.Processed != 1 || result.Failed != 0 || result.Outcomes[0].NextDue != "2024-02-29" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if txs := srv.store.Transactions(); len(txs) != 1 || txs[0].Description != "Automatic payment: Rent" {
		t.Fatalf("transactions = %+v", txs)
	}

	var updated paymentResponse
	rr = srv.do(t, http.MethodPatch, "/api/v1/scheduled-payments/"+itoa(p.ID), 1, map[string]any{"amount": "850.00", "lead_days": 5}, &updated)
	if rr.Code != http.StatusOK || updated.Amount != "850.00" || updated.LeadDays != 5 {
		t.Fatalf("update status=%d payment=%+v", rr.Code, updated)
	}

	if rr := srv.do(t, http.MethodDelete, "/api/v1/scheduled-payments/"+itoa(p.ID), 2, nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign cancel status=%d", rr.Code)
	}
	if rr := srv.do(t, http.MethodDelete, "/api/v1/scheduled-payments/"+itoa(p.ID), 1, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("cancel status=%d", rr.Code)
	}

	var got paymentResponse
	srv.do(t, http.MethodGet, "/api/v1/scheduled-payments/"+itoa(p.ID), 1, nil, &got)
	if got.Active {
		t.Fatalf("payment still active after cancel")
	}
}

func TestProcessPaymentsRejectsFutureDate(t *testing.T) {
	srv := newTestServer(t)
	account, category := srv.seed(t)
	today := core.Today(time.UTC)

	rr := srv.do(t, http.MethodPost, "/api/v1/scheduled-payments", 1, map[string]any{
		"account_id": account, "category_id": category, "description": "Insurance",
		"amount": "120", "frequency": "monthly", "next_due": today.AddDays(10).String(),
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body)
	}

	rr = srv.do(t, http.MethodPost, "/api/v1/scheduled-payments/process", 1, map[string]any{"date": today.AddDays(30).String()}, nil)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("future date status=%d body=%s", rr.Code, rr.Body)
	}
	if txs := srv.store.Transactions(); len(txs) != 0 {
		t.Fatalf("future run materialized %d transactions", len(txs))
	}

	var result processResponse
	rr = srv.do(t, http.MethodPost, "/api/v1/scheduled-payments/process", 1, map[string]any{"date": today.AddDays(-1).String()}, &result)
	if rr.Code != http.StatusOK || result.Processed != 0 {
		t.Fatalf("replay status=%d result=%+v", rr.Code, result)
	}
}

func TestUpcomingWindowValidation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		query string
		want  int
	}{
		{"", http.StatusOK},
		{"?days=30", http.StatusOK},
		{"?days=0", http.StatusOK},
		{"?days=400", http.StatusBadRequest},
		{"?days=abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rr := srv.do(t, http.MethodGet, "/api/v1/scheduled-payments/upcoming"+tt.query, 1, nil, nil)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestNotificationEndpoints(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	id, _, _ := srv.store.InsertNotification(ctx, core.Notification{OwnerID: 1, Kind: core.KindScheduledPayment, Message: "Rent due", State: core.StatePending})

	var list []notificationResponse
	if rr := srv.do(t, http.MethodGet, "/api/v1/notifications?read=false", 1, nil, &list); rr.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("list status=%d len=%d", rr.Code, len(list))
	}
	if rr := srv.do(t, http.MethodGet, "/api/v1/notifications?kind=bogus", 1, nil, nil); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bogus kind status=%d", rr.Code)
	}
	if rr := srv.do(t, http.MethodGet, "/api/v1/notifications?limit=5000", 1, nil, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("limit status=%d", rr.Code)
	}

	if rr := srv.do(t, http.MethodPost, "/api/v1/notifications/"+itoa(id)+"/read", 1, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("mark read status=%d", rr.Code)
	}
	var n notificationResponse
	srv.do(t, http.MethodGet, "/api/v1/notifications/"+itoa(id), 1, nil, &n)
	if n.State != core.StateRead {
		t.Fatalf("state = %s", n.State)
	}

	if rr := srv.do(t, http.MethodGet, "/api/v1/notifications/"+itoa(id), 2, nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("foreign get status=%d", rr.Code)
	}
	if rr := srv.do(t, http.MethodDelete, "/api/v1/notifications/"+itoa(id), 1, nil, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := srv.do(t, http.MethodGet, "/api/v1/notifications/"+itoa(id), 1, nil, nil); rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete status=%d", rr.Code)
	}
}

func TestPreferences(t *testing.T) {
	srv := newTestServer(t)

	var prefs preferencesBody
	srv.do(t, http.MethodGet, "/api/v1/notifications/preferences", 1, nil, &prefs)
	if !prefs.Email || !prefs.Push || prefs.SMS {
		t.Fatalf("default preferences = %+v", prefs)
	}

	rr := srv.do(t, http.MethodPut, "/api/v1/notifications/preferences", 1, preferencesBody{SMS: true}, &prefs)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status=%d", rr.Code)
	}
	srv.do(t, http.MethodGet, "/api/v1/notifications/preferences", 1, nil, &prefs)
	if prefs.Email || prefs.Push || !prefs.SMS {
		t.Fatalf("saved preferences = %+v", prefs)
	}
}

func TestRateLimit(t *testing.T) {
	store := memory.New()
	srv := NewServer(":0", Deps{
		Catalog: services.NewCatalogService(store),
		Store:   store,
	}, Options{RateLimit: ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1}})
	defer srv.Shutdown(context.Background())

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil)
		req.Header.Set("X-Owner-ID", "1")
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
}
