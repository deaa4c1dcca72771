package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "test-id")
	if err == nil {
		t.Fatal("expected error without credentials")
	}
	if !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "/nonexistent/credentials.json")

	_, err := New(context.Background(), "test-id")
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestClient_ReplaceRowsWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.ReplaceRows(context.Background(), "expenses-alice", nil); err == nil {
		t.Fatal("expected error with nil service")
	}
}

func TestQuoteSheet(t *testing.T) {
	tests := map[string]string{
		"expenses-alice":   "'expenses-alice'",
		"expenses-o'brien": "'expenses-o''brien'",
	}
	for in, want := range tests {
		if got := quoteSheet(in); got != want {
			t.Errorf("quoteSheet(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToInterfaces(t *testing.T) {
	got := toInterfaces([][]string{{"Date", "Amount"}, {"2024-01-15", "12.50"}})
	if len(got) != 2 || len(got[1]) != 2 {
		t.Fatalf("unexpected shape: %v", got)
	}
	if got[1][1] != "12.50" {
		t.Errorf("got[1][1] = %v, want 12.50", got[1][1])
	}
}

// fakeSheetsAPI records calls made against a fake Sheets endpoint.
type fakeSheetsAPI struct {
	mu      sync.Mutex
	titles  []string
	calls   []string
	written [][]interface{}
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid")
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "":
		var sheets []map[string]any
		for _, title := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": title}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid", "sheets": sheets})
	case r.Method == http.MethodPost && path == ":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.titles = append(f.titles, rq.AddSheet.Properties.Title)
			}
		}
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid"}`))
	case r.Method == http.MethodPut:
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written = vr.Values
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid"}`))
	default:
		_, _ = w.Write([]byte(`{"spreadsheetId":"sid"}`))
	}
}

func newFakeClient(t *testing.T, api *fakeSheetsAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return newClient(svc, "sid")
}

func TestClient_ReplaceRowsCreatesSheetOnce(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"Sheet1"}}
	c := newFakeClient(t, api)
	ctx := context.Background()

	rows := [][]string{{"Date", "Category", "Amount", "Note"}, {"2024-01-15", "Food", "12.50", "=lunch"}}
	if err := c.ReplaceRows(ctx, "expenses-alice", rows); err != nil {
		t.Fatalf("ReplaceRows() error = %v", err)
	}
	if err := c.ReplaceRows(ctx, "expenses-alice", rows[:1]); err != nil {
		t.Fatalf("second ReplaceRows() error = %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()

	var gets, adds, clears, puts int
	for _, call := range api.calls {
		switch {
		case strings.HasPrefix(call, "GET"):
			gets++
		case strings.HasSuffix(call, ":batchUpdate"):
			adds++
		case strings.HasSuffix(call, ":clear"):
			clears++
		case strings.HasPrefix(call, "PUT"):
			puts++
		}
	}
	if gets != 1 || adds != 1 {
		t.Errorf("sheet lookup should happen once: gets=%d adds=%d calls=%v", gets, adds, api.calls)
	}
	if clears != 2 || puts != 2 {
		t.Errorf("each replace clears and writes: clears=%d puts=%d", clears, puts)
	}
	if len(api.written) != 1 || api.written[0][0] != "Date" {
		t.Errorf("last write should be the header only, got %v", api.written)
	}
}

func TestClient_ReplaceRowsExistingSheet(t *testing.T) {
	api := &fakeSheetsAPI{titles: []string{"expenses-bob"}}
	c := newFakeClient(t, api)

	if err := c.ReplaceRows(context.Background(), "expenses-bob", nil); err != nil {
		t.Fatalf("ReplaceRows() error = %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	for _, call := range api.calls {
		if strings.HasSuffix(call, ":batchUpdate") {
			t.Errorf("existing sheet must not be added again: %v", api.calls)
		}
		if strings.HasPrefix(call, "PUT") {
			t.Errorf("empty rows should only clear: %v", api.calls)
		}
	}
}
