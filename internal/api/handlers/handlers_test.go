package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	infraBQ "github.com/dvloznov/statement-ledger/internal/infra/bigquery"
	"github.com/dvloznov/statement-ledger/internal/jobs"
	"github.com/dvloznov/statement-ledger/internal/jobs/inmemory"
)

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.AnalyzeStatementJob) error
	published   []*jobs.AnalyzeStatementJob
}

func (m *MockPublisher) PublishAnalyzeStatement(ctx context.Context, job *jobs.AnalyzeStatementJob) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, job); err != nil {
			return err
		}
	}
	if job.JobID == "" {
		job.JobID = "job-1"
	}
	job.Status = jobs.JobStatusPending
	m.published = append(m.published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// MockStorage records uploaded objects.
type MockStorage struct {
	UploadErr error
	objects   map[string]string
}

func (m *MockStorage) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	return nil
}

func (m *MockStorage) UploadBytes(ctx context.Context, bucketName, objectName string, data []byte, contentType string) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	if m.objects == nil {
		m.objects = make(map[string]string)
	}
	m.objects[bucketName+"/"+objectName] = string(data)
	return nil
}

func (m *MockStorage) FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (m *MockStorage) ListObjects(ctx context.Context, prefixURI string) ([]string, error) {
	return nil, nil
}

// MockRunReader is a mock implementation of RunReader for testing.
type MockRunReader struct {
	ListRunsFunc         func(ctx context.Context, limit int) ([]*infraBQ.AnalysisRunRow, error)
	QueryDailyRollupFunc func(ctx context.Context, runID string) ([]*infraBQ.DailyRollupRow, error)
	DeleteRunFunc        func(ctx context.Context, runID string) error
}

func (m *MockRunReader) ListRuns(ctx context.Context, limit int) ([]*infraBQ.AnalysisRunRow, error) {
	return m.ListRunsFunc(ctx, limit)
}

func (m *MockRunReader) QueryDailyRollup(ctx context.Context, runID string) ([]*infraBQ.DailyRollupRow, error) {
	return m.QueryDailyRollupFunc(ctx, runID)
}

func (m *MockRunReader) DeleteRun(ctx context.Context, runID string) error {
	return m.DeleteRunFunc(ctx, runID)
}

type testServer struct {
	handler   http.Handler
	publisher *MockPublisher
	store     *inmemory.Store
	storage   *MockStorage
}

func newTestServer(runs RunReader) *testServer {
	ts := &testServer{
		publisher: &MockPublisher{},
		store:     inmemory.NewStore(),
		storage:   &MockStorage{},
	}
	ts.handler = NewRouter(Deps{
		Log:       zerolog.Nop(),
		Publisher: ts.publisher,
		JobStore:  ts.store,
		Runs:      runs,
		Storage:   ts.storage,
		Bucket:    "uploads",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

const analyzeBody = `{"pages": [
	{"name": "p1.txt", "text": "` + "```json" + `\n[{\"transaction_date\": \"01-01-2024\", \"value_date\": \"01-01-2024\", \"description\": \"Opening\", \"withdrawals\": \"0.00\", \"deposits\": \"0.00\", \"balance\": \"1000.00\"},\n {\"transaction_date\": \"02-01-2024\", \"value_date\": \"02-01-2024\", \"description\": \"Shop\", \"withdrawals\": \"1,000.005\", \"deposits\": \"0.00\", \"balance\": \"-0.005\"},\n {\"transaction_date\": \"bad\", \"value_date\": \"02-01-2024\", \"description\": \"X\", \"withdrawals\": \"1\", \"deposits\": \"0\", \"balance\": \"0\"}]\n` + "```" + `"},
	{"text": "the model refused"}
]}`

func TestAnalyze(t *testing.T) {
	ts := newTestServer(nil)

	rec := ts.do(t, http.MethodPost, "/api/analyze", analyzeBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp AnalysisResponse
	decode(t, rec, &resp)

	if resp.PagesProcessed != 2 || resp.RecordsSeen != 3 {
		t.Errorf("counts = %d pages %d records", resp.PagesProcessed, resp.RecordsSeen)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("len(transactions) = %d, want 2", len(resp.Transactions))
	}
	if got := resp.Transactions[1].Withdrawals; got != "1000.005" {
		t.Errorf("withdrawals = %q, want full precision 1000.005", got)
	}
	if got := resp.Summary.Metrics["total_withdrawals"]; got != "1000.01" {
		t.Errorf("total_withdrawals = %q, want 1000.01", got)
	}
	if got := resp.Summary.Metrics["ending_balance"]; got != "-0.01" {
		t.Errorf("ending_balance = %q, want -0.01", got)
	}
	if len(resp.Daily) != 2 || resp.Daily[1].Date != "2024-01-02" {
		t.Errorf("daily = %+v", resp.Daily)
	}

	var raw struct {
		Summary struct {
			Metrics map[string]interface{} `json:"metrics"`
		} `json:"summary"`
		Daily []map[string]interface{} `json:"daily"`
	}
	decode(t, rec, &raw)
	for key, v := range raw.Summary.Metrics {
		if _, ok := v.(float64); !ok {
			t.Errorf("metric %s = %#v, want a JSON number", key, v)
		}
	}
	if !strings.Contains(rec.Body.String(), `"total_withdrawals":1000.01`) {
		t.Errorf("total_withdrawals not encoded as 1000.01: %s", rec.Body.String())
	}
	if len(raw.Daily) == 0 {
		t.Fatal("no daily rows")
	}
	for _, key := range []string{"date", "daily_withdrawals", "daily_deposits", "closing_balance", "cumulative_spend", "cumulative_deposits"} {
		if _, ok := raw.Daily[0][key]; !ok {
			t.Errorf("daily row missing %q: %v", key, raw.Daily[0])
		}
	}

	if len(resp.Errors) != 2 {
		t.Fatalf("errors = %+v, want 2", resp.Errors)
	}
	if resp.Errors[0].Kind != "page" || resp.Errors[0].Page != 2 {
		t.Errorf("errors[0] = %+v", resp.Errors[0])
	}
	if resp.Errors[1].Field != "transaction_date" {
		t.Errorf("errors[1] = %+v", resp.Errors[1])
	}
}

func TestAnalyze_BadRequests(t *testing.T) {
	ts := newTestServer(nil)

	if rec := ts.do(t, http.MethodPost, "/api/analyze", "{not json"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/analyze", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/analyze", `{"pages": []}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty pages status = %d", rec.Code)
	}
	var resp AnalysisResponse
	decode(t, rec, &resp)
	if len(resp.Transactions) != 0 || resp.Summary.Metrics["net_change_pct"] != "0.00" {
		t.Errorf("empty result = %+v", resp)
	}
}

func TestEnqueueStatement(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantSource string
	}{
		{name: "gcs source", body: `{"source": "gs://b/stmt", "publish": true}`, wantStatus: http.StatusAccepted, wantSource: "gs://b/stmt/"},
		{name: "inline pages", body: `{"pages": [{"text": "[]"}, {"text": "[]"}]}`, wantStatus: http.StatusAccepted, wantSource: "gs://uploads/statements/"},
		{name: "not gcs", body: `{"source": "/tmp/stmt"}`, wantStatus: http.StatusBadRequest},
		{name: "both", body: `{"source": "gs://b/s", "pages": [{"text": "[]"}]}`, wantStatus: http.StatusBadRequest},
		{name: "neither", body: `{}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(nil)
			rec := ts.do(t, http.MethodPost, "/api/statements", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusAccepted {
				if len(ts.publisher.published) != 0 {
					t.Error("nothing should be published")
				}
				return
			}

			var resp map[string]string
			decode(t, rec, &resp)
			if !strings.HasPrefix(resp["source"], tt.wantSource) || resp["job_id"] == "" {
				t.Errorf("resp = %v", resp)
			}
		})
	}
}

func TestEnqueueStatement_UploadsPages(t *testing.T) {
	ts := newTestServer(nil)
	rec := ts.do(t, http.MethodPost, "/api/statements", `{"pages": [{"text": "one"}, {"text": "two"}]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(ts.storage.objects) != 2 {
		t.Fatalf("uploaded = %v", ts.storage.objects)
	}
	found := false
	for k, v := range ts.storage.objects {
		if strings.HasSuffix(k, "/transaction_page_2.txt") && v == "two" {
			found = true
		}
	}
	if !found {
		t.Errorf("page 2 not uploaded under its page name: %v", ts.storage.objects)
	}

	ts.storage.UploadErr = errors.New("denied")
	if rec := ts.do(t, http.MethodPost, "/api/statements", `{"pages": [{"text": "x"}]}`); rec.Code != http.StatusInternalServerError {
		t.Errorf("upload failure status = %d", rec.Code)
	}

	ts.publisher.PublishFunc = func(ctx context.Context, job *jobs.AnalyzeStatementJob) error {
		return jobs.ErrQueueClosed
	}
	if rec := ts.do(t, http.MethodPost, "/api/statements", `{"source": "gs://b/p/"}`); rec.Code != http.StatusInternalServerError {
		t.Errorf("publish failure status = %d", rec.Code)
	}
}

func TestJobsEndpoints(t *testing.T) {
	ts := newTestServer(nil)
	ctx := context.Background()
	_ = ts.store.SaveJob(ctx, &jobs.AnalyzeStatementJob{JobID: "a", Source: "gs://b/1/", Status: jobs.JobStatusCompleted, CreatedAt: time.Now()})
	_ = ts.store.SaveJob(ctx, &jobs.AnalyzeStatementJob{JobID: "b", Source: "gs://b/2/", Status: jobs.JobStatusFailed, CreatedAt: time.Now()})

	rec := ts.do(t, http.MethodGet, "/api/jobs?status=failed", "")
	var list struct {
		Jobs  []jobs.AnalyzeStatementJob `json:"jobs"`
		Count int                        `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 1 || list.Jobs[0].JobID != "b" {
		t.Errorf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/jobs/a", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GetJob status = %d", rec.Code)
	}
	var job jobs.AnalyzeStatementJob
	decode(t, rec, &job)
	if job.Source != "gs://b/1/" {
		t.Errorf("job = %+v", job)
	}

	if rec := ts.do(t, http.MethodGet, "/api/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d", rec.Code)
	}
}

func TestRunsEndpoints(t *testing.T) {
	started := time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
	var deleted string
	repo := &MockRunReader{
		ListRunsFunc: func(ctx context.Context, limit int) ([]*infraBQ.AnalysisRunRow, error) {
			if limit != defaultRunsLimit {
				t.Errorf("limit = %d", limit)
			}
			return []*infraBQ.AnalysisRunRow{{
				RunID: "r1", Source: "gs://b/p/", Status: infraBQ.RunStatusPartial, StartedTS: started,
				FinishedTS: bigquery.NullTimestamp{Timestamp: started.Add(time.Minute), Valid: true},
			}}, nil
		},
		QueryDailyRollupFunc: func(ctx context.Context, runID string) ([]*infraBQ.DailyRollupRow, error) {
			if runID != "r1" {
				return nil, nil
			}
			return []*infraBQ.DailyRollupRow{{
				RunID: "r1", RollupDate: civil.Date{Year: 2024, Month: 1, Day: 2},
				DailyWithdrawals: big.NewRat(1001, 100), DailyDeposits: new(big.Rat),
				ClosingBalance: big.NewRat(98999, 100), CumulativeSpend: big.NewRat(1001, 100),
				CumulativeDeposits: new(big.Rat), TransactionCount: 1,
			}}, nil
		},
		DeleteRunFunc: func(ctx context.Context, runID string) error {
			deleted = runID
			return nil
		},
	}
	ts := newTestServer(repo)

	rec := ts.do(t, http.MethodGet, "/api/runs", "")
	var runs struct {
		Runs []RunJSON `json:"runs"`
	}
	decode(t, rec, &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].FinishedAt != "2024-01-03T10:01:00Z" {
		t.Errorf("runs = %+v", runs)
	}

	rec = ts.do(t, http.MethodGet, "/api/runs/r1/daily", "")
	var daily struct {
		Daily []DailyJSON `json:"daily"`
	}
	decode(t, rec, &daily)
	if len(daily.Daily) != 1 || daily.Daily[0].DailyWithdrawals != "10.01" || daily.Daily[0].ClosingBalance != "989.99" {
		t.Errorf("daily = %+v", daily)
	}

	if rec := ts.do(t, http.MethodGet, "/api/runs/unknown/daily", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", rec.Code)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/runs/r1", ""); rec.Code != http.StatusNoContent || deleted != "r1" {
		t.Errorf("delete status = %d, deleted %q", rec.Code, deleted)
	}
}

func TestRouter_RunsDisabledAndUtility(t *testing.T) {
	ts := newTestServer(nil)

	if rec := ts.do(t, http.MethodGet, "/api/runs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("runs without repository status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	rec := ts.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ledger_http_requests_total") {
		t.Errorf("metrics status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

// failingJobStore fails every read.
type failingJobStore struct {
	*inmemory.Store
}

func (s *failingJobStore) GetJob(ctx context.Context, jobID string) (*jobs.AnalyzeStatementJob, error) {
	return nil, errors.New("store offline")
}

func (s *failingJobStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.AnalyzeStatementJob, error) {
	return nil, errors.New("store offline")
}

func TestBackendFailures(t *testing.T) {
	boom := errors.New("bigquery unavailable")
	repo := &MockRunReader{
		ListRunsFunc: func(ctx context.Context, limit int) ([]*infraBQ.AnalysisRunRow, error) {
			return nil, boom
		},
		QueryDailyRollupFunc: func(ctx context.Context, runID string) ([]*infraBQ.DailyRollupRow, error) {
			return nil, boom
		},
		DeleteRunFunc: func(ctx context.Context, runID string) error {
			return boom
		},
	}
	handler := NewRouter(Deps{
		Log:       zerolog.Nop(),
		Publisher: &MockPublisher{},
		JobStore:  &failingJobStore{Store: inmemory.NewStore()},
		Runs:      repo,
		Storage:   &MockStorage{},
		Bucket:    "uploads",
	})

	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{name: "get job", method: http.MethodGet, path: "/api/jobs/a", want: "Failed to get job"},
		{name: "list jobs", method: http.MethodGet, path: "/api/jobs", want: "Failed to list jobs"},
		{name: "list runs", method: http.MethodGet, path: "/api/runs", want: "Failed to list runs"},
		{name: "daily rollup", method: http.MethodGet, path: "/api/runs/r1/daily", want: "Failed to query daily rollup"},
		{name: "delete run", method: http.MethodDelete, path: "/api/runs/r1", want: "Failed to delete run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %s, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}
