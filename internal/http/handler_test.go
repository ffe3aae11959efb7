package http

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"complaint-analytics-service/internal/aging"
	"complaint-analytics-service/internal/auth"
	"complaint-analytics-service/internal/config"
	"complaint-analytics-service/internal/db"
	"complaint-analytics-service/internal/export"
	"complaint-analytics-service/internal/http/middleware"
	"complaint-analytics-service/internal/model"
	"complaint-analytics-service/internal/repository"
	"complaint-analytics-service/internal/service"
)

const testSecret = "test-secret"

const complaintsCSV = "Lob,Date,Member Id,VIP,Hub,City,Category,Ticket ID\n" +
	"bbdaily-b2c,10/03/2024,M1,Yes,Hub A,Pune,Amount Credited,T1\n" +
	"bbdaily-b2c,09/03/2024,M1,Yes,Hub A,Pune,Refund initiated,T2\n" +
	"bbdaily-b2c,01/03/2024,M2,No,Hub B,Delhi,Late delivery,T3\n"

type testServer struct {
	router *gin.Engine
	parser *auth.Parser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database, err := db.New(&config.Config{Environment: "test"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	reports := service.NewReportService(repository.NewDatasetRepository(database), service.Options{
		Segment:        "bbdaily-b2c",
		DefaultBuckets: aging.PresetAging,
		MaxDailyDays:   366,
		TTL:            time.Hour,
	}, zerolog.Nop())

	parser := auth.NewParser(testSecret)
	handler := NewHandler(reports, zerolog.Nop(), 1)
	router := NewRouter(handler, middleware.Auth(parser, zerolog.Nop()), zerolog.Nop(), "test", nil)
	return &testServer{router: router, parser: parser}
}

func (s *testServer) token(t *testing.T, principal model.Principal) string {
	t.Helper()
	token, err := s.parser.Issue(principal, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", "complaints.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.WriteField("name", "march"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/datasets", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return s.do(t, req, token)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func uploadDataset(t *testing.T, s *testServer, token string) model.Dataset {
	t.Helper()
	rec := s.upload(t, token, complaintsCSV)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var ds model.Dataset
	decodeData(t, rec, &ds)
	return ds
}

func TestHealthAndAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected a request id header")
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets", nil), "not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}

func TestUploadAndViewReport(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.Principal{UserID: uuid.New(), Role: model.RoleAnalyst})
	ds := uploadDataset(t, s, token)

	if ds.RowCount != 3 || ds.Name != "march" {
		t.Fatalf("unexpected dataset %+v", ds)
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID.String()+"/reports/customers?sort=total", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("report status %d: %s", rec.Code, rec.Body.String())
	}
	var report aging.Report
	decodeData(t, rec, &report)
	if len(report.Rows) != 2 || report.Rows[0].Keys[0] != "M1" || report.Rows[0].Total != 2 {
		t.Fatalf("unexpected report %+v", report.Rows)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID.String()+"/reports/hubs?format=csv&buckets=cumulative&city=pune", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("unexpected content type %q", rec.Header().Get("Content-Type"))
	}
	want := "City,Hub,range_total,1D,2D,3D,7D,30D\nPune,Hub A,2,1,2,2,2,2\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected csv:\n%s", rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID.String()+"/watchlist?format=xlsx", nil), token)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != export.FormatXLSX.ContentType() {
		t.Fatalf("xlsx status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "refund_misuse_report") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestCustomReportAndDrilldown(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, model.Principal{UserID: uuid.New(), Role: model.RoleAnalyst})
	ds := uploadDataset(t, s, token)

	body := `{"group_keys":["City"],"buckets":"none","daily":true,"from":"2024-03-09","to":"2024-03-10"}`
	req := httptest.NewRequest(http.MethodPost, "/datasets/"+ds.ID.String()+"/reports", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := s.do(t, req, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("custom report status %d: %s", rec.Code, rec.Body.String())
	}
	var report aging.Report
	decodeData(t, rec, &report)
	if strings.Join(report.DayLabels, ",") != "09-Mar,10-Mar" || len(report.Rows) != 1 || report.Rows[0].Daily[1] != 1 {
		t.Fatalf("unexpected custom report %+v", report)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID.String()+"/members/M1", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("member status %d", rec.Code)
	}
	var drill model.MemberDrilldown
	decodeData(t, rec, &drill)
	if len(drill.Events) != 2 {
		t.Fatalf("unexpected drilldown %+v", drill)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/datasets/"+ds.ID.String()+"/series", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("series status %d", rec.Code)
	}
	var series model.ComplaintSeries
	decodeData(t, rec, &series)
	if series.Total != 3 || len(series.Daily) != 10 {
		t.Fatalf("unexpected series %+v", series)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, model.Principal{UserID: uuid.New(), Role: model.RoleAnalyst})
	other := s.token(t, model.Principal{UserID: uuid.New(), Role: model.RoleAnalyst})
	ds := uploadDataset(t, s, owner)
	base := "/datasets/" + ds.ID.String()

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"other owner", base, other, http.StatusForbidden},
		{"unknown dataset", "/datasets/" + uuid.NewString(), owner, http.StatusNotFound},
		{"bad dataset id", "/datasets/nope", owner, http.StatusBadRequest},
		{"unknown view", base + "/reports/regions", owner, http.StatusNotFound},
		{"bad date", base + "/reports/hubs?from=03/01/2024", owner, http.StatusBadRequest},
		{"bad buckets", base + "/reports/hubs?buckets=weekly", owner, http.StatusBadRequest},
		{"bad format", base + "/watchlist?format=pdf", owner, http.StatusBadRequest},
		{"bad vip", base + "/series?vip=maybe", owner, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := s.do(t, httptest.NewRequest(http.MethodGet, tc.path, nil), tc.token)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d (%s)", tc.name, tc.status, rec.Code, rec.Body.String())
		}
	}

	rec := s.upload(t, owner, "Lob,Date\nbb-b2b,01/03/2024\n")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for an upload without valid rows, got %d", rec.Code)
	}

	rec = s.upload(t, owner, strings.Repeat("x", 2<<20))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 for an oversized upload, got %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, base, nil), other)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 deleting another user's dataset, got %d", rec.Code)
	}
	rec = s.do(t, httptest.NewRequest(http.MethodDelete, base, nil), owner)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on delete, got %d", rec.Code)
	}
}
