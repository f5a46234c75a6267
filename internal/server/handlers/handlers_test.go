package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/bustrack/internal/apperr"
	"github.com/mamadbah2/bustrack/internal/domain/models"
	"github.com/mamadbah2/bustrack/internal/service/analytics"
	"github.com/mamadbah2/bustrack/internal/service/arrivals"
	"github.com/mamadbah2/bustrack/internal/service/images"
	"github.com/mamadbah2/bustrack/internal/service/trackers"
	"github.com/mamadbah2/bustrack/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
	Error   *errorBody      `json:"error"`
}

func do(t *testing.T, r http.Handler, method, target string, body io.Reader, contentType string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

type fakeArrivals struct {
	ArrivalService
	recordErr error
	gotQuery  arrivals.ListQuery
	gotIDs    []string
	gotFilter *arrivals.BulkFilter
	exported  []models.ArrivalRecord
}

func (f *fakeArrivals) Record(_ context.Context, sub models.ArrivalSubmission) (*models.ArrivalRecord, error) {
	if f.recordErr != nil {
		return nil, f.recordErr
	}
	return &models.ArrivalRecord{RouteID: sub.RouteID, Delay: 17, Status: models.StatusDelayed}, nil
}

func (f *fakeArrivals) List(_ context.Context, q arrivals.ListQuery) (arrivals.Page, error) {
	f.gotQuery = q
	return arrivals.Page{Items: []models.ArrivalRecord{{RouteID: "VV1"}}, CurrentPage: q.Page, TotalPages: 3, TotalItems: 21, ItemsPerPage: q.Limit}, nil
}

func (f *fakeArrivals) BulkDelete(_ context.Context, ids []string, filter *arrivals.BulkFilter) (int64, error) {
	f.gotIDs, f.gotFilter = ids, filter
	if len(ids) == 0 && filter == nil {
		return 0, apperr.Validation("either ids array or filters object must be provided")
	}
	return int64(len(ids)), nil
}

func (f *fakeArrivals) Export(context.Context, arrivals.BulkFilter) ([]models.ArrivalRecord, error) {
	return f.exported, nil
}

type fakeStats struct{ ArrivalStats }

func (fakeStats) RouteArrivalAnalytics(_ context.Context, routeID string, days int) (analytics.ArrivalAnalytics, error) {
	return analytics.ArrivalAnalytics{RouteID: routeID}, nil
}

func arrivalRouter(svc ArrivalService) *gin.Engine {
	h := NewArrivalHandler(svc, fakeStats{}, nil)
	r := gin.New()
	r.POST("/api/arrivals", h.Record)
	r.GET("/api/arrivals", h.List)
	r.DELETE("/api/arrivals/bulk", h.BulkDelete)
	r.GET("/api/arrivals/export", h.Export)
	r.GET("/api/arrivals/route/:routeId/analytics", h.RouteAnalytics)
	return r
}

func TestRecordCreated(t *testing.T) {
	r := arrivalRouter(&fakeArrivals{})

	w, env := do(t, r, http.MethodPost, "/api/arrivals", jsonBody(map[string]any{"routeId": "VV1"}), "application/json")

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	var rec models.ArrivalRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, 17, rec.Delay)
	assert.Equal(t, models.StatusDelayed, rec.Status)
}

func TestErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		kind    apperr.Kind
		message string
	}{
		{"validation", apperr.Validation("routeId is required"), http.StatusBadRequest, apperr.KindValidation, "routeId is required"},
		{"parse", apperr.Parse("bad clock"), http.StatusBadRequest, apperr.KindParse, "bad clock"},
		{"conflict", apperr.Conflict("already recorded"), http.StatusConflict, apperr.KindConflict, "already recorded"},
		{"not found", apperr.NotFound("missing"), http.StatusNotFound, apperr.KindNotFound, "missing"},
		{"store", apperr.Store(errors.New("socket closed"), "insert arrival"), http.StatusInternalServerError, apperr.KindStore, "internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := arrivalRouter(&fakeArrivals{recordErr: tc.err})

			w, env := do(t, r, http.MethodPost, "/api/arrivals", jsonBody(map[string]any{}), "application/json")

			assert.Equal(t, tc.status, w.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.kind, env.Error.Kind)
			assert.Equal(t, tc.message, env.Error.Message)
		})
	}
}

func TestMalformedBodyIsValidationError(t *testing.T) {
	r := arrivalRouter(&fakeArrivals{})

	w, env := do(t, r, http.MethodPost, "/api/arrivals", strings.NewReader("{"), "application/json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.KindValidation, env.Error.Kind)
}

func TestListQueryDefaultsAndPagination(t *testing.T) {
	svc := &fakeArrivals{}
	r := arrivalRouter(svc)

	w, _ := do(t, r, http.MethodGet, "/api/arrivals?routeId=VV1", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, svc.gotQuery.Page)
	assert.Equal(t, 20, svc.gotQuery.Limit)
	assert.True(t, svc.gotQuery.Today)
	assert.Equal(t, "VV1", svc.gotQuery.RouteID)

	var body struct {
		Pagination map[string]int `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pagination["totalPages"])
	assert.Equal(t, 21, body.Pagination["totalItems"])

	w, _ = do(t, r, http.MethodGet, "/api/arrivals?page=2&limit=5&today=false", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.gotQuery.Page)
	assert.Equal(t, 5, svc.gotQuery.Limit)
	assert.False(t, svc.gotQuery.Today)

	w, env := do(t, r, http.MethodGet, "/api/arrivals?limit=zero", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "limit must be a positive integer", env.Error.Message)
}

func TestBulkDeleteRequiresSelection(t *testing.T) {
	svc := &fakeArrivals{}
	r := arrivalRouter(svc)

	w, _ := do(t, r, http.MethodDelete, "/api/arrivals/bulk", jsonBody(map[string]any{}), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, r, http.MethodDelete, "/api/arrivals/bulk", jsonBody(map[string]any{"ids": []string{"a", "b"}}), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b"}, svc.gotIDs)
	assert.JSONEq(t, `{"success":true,"deletedCount":2}`, w.Body.String())
}

func TestExportCSV(t *testing.T) {
	svc := &fakeArrivals{exported: []models.ArrivalRecord{{RouteID: "VV1", BusNumber: "B-12", StopName: "Library"}}}
	r := arrivalRouter(svc)

	w, _ := do(t, r, http.MethodGet, "/api/arrivals/export?format=csv", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "arrivals_export.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Route ID,Bus Number,Stop Name"))
	assert.True(t, strings.HasPrefix(lines[1], "VV1,B-12,Library"))

	w, _ = do(t, r, http.MethodGet, "/api/arrivals/export?format=xml", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouteAnalyticsDaysDefault(t *testing.T) {
	r := arrivalRouter(&fakeArrivals{})

	w, env := do(t, r, http.MethodGet, "/api/arrivals/route/VV1/analytics", nil, "")

	assert.Equal(t, http.StatusOK, w.Code)
	var report analytics.ArrivalAnalytics
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "VV1", report.RouteID)
}

type fakeDailyAnalytics struct {
	DailyAnalyticsService
	gotResolvedBy string
	gotIssueQuery analytics.IssueQuery
}

func (f *fakeDailyAnalytics) ResolveIssue(_ context.Context, _, _ string, resolvedBy string) (*models.Issue, error) {
	f.gotResolvedBy = resolvedBy
	return &models.Issue{Resolved: true, ResolvedBy: resolvedBy}, nil
}

func (f *fakeDailyAnalytics) IssueReports(_ context.Context, q analytics.IssueQuery) ([]models.IssueReport, error) {
	f.gotIssueQuery = q
	return []models.IssueReport{{RouteID: "VV1"}, {RouteID: "VV2"}}, nil
}

type scopeStats struct {
	ArrivalStats
	scopes []analytics.Scope
}

func (f *scopeStats) Summary(_ context.Context, _, _, _ string, scope analytics.Scope) ([]analytics.Bucket, error) {
	f.scopes = append(f.scopes, scope)
	return []analytics.Bucket{}, nil
}

func (f *scopeStats) RoutePerformance(_ context.Context, _, _ string, scope analytics.Scope) ([]analytics.RoutePerformance, error) {
	f.scopes = append(f.scopes, scope)
	return []analytics.RoutePerformance{}, nil
}

func (f *scopeStats) StopPerformance(_ context.Context, _, _ string, scope analytics.Scope) ([]analytics.StopPerformance, error) {
	f.scopes = append(f.scopes, scope)
	return []analytics.StopPerformance{}, nil
}

func TestArrivalStatsAcceptRouteAndStopFilters(t *testing.T) {
	stats := &scopeStats{}
	h := NewArrivalHandler(&fakeArrivals{}, stats, nil)
	r := gin.New()
	r.GET("/summary", h.Summary)
	r.GET("/routes", h.RoutePerformance)
	r.GET("/stops", h.StopPerformance)

	for _, target := range []string{
		"/summary?startDate=2025-03-01&endDate=2025-03-10&routeId=VV1&stopName=Main%20Gate",
		"/routes?startDate=2025-03-01&endDate=2025-03-10&stopName=Library",
		"/stops?startDate=2025-03-01&endDate=2025-03-10&routeId=VV2",
	} {
		w, env := do(t, r, http.MethodGet, target, nil, "")
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.True(t, env.Success)
	}

	assert.Equal(t, []analytics.Scope{
		{RouteID: "VV1", StopName: "Main Gate"},
		{StopName: "Library"},
		{RouteID: "VV2"},
	}, stats.scopes)
}

func TestResolveIssueAndIssueFilters(t *testing.T) {
	svc := &fakeDailyAnalytics{}
	h := NewAnalyticsHandler(svc, nil)
	r := gin.New()
	r.PATCH("/api/analytics/:analyticsId/issues/:issueId/resolve", h.ResolveIssue)
	r.GET("/api/analytics/issues", h.Issues)

	w, env := do(t, r, http.MethodPatch, "/api/analytics/a/issues/b/resolve", jsonBody(map[string]string{"resolvedBy": "dispatch"}), "application/json")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dispatch", svc.gotResolvedBy)
	var issue models.Issue
	require.NoError(t, json.Unmarshal(env.Data, &issue))
	assert.True(t, issue.Resolved)

	w, env = do(t, r, http.MethodGet, "/api/analytics/issues?severity=high&resolved=false", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, env.Count)
	assert.Equal(t, 30, svc.gotIssueQuery.Days)
	assert.Equal(t, "high", svc.gotIssueQuery.Severity)
	require.NotNil(t, svc.gotIssueQuery.Resolved)
	assert.False(t, *svc.gotIssueQuery.Resolved)

	w, _ = do(t, r, http.MethodGet, "/api/analytics/issues?resolved=maybe", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeTrackers struct {
	TrackerService
	gotFilter models.TrackerFilter
}

func (f *fakeTrackers) List(_ context.Context, filter models.TrackerFilter) ([]models.TrackerState, error) {
	f.gotFilter = filter
	return []models.TrackerState{}, nil
}

func (f *fakeTrackers) UpdateStatus(_ context.Context, trackerID string, update trackers.StatusUpdate) (*models.TrackerState, error) {
	return nil, apperr.NotFound("tracker %s not found", trackerID)
}

func TestTrackerHandlers(t *testing.T) {
	svc := &fakeTrackers{}
	h := NewTrackerHandler(svc, nil)
	r := gin.New()
	r.GET("/api/trackers", h.List)
	r.PATCH("/api/trackers/:trackerId/status", h.UpdateStatus)

	w, env := do(t, r, http.MethodGet, "/api/trackers?routeId=VV1&onlineOnly=true", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.Count)
	assert.Equal(t, "VV1", svc.gotFilter.RouteID)
	require.NotNil(t, svc.gotFilter.Online)
	assert.True(t, *svc.gotFilter.Online)

	_, _ = do(t, r, http.MethodGet, "/api/trackers?onlineOnly=false", nil, "")
	assert.Nil(t, svc.gotFilter.Online)

	w, env = do(t, r, http.MethodPatch, "/api/trackers/T-9/status", jsonBody(map[string]string{"status": "maintenance"}), "application/json")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "tracker T-9 not found", env.Error.Message)
}

type fakeImages struct {
	ImageService
	upload images.Upload
	data   []byte
}

func (f *fakeImages) UploadProfile(_ context.Context, up images.Upload) (*models.Image, error) {
	f.upload = up
	data, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	f.data = data
	return &models.Image{UserID: up.UserID, FileName: "k.png", MimeType: up.MimeType}, nil
}

func (f *fakeImages) Open(context.Context, string) (*models.Image, *storage.Object, error) {
	return &models.Image{FileName: "k.png", MimeType: "image/png"},
		&storage.Object{Body: io.NopCloser(strings.NewReader("png-bytes")), Size: 9}, nil
}

func TestImageUploadAndServe(t *testing.T) {
	svc := &fakeImages{}
	h := NewImageHandler(svc, nil)
	r := gin.New()
	r.POST("/api/images/upload-profile", h.UploadProfile)
	r.GET("/api/images/:filename", h.Serve)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("userId", "u-1"))
	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {`form-data; name="image"; filename="me.png"`},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, _ = part.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	w, env := do(t, r, http.MethodPost, "/api/images/upload-profile", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "u-1", svc.upload.UserID)
	assert.Equal(t, "me.png", svc.upload.OriginalName)
	assert.Equal(t, "image/png", svc.upload.MimeType)
	assert.Equal(t, "png-bytes", string(svc.data))
	var img models.Image
	require.NoError(t, json.Unmarshal(env.Data, &img))
	assert.Equal(t, "/api/images/k.png", img.URL)

	w, _ = do(t, r, http.MethodGet, "/api/images/k.png", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", w.Body.String())

	w, env = do(t, r, http.MethodPost, "/api/images/upload-profile", strings.NewReader(""), "multipart/form-data; boundary=x")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no image file provided", env.Error.Message)
}
