package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/restaurant-cms-api/internal/api"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/mocks"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/service"
	"github.com/rs/zerolog"
)

type testServer struct {
	router  *gin.Engine
	article *mocks.MockArticleService
	publish *mocks.MockPublishService
	imports *mocks.MockImportService
	export  *mocks.MockExportService
	job     *mocks.MockJobService
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }
func (f fakeDB) Stats() sql.DBStats                    { return sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2} }

func testConfig() *config.Config {
	return &config.Config{
		Env:    "development",
		Server: config.ServerConfig{Port: "8080"},
		Import: config.ImportConfig{
			BatchSize:     1000,
			MaxUploadSize: 10 * 1024 * 1024,
			UploadDir:     "/tmp/test-uploads",
		},
	}
}

func setupTestServer(cfg *config.Config, opts api.Options) *testServer {
	gin.SetMode(gin.TestMode)

	s := &testServer{
		article: mocks.NewMockArticleService(),
		publish: mocks.NewMockPublishService(),
		imports: mocks.NewMockImportService(),
		export:  mocks.NewMockExportService(),
		job:     mocks.NewMockJobService(),
	}
	services := &service.Services{
		Publish: s.publish,
		Article: s.article,
		Import:  s.imports,
		Export:  s.export,
		Job:     s.job,
	}
	s.router = api.NewRouter(services, cfg, opts, zerolog.Nop())
	return s
}

func setupTestRouter() *testServer {
	return setupTestServer(testConfig(), api.Options{})
}

func (s *testServer) do(method, path string, body []byte, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s := setupTestRouter()

	w := s.do("GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)

	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", response["status"])
	}
	if response["service"] != "restaurant-cms-api" {
		t.Errorf("Expected service name, got %v", response["service"])
	}
}

func TestHealthEndpoint_DatabaseDown(t *testing.T) {
	s := setupTestServer(testConfig(), api.Options{DB: fakeDB{err: errors.New("connection refused")}})

	w := s.do("GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(testConfig(), api.Options{DB: fakeDB{}})
	s.export.Counts[""] = 12
	s.export.Counts[models.StatusDraft] = 3
	s.export.Counts[models.StatusScheduled] = 4
	s.export.Counts[models.StatusPublished] = 5

	w := s.do("GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response struct {
		Articles map[string]int `json:"articles"`
		Database map[string]int `json:"database"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	want := map[string]int{"total": 12, "draft": 3, "scheduled": 4, "published": 5}
	for key, n := range want {
		if response.Articles[key] != n {
			t.Errorf("Expected %s=%d, got %d", key, n, response.Articles[key])
		}
	}
	if response.Database["open_connections"] != 3 {
		t.Errorf("Expected pool stats, got %v", response.Database)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s := setupTestServer(testConfig(), api.Options{Metrics: metrics.New()})

	s.do("GET", "/v1/articles/some-slug", nil)
	w := s.do("GET", "/metrics/prometheus", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	want := `cms_http_requests_total{method="GET",route="/v1/articles/:slug",status="404"} 1`
	if !strings.Contains(w.Body.String(), want) {
		t.Errorf("Expected %q in metrics output", want)
	}
}

func TestListPublished(t *testing.T) {
	s := setupTestRouter()
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s.article.ListPublishedFunc = func(ctx context.Context, filter models.ArticleFilter) ([]*models.Article, error) {
		return []*models.Article{{ID: "1", Slug: "spargel", Status: models.StatusPublished, PublishedAt: &published}}, nil
	}

	w := s.do("GET", "/v1/articles?limit=5&offset=10&category=Live-Musik&tag=Bodensee", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	f := s.article.LastFilter
	if f.Limit != 5 || f.Offset != 10 || f.Category != "live-musik" || f.Tag != "bodensee" {
		t.Errorf("Unexpected filter %+v", f)
	}

	var response struct {
		Articles []models.Article `json:"articles"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if len(response.Articles) != 1 || response.Articles[0].Slug != "spargel" {
		t.Errorf("Unexpected articles %+v", response.Articles)
	}
}

func TestListPublished_BadPaging(t *testing.T) {
	s := setupTestRouter()

	for _, q := range []string{"limit=abc", "offset=-1"} {
		w := s.do("GET", "/v1/articles?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestListPublished_ReportsAppliedLimit(t *testing.T) {
	s := setupTestRouter()

	tests := []struct {
		query string
		want  int
	}{
		{"", service.DefaultPageSize},
		{"?limit=0", service.DefaultPageSize},
		{"?limit=1000", service.MaxPageSize},
		{"?limit=7", 7},
	}
	for _, tt := range tests {
		w := s.do("GET", "/v1/articles"+tt.query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: expected 200, got %d", tt.query, w.Code)
		}

		var response struct {
			Limit int `json:"limit"`
		}
		json.Unmarshal(w.Body.Bytes(), &response)
		if response.Limit != tt.want {
			t.Errorf("%q: expected limit %d in response, got %d", tt.query, tt.want, response.Limit)
		}
		if s.article.LastFilter.Limit != tt.want {
			t.Errorf("%q: expected limit %d passed to the service, got %d", tt.query, tt.want, s.article.LastFilter.Limit)
		}
	}

	w := s.do("GET", "/v1/admin/articles?limit=500", nil)
	var response struct {
		Limit int `json:"limit"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response.Limit != service.MaxPageSize {
		t.Errorf("admin list: expected limit %d, got %d", service.MaxPageSize, response.Limit)
	}
}

func TestGetPublished(t *testing.T) {
	s := setupTestRouter()
	s.article.GetPublishedFunc = func(ctx context.Context, slug string) (*models.Article, error) {
		if slug == "jazz-brunch" {
			return &models.Article{ID: "1", Slug: slug, Status: models.StatusPublished}, nil
		}
		return nil, service.ErrNotFound
	}

	if w := s.do("GET", "/v1/articles/jazz-brunch", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if w := s.do("GET", "/v1/articles/entwurf", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unpublished article, got %d", w.Code)
	}
}

func TestListLabels(t *testing.T) {
	s := setupTestRouter()
	s.article.ListLabelsFunc = func(ctx context.Context, kind models.LabelKind) ([]models.Label, error) {
		if kind == models.LabelCategory {
			return []models.Label{{Name: "Kulinarik", Slug: "kulinarik", ArticleCount: 4}}, nil
		}
		return []models.Label{{Name: "Wein", Slug: "wein", ArticleCount: 2}}, nil
	}

	w := s.do("GET", "/v1/categories", nil)
	var cats map[string][]models.Label
	json.Unmarshal(w.Body.Bytes(), &cats)
	if len(cats["categories"]) != 1 || cats["categories"][0].ArticleCount != 4 {
		t.Errorf("Unexpected categories response: %s", w.Body.String())
	}

	w = s.do("GET", "/v1/tags", nil)
	var tags map[string][]models.Label
	json.Unmarshal(w.Body.Bytes(), &tags)
	if len(tags["tags"]) != 1 || tags["tags"][0].Slug != "wein" {
		t.Errorf("Unexpected tags response: %s", w.Body.String())
	}
}

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		token  string
		header string
		want   int
	}{
		{"development without token is open", "development", "", "", http.StatusOK},
		{"production without token is unavailable", "production", "", "", http.StatusServiceUnavailable},
		{"missing header", "production", "secret", "", http.StatusUnauthorized},
		{"wrong token", "production", "secret", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "production", "secret", "Basic secret", http.StatusUnauthorized},
		{"valid token", "production", "secret", "Bearer secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Env = tt.env
			cfg.Admin.Token = tt.token
			s := setupTestServer(cfg, api.Options{})

			var headers []string
			if tt.header != "" {
				headers = []string{"Authorization", tt.header}
			}
			w := s.do("GET", "/v1/admin/articles", nil, headers...)
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestCronPublish(t *testing.T) {
	cfg := testConfig()
	cfg.Publish.CronSecret = "cron-secret"
	s := setupTestServer(cfg, api.Options{})
	s.publish.Result = &models.PublishResult{DueCount: 2, PublishedCount: 2, PublishedIDs: []string{"a", "b"}}

	if w := s.do("GET", "/v1/cron/publish", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without secret, got %d", w.Code)
	}
	if s.publish.CallCount() != 0 {
		t.Error("Unauthorized call must not run a sweep")
	}

	for _, method := range []string{"GET", "POST"} {
		w := s.do(method, "/v1/cron/publish", nil, "Authorization", "Bearer cron-secret")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", method, w.Code)
		}
		var result models.PublishResult
		json.Unmarshal(w.Body.Bytes(), &result)
		if result.PublishedCount != 2 {
			t.Errorf("Expected published_count 2, got %d", result.PublishedCount)
		}
	}

	if !s.publish.Calls[0].IsZero() {
		t.Error("Cron sweep should use the service clock")
	}
}

func TestCronPublish_SweepFailure(t *testing.T) {
	s := setupTestRouter()
	s.publish.Err = errors.New("deadlock detected")

	if w := s.do("POST", "/v1/cron/publish", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
}

func TestAdminPublish(t *testing.T) {
	s := setupTestRouter()

	if w := s.do("POST", "/v1/admin/publish", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if s.publish.CallCount() != 1 {
		t.Errorf("Expected one sweep, got %d", s.publish.CallCount())
	}
}

func TestCreateArticle(t *testing.T) {
	s := setupTestRouter()
	s.article.CreateFunc = func(ctx context.Context, input *models.ArticleInput) (*models.Article, error) {
		switch input.Title {
		case "":
			return nil, &service.ValidationErrors{Errors: []models.ValidationError{{Field: "title", Message: "title is required"}}}
		case "Doppelt":
			return nil, service.ErrSlugTaken
		case "Kaputt":
			return nil, errors.New("db down")
		}
		return &models.Article{ID: "new", Slug: "neu", Title: input.Title}, nil
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"created", `{"title":"Neu","body":"Text"}`, http.StatusCreated},
		{"validation", `{"title":""}`, http.StatusUnprocessableEntity},
		{"slug conflict", `{"title":"Doppelt"}`, http.StatusConflict},
		{"store failure", `{"title":"Kaputt"}`, http.StatusInternalServerError},
		{"bad json", `{"title":`, http.StatusBadRequest},
		{"bad time", `{"title":"X","scheduled_at":"morgen"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do("POST", "/v1/admin/articles", []byte(tt.body))
			if w.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCreateArticle_ValidationBody(t *testing.T) {
	s := setupTestRouter()
	s.article.CreateFunc = func(ctx context.Context, input *models.ArticleInput) (*models.Article, error) {
		return nil, &service.ValidationErrors{Errors: []models.ValidationError{{Field: "slug", Message: "bad slug"}}}
	}

	w := s.do("POST", "/v1/admin/articles", []byte(`{"title":"X","slug":"Bad Slug"}`))

	var response struct {
		Errors []models.ValidationError `json:"errors"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	if len(response.Errors) != 1 || response.Errors[0].Field != "slug" {
		t.Errorf("Expected field errors in body, got %s", w.Body.String())
	}
}

func TestUpdateAndDeleteArticle(t *testing.T) {
	s := setupTestRouter()
	articleID := "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	missingID := "9b2f4c1e-3d5a-4e8b-a1c2-0f6e7d8c9b0a"
	s.article.UpdateFunc = func(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error) {
		if id != articleID {
			return nil, service.ErrNotFound
		}
		return &models.Article{ID: id, Title: input.Title}, nil
	}
	s.article.DeleteFunc = func(ctx context.Context, id string) error {
		if id != articleID {
			return service.ErrNotFound
		}
		return nil
	}

	if w := s.do("PUT", "/v1/admin/articles/"+articleID, []byte(`{"title":"Neu"}`)); w.Code != http.StatusOK {
		t.Errorf("PUT: expected 200, got %d", w.Code)
	}
	if w := s.do("PUT", "/v1/admin/articles/"+missingID, []byte(`{"title":"Neu"}`)); w.Code != http.StatusNotFound {
		t.Errorf("PUT missing: expected 404, got %d", w.Code)
	}
	if w := s.do("DELETE", "/v1/admin/articles/"+articleID, nil); w.Code != http.StatusNoContent {
		t.Errorf("DELETE: expected 204, got %d", w.Code)
	}
	if w := s.do("DELETE", "/v1/admin/articles/"+missingID, nil); w.Code != http.StatusNotFound {
		t.Errorf("DELETE missing: expected 404, got %d", w.Code)
	}
	if w := s.do("GET", "/v1/admin/articles/"+missingID, nil); w.Code != http.StatusNotFound {
		t.Errorf("GET missing: expected 404, got %d", w.Code)
	}

	for _, id := range []string{"zz", "1", "7c9e6679"} {
		calls := 0
		dbErr := errors.New("invalid input syntax for type uuid")
		s.article.GetFunc = func(ctx context.Context, id string) (*models.Article, error) {
			calls++
			return nil, dbErr
		}
		s.article.UpdateFunc = func(ctx context.Context, id string, input *models.ArticleInput) (*models.Article, error) {
			calls++
			return nil, dbErr
		}
		s.article.DeleteFunc = func(ctx context.Context, id string) error {
			calls++
			return dbErr
		}
		for _, method := range []string{"GET", "PUT", "DELETE"} {
			if w := s.do(method, "/v1/admin/articles/"+id, []byte(`{"title":"Neu"}`)); w.Code != http.StatusNotFound {
				t.Errorf("%s %s: expected 404 for a malformed id, got %d", method, id, w.Code)
			}
		}
		if calls != 0 {
			t.Errorf("%s: malformed id reached the service", id)
		}
	}
}

func TestAdminListArticles(t *testing.T) {
	s := setupTestRouter()

	if w := s.do("GET", "/v1/admin/articles?status=archived", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", w.Code)
	}

	if w := s.do("GET", "/v1/admin/articles?status=scheduled", nil); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if s.article.LastFilter.Status != models.StatusScheduled {
		t.Errorf("Expected SCHEDULED filter, got %q", s.article.LastFilter.Status)
	}
}

func TestPreviewTaxonomy(t *testing.T) {
	s := setupTestRouter()
	s.article.PreviewFunc = func(input *models.ArticleInput) models.TaxonomyPreview {
		return models.TaxonomyPreview{Categories: []string{"Events"}, Tags: []string{"Live-Musik"}, InferredCategories: true, InferredTags: true}
	}

	w := s.do("POST", "/v1/admin/taxonomy/preview", []byte(`{"title":"Live-Musik am Freitag"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var preview models.TaxonomyPreview
	json.Unmarshal(w.Body.Bytes(), &preview)
	if !preview.InferredTags || preview.Tags[0] != "Live-Musik" {
		t.Errorf("Unexpected preview %+v", preview)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := api.NewRateLimiter(config.RateLimitConfig{RPS: 0.001, Burst: 2}, zerolog.Nop())
	s := setupTestServer(testConfig(), api.Options{Limiter: limiter})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = s.do("GET", "/v1/categories", nil).Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected 200, 200, 429, got %v", codes)
	}

	// admin routes are not rate limited
	if w := s.do("GET", "/v1/admin/articles", nil); w.Code != http.StatusOK {
		t.Errorf("Expected admin route to bypass the limiter, got %d", w.Code)
	}
}

func TestGetImportStatus(t *testing.T) {
	s := setupTestRouter()
	s.job.Jobs["5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f"] = &models.JobResponse{
		Job: models.Job{
			ID:              "5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f",
			Resource:        models.ResourceArticles,
			Status:          models.JobStatusCompleted,
			TotalRecords:    11,
			SuccessfulCount: 4,
			FailedCount:     7,
			CreatedAt:       time.Now(),
		},
		ErrorCount: 7,
	}

	w := s.do("GET", "/v1/admin/imports/5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["job_id"] != "5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f" {
		t.Errorf("Expected job_id '5f0c6b1e-8d2a-4c3b-9e7f-1a2b3c4d5e6f', got %v", response["job_id"])
	}
	if response["failed"].(float64) != 7 {
		t.Errorf("Expected 7 failed, got %v", response["failed"])
	}

	if w := s.do("GET", "/v1/admin/imports/00000000-0000-4000-8000-000000000000", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing job, got %d", w.Code)
	}
}

func TestGetImportErrors(t *testing.T) {
	s := setupTestRouter()
	s.job.Errors["11111111-1111-4111-8111-111111111111"] = []models.ValidationError{
		{Line: 4, Field: "slug", Message: "slug must be kebab-case", Value: "Hinter Den Kulissen"},
		{Line: 10, Field: "json", Message: "invalid JSON"},
	}

	w := s.do("GET", "/v1/admin/imports/11111111-1111-4111-8111-111111111111/errors", nil)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	if response["error_count"].(float64) != 2 {
		t.Errorf("Expected 2 errors, got %v", response["error_count"])
	}

	w = s.do("GET", "/v1/admin/imports/11111111-1111-4111-8111-111111111111/errors?format=csv", nil)
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Expected text/csv, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 3 || lines[0] != "line,field,message,value" {
		t.Errorf("Unexpected CSV report:\n%s", w.Body.String())
	}

	w = s.do("GET", "/v1/admin/imports/22222222-2222-4222-8222-222222222222/errors", nil)
	if !strings.Contains(w.Body.String(), `"errors":[]`) {
		t.Errorf("Expected empty error list, got %s", w.Body.String())
	}

	for _, path := range []string{"/v1/admin/imports/job-1", "/v1/admin/imports/job-1/errors"} {
		if w := s.do("GET", path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404 for a malformed job id, got %d", path, w.Code)
		}
	}
}

func multipartUpload(t *testing.T, resource, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if resource != "" {
		writer.WriteField("resource", resource)
	}
	if filename != "" {
		part, _ := writer.CreateFormFile("file", filename)
		part.Write([]byte(content))
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestCreateImport(t *testing.T) {
	cfg := testConfig()
	cfg.Import.UploadDir = t.TempDir()
	s := setupTestServer(cfg, api.Options{})

	body, contentType := multipartUpload(t, "", "articles.ndjson", `{"slug":"a","title":"A","body":"x"}`+"\n")
	req := httptest.NewRequest("POST", "/v1/admin/imports", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if len(s.imports.CreatedJobs) != 1 || s.imports.CreatedJobs[0].Resource != models.ResourceArticles {
		t.Errorf("Expected one articles job, got %+v", s.imports.CreatedJobs)
	}
	if !strings.HasPrefix(s.imports.CreatedJobs[0].FilePath, cfg.Import.UploadDir) {
		t.Errorf("Upload should be saved under %s, got %s", cfg.Import.UploadDir, s.imports.CreatedJobs[0].FilePath)
	}
}

func TestImportValidation(t *testing.T) {
	s := setupTestRouter()

	tests := []struct {
		name     string
		resource string
		filename string
		want     string
	}{
		{"unknown resource", "users", "users.ndjson", "resource must be"},
		{"csv file", "articles", "articles.csv", "requires an NDJSON file"},
		{"no file", "articles", "", "file upload is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartUpload(t, tt.resource, tt.filename, "test data\n")
			req := httptest.NewRequest("POST", "/v1/admin/imports", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d. Body: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("Expected %q in response, got: %s", tt.want, w.Body.String())
			}
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	s := setupTestRouter()
	s.job.Jobs["existing-job-123"] = &models.JobResponse{
		Job: models.Job{
			ID:             "existing-job-123",
			Resource:       models.ResourceArticles,
			Status:         models.JobStatusCompleted,
			IdempotencyKey: "unique-idempotency-key",
		},
	}

	body, contentType := multipartUpload(t, "articles", "articles.ndjson", "{}\n")
	req := httptest.NewRequest("POST", "/v1/admin/imports", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", "unique-idempotency-key")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 (existing job), got %d", w.Code)
	}
	if len(s.imports.CreatedJobs) != 0 {
		t.Error("A repeated idempotency key must not create a new job")
	}
}

func TestExportStream(t *testing.T) {
	s := setupTestRouter()
	var gotFormat string
	s.export.StreamArticlesFunc = func(ctx context.Context, w http.ResponseWriter, format string) error {
		gotFormat = format
		w.Write([]byte(`{"slug":"a"}` + "\n"))
		return nil
	}

	if w := s.do("GET", "/v1/admin/exports", nil); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if gotFormat != "ndjson" {
		t.Errorf("Expected ndjson by default, got %q", gotFormat)
	}

	if w := s.do("GET", "/v1/admin/exports?format=csv", nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for csv, got %d", w.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	s := setupTestRouter()

	w := s.do("OPTIONS", "/v1/admin/articles", nil,
		"Origin", "https://www.example.com",
		"Access-Control-Request-Method", "POST",
		"Access-Control-Request-Headers", "Authorization")
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204 for preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin '*', got '%s'", got)
	}
	if !strings.Contains(strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "authorization") {
		t.Error("Expected Authorization in Access-Control-Allow-Headers")
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.Server.AllowedOrigins = []string{"https://www.example.com"}
	s := setupTestServer(cfg, api.Options{})

	w := s.do("GET", "/v1/articles", nil, "Origin", "https://www.example.com")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://www.example.com" {
		t.Errorf("Expected allowed origin to be echoed, got '%s'", got)
	}

	w = s.do("GET", "/v1/articles", nil, "Origin", "https://evil.example.org")
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for a foreign origin, got %d", w.Code)
	}
}
