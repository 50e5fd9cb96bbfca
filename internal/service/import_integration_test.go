package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/restaurant-cms-api/internal/models"
)

// testdataPath returns the absolute path to a file in the testdata directory.
func testdataPath(t testing.TB, filename string) string {
	t.Helper()
	_, currentFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(currentFile)))
	path := filepath.Join(projectRoot, "testdata", filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("testdata file not found: %s", path)
	}
	return path
}

func createTestJob(h *testHarness, resource, filePath string) *models.Job {
	now := time.Now()
	job := &models.Job{
		ID:        "integration-test-job",
		Resource:  resource,
		Status:    models.JobStatusPending,
		FilePath:  filePath,
		StartedAt: &now,
		CreatedAt: now,
	}
	h.jobs.Create(context.Background(), job)
	return job
}

func runFixtureImport(t *testing.T) (*testHarness, *models.Job) {
	t.Helper()
	h := newTestHarness(t)
	job := createTestJob(h, models.ResourceArticles, testdataPath(t, "articles.ndjson"))

	if err := h.services.Import.ProcessImport(context.Background(), job); err != nil {
		t.Fatalf("ProcessImport returned error: %v", err)
	}
	return h, job
}

func TestProcessImport_ArticlesNDJSON_Counts(t *testing.T) {
	h, job := runFixtureImport(t)

	if job.TotalRecords != 11 {
		t.Errorf("Expected 11 total records, got %d", job.TotalRecords)
	}
	if job.SuccessfulCount != 4 {
		t.Errorf("Expected 4 successful records, got %d", job.SuccessfulCount)
	}
	if job.FailedCount != 7 {
		t.Errorf("Expected 7 failed records, got %d", job.FailedCount)
	}
	if job.ProcessedCount != job.TotalRecords {
		t.Errorf("ProcessedCount(%d) should equal TotalRecords(%d)", job.ProcessedCount, job.TotalRecords)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("Expected status 'completed', got '%s'", job.Status)
	}
	if job.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if len(h.articles.Articles) != job.SuccessfulCount {
		t.Errorf("Repository has %d articles, but SuccessfulCount is %d", len(h.articles.Articles), job.SuccessfulCount)
	}

	// batch size 3: one full batch plus the remainder
	if h.articles.BatchInsertCalls != 2 {
		t.Errorf("Expected 2 batch inserts, got %d", h.articles.BatchInsertCalls)
	}
}

func TestProcessImport_ArticlesNDJSON_ErrorsByLine(t *testing.T) {
	h, job := runFixtureImport(t)

	want := map[int]string{
		4:  "slug",
		5:  "title",
		6:  "scheduled_at",
		7:  "slug",
		8:  "status",
		9:  "published_at",
		10: "json",
	}

	got := make(map[int]map[string]bool)
	for _, e := range h.jobs.Errors[job.ID] {
		if got[e.Line] == nil {
			got[e.Line] = make(map[string]bool)
		}
		got[e.Line][e.Field] = true
	}

	for line, field := range want {
		if !got[line][field] {
			t.Errorf("Expected a %s error on line %d, got %v", field, line, got[line])
		}
	}
	for _, line := range []int{1, 2, 3, 11} {
		if len(got[line]) > 0 {
			t.Errorf("Line %d is valid but has errors %v", line, got[line])
		}
	}
}

func TestProcessImport_ArticlesNDJSON_StoredArticles(t *testing.T) {
	h, _ := runFixtureImport(t)

	spargel := h.articles.Get("6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e01")
	if spargel == nil {
		t.Fatal("line 1 should be imported")
	}
	if spargel.Status != models.StatusPublished || spargel.PublishedAt == nil {
		t.Errorf("Expected a published article with a date, got %s %v", spargel.Status, spargel.PublishedAt)
	}
	cats := spargel.CategoryNames()
	if !containsName(cats, "Kulinarik") || !containsName(cats, "Region") {
		t.Errorf("Expected inferred Kulinarik and Region, got %v", cats)
	}
	if !containsName(spargel.TagNames(), "Bodensee") {
		t.Errorf("Expected inferred Bodensee tag, got %v", spargel.TagNames())
	}

	wein := h.articles.Get("6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e03")
	if wein.Status != models.StatusDraft {
		t.Errorf("Lowercase status should be accepted, got %s", wein.Status)
	}
	if cats := wein.CategoryNames(); len(cats) != 1 || cats[0] != "Getränke" {
		t.Errorf("Manual categories should be kept, got %v", cats)
	}
	if tags := wein.TagNames(); len(tags) != 2 || tags[0] != "Wein" || tags[1] != "Winzer" {
		t.Errorf("Manual tags should be kept in order, got %v", tags)
	}

	duplicate := h.articles.Get("6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e07")
	if duplicate != nil {
		t.Error("Line 7 reuses a slug and must not be imported")
	}
}

func TestProcessImport_ScheduledArticlesPublishLater(t *testing.T) {
	h, _ := runFixtureImport(t)
	ctx := context.Background()

	result, err := h.services.Publish.PublishDue(ctx, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if result.PublishedCount != 0 {
		t.Errorf("Nothing is due yet, got %d published", result.PublishedCount)
	}

	result, err = h.services.Publish.PublishDue(ctx, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if result.PublishedCount != 2 {
		t.Errorf("Expected both scheduled imports published, got %d", result.PublishedCount)
	}
	if result.PublishedIDs[0] != "6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e02" {
		t.Errorf("Expected the June brunch first, got %v", result.PublishedIDs)
	}

	markt := h.articles.Get("6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e10")
	want := time.Date(2024, 11, 28, 16, 0, 0, 0, time.UTC)
	if markt.PublishedAt == nil || !markt.PublishedAt.Equal(want) {
		t.Errorf("Preset published_at should be kept, got %v", markt.PublishedAt)
	}

	brunch := h.articles.Get("6f1c9a1e-2b7d-4c1a-9f3e-0a1b2c3d4e02")
	if brunch.PublishedAt == nil || !brunch.PublishedAt.Equal(time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("published_at should come from scheduled_at, got %v", brunch.PublishedAt)
	}
}

func TestProcessImport_SkipsRowsAlreadyStored(t *testing.T) {
	h := newTestHarness(t)
	h.articles.Seed(&models.Article{ID: "existing", Slug: "sommerkarte", Title: "Alt", Status: models.StatusDraft})

	file := writeTempNDJSON(t,
		`{"slug":"sommerkarte","title":"Neu","body":"Text"}`,
		``,
		`{"slug":"herbstkarte","title":"Herbst","body":"Text"}`,
	)
	job := createTestJob(h, models.ResourceArticles, file)

	if err := h.services.Import.ProcessImport(context.Background(), job); err != nil {
		t.Fatalf("ProcessImport returned error: %v", err)
	}
	if job.TotalRecords != 2 {
		t.Errorf("Blank lines should not count, got %d records", job.TotalRecords)
	}
	if job.SuccessfulCount != 1 || job.SkippedCount != 1 || job.FailedCount != 0 {
		t.Errorf("Expected 1 successful, 1 skipped and 0 failed, got %d/%d/%d",
			job.SuccessfulCount, job.SkippedCount, job.FailedCount)
	}
	if h.articles.Get("existing").Title != "Alt" {
		t.Error("Existing article must not be overwritten")
	}
}

func TestProcessImport_BatchInsertFailure(t *testing.T) {
	h := newTestHarness(t)
	h.articles.InsertError = errors.New("connection refused")

	file := writeTempNDJSON(t,
		`{"slug":"eins","title":"Eins","body":"Text"}`,
		`{"slug":"zwei","title":"Zwei","body":"Text"}`,
	)
	job := createTestJob(h, models.ResourceArticles, file)

	if err := h.services.Import.ProcessImport(context.Background(), job); err != nil {
		t.Fatalf("ProcessImport returned error: %v", err)
	}
	if job.SuccessfulCount != 0 || job.FailedCount != 2 {
		t.Errorf("Expected the whole batch counted as failed, got %d/%d", job.SuccessfulCount, job.FailedCount)
	}
}

func TestProcessImport_MissingFile(t *testing.T) {
	h := newTestHarness(t)
	job := createTestJob(h, models.ResourceArticles, filepath.Join(t.TempDir(), "gone.ndjson"))

	if err := h.services.Import.ProcessImport(context.Background(), job); err == nil {
		t.Fatal("Expected error for a missing file")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("Expected status 'failed', got '%s'", job.Status)
	}
}

func TestProcessImport_UnknownResource(t *testing.T) {
	h := newTestHarness(t)
	job := createTestJob(h, "users", writeTempNDJSON(t, `{}`))

	if err := h.services.Import.ProcessImport(context.Background(), job); err == nil {
		t.Fatal("Expected error for an unknown resource")
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("Expected status 'failed', got '%s'", job.Status)
	}
}

func TestCreateImportJob(t *testing.T) {
	h := newTestHarness(t)

	job, err := h.services.Import.CreateImportJob(context.Background(), &models.ImportRequest{
		Resource:       models.ResourceArticles,
		IdempotencyKey: "key-1",
	}, "/tmp/upload.ndjson")
	if err != nil {
		t.Fatalf("CreateImportJob failed: %v", err)
	}
	if job.Status != models.JobStatusPending {
		t.Errorf("Expected pending job, got %s", job.Status)
	}

	found, _ := h.services.Job.GetJobByIdempotencyKey(context.Background(), "key-1")
	if found == nil || found.ID != job.ID {
		t.Error("Job should be retrievable by idempotency key")
	}
}

func TestCreateImportJob_ReusesIdempotencyKey(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	req := &models.ImportRequest{Resource: models.ResourceArticles, IdempotencyKey: "upload-42"}

	first, err := h.services.Import.CreateImportJob(ctx, req, writeTempNDJSON(t, `{}`))
	if err != nil {
		t.Fatalf("First CreateImportJob failed: %v", err)
	}

	duplicate := writeTempNDJSON(t, `{}`)
	second, err := h.services.Import.CreateImportJob(ctx, req, duplicate)
	if err != nil {
		t.Fatalf("Second CreateImportJob failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected existing job %s, got %s", first.ID, second.ID)
	}
	if _, err := os.Stat(duplicate); !os.IsNotExist(err) {
		t.Error("Duplicate upload should be removed")
	}
}
