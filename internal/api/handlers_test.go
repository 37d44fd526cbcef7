package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hook-system/hook/internal/config"
	"github.com/hook-system/hook/internal/models"
	"github.com/hook-system/hook/internal/plagiarism"
	"github.com/hook-system/hook/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type memStatus struct {
	mu    sync.Mutex
	steps map[string]models.Step
}

func (m *memStatus) Set(_ context.Context, jobID string, step models.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[jobID] = step
	return nil
}

func (m *memStatus) Get(_ context.Context, jobID string) (models.Step, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step, ok := m.steps[jobID]
	return step, ok, nil
}

type memReports map[string]*models.Report

func (m memReports) GetReportByJobID(_ context.Context, jobID string) (*models.Report, error) {
	return m[jobID], nil
}

type memFiles map[string][]*models.FileRecord

func (m memFiles) GetFileRecordsByJobID(_ context.Context, jobID string) ([]*models.FileRecord, error) {
	return m[jobID], nil
}

func (m memFiles) CountFileRecordsByJobID(_ context.Context, jobID string) (int64, error) {
	return int64(len(m[jobID])), nil
}

// orderedQueue checks that the queued step was stored before the job was
// handed to the scheduler
type orderedQueue struct {
	*scheduler.Scheduler
	status          *memStatus
	queuedBeforeRun map[string]bool
}

func (q *orderedQueue) Enqueue(archivePath string, fileCount int, notifyAddress string) (bool, time.Time) {
	step, found, _ := q.status.Get(context.Background(), plagiarism.JobID(archivePath))
	q.queuedBeforeRun[archivePath] = found && step == models.StepQueued
	return q.Scheduler.Enqueue(archivePath, fileCount, notifyAddress)
}

type testEnv struct {
	router *gin.Engine
	queue  *scheduler.Scheduler
	status *memStatus
	token  string
}

func newTestEnv(t *testing.T, rps float64, reports memReports) *testEnv {
	return newTestEnvWithFiles(t, rps, reports, nil)
}

func newTestEnvWithFiles(t *testing.T, rps float64, reports memReports, files memFiles) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	queue := scheduler.New(0.5)
	status := &memStatus{steps: map[string]models.Step{}}
	cfg := &config.Config{JWTSecret: testSecret, RateLimitRPS: rps}
	router := SetupRoutes(cfg, NewHandler(queue, status, reports, files))

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "grader"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	return &testEnv{router: router, queue: queue, status: status, token: token}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func tempArchive(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t, 100, nil)

	rec := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJobRoutesRequireValidToken(t *testing.T) {
	env := newTestEnv(t, 100, nil)

	rec := env.do(http.MethodGet, "/api/v1/jobs/x/eta", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "grader"}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/api/v1/jobs/x/eta", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnqueueReturnsJobAndETA(t *testing.T) {
	env := newTestEnv(t, 100, nil)
	first := tempArchive(t, "hw1.tar.gz")
	second := tempArchive(t, "hw2.tar.gz")

	rec := env.do(http.MethodPost, "/api/v1/jobs", models.JobRequest{ArchivePath: first, FileCount: 10, NotifyAddress: "prof@example.com"}, env.token)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp models.EnqueueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "hw1", resp.JobID)
	assert.True(t, resp.Accepted)
	assert.Equal(t, models.StepQueued, resp.Step)
	assert.Len(t, resp.ETA, len(scheduler.ETALayout))

	rec = env.do(http.MethodPost, "/api/v1/jobs", models.JobRequest{ArchivePath: second, FileCount: 4}, env.token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Accepted)

	queue, _ := env.queue.Snapshot()
	require.Len(t, queue, 2)
	assert.Equal(t, first, queue[0].ArchivePath)
	assert.Equal(t, "prof@example.com", queue[0].NotifyAddress)

	step, found, _ := env.status.Get(context.Background(), "hw2")
	assert.True(t, found)
	assert.Equal(t, models.StepQueued, step)
}

func TestEnqueueRejectsBadRequests(t *testing.T) {
	env := newTestEnv(t, 100, nil)

	rec := env.do(http.MethodPost, "/api/v1/jobs", map[string]any{"fileCount": 3}, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/jobs", models.JobRequest{ArchivePath: "/does/not/exist.tar.gz"}, env.token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ARCHIVE_NOT_FOUND")

	assert.Equal(t, 0, env.queue.Len())
}

func TestETAStatusAndReport(t *testing.T) {
	env := newTestEnv(t, 100, memReports{"done": {JobID: "done", Status: models.StepCompleted}})

	rec := env.do(http.MethodGet, "/api/v1/jobs/anything/eta", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"jobId":"anything"`)

	rec = env.do(http.MethodGet, "/api/v1/jobs/unknown/status", nil, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.status.Set(context.Background(), "done", models.StepCompleted))
	rec = env.do(http.MethodGet, "/api/v1/jobs/done/status", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"step":"completed"`)

	rec = env.do(http.MethodGet, "/api/v1/jobs/done/report", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)
	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "done", report.JobID)

	rec = env.do(http.MethodGet, "/api/v1/jobs/missing/report", nil, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitPerCaller(t *testing.T) {
	env := newTestEnv(t, 0.001, nil)

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/jobs/a/eta", nil, env.token).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(http.MethodGet, "/api/v1/jobs/a/eta", nil, env.token).Code)
}

func TestEnqueueStoresQueuedStatusFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	status := &memStatus{steps: map[string]models.Step{}}
	queue := &orderedQueue{Scheduler: scheduler.New(0.5), status: status, queuedBeforeRun: map[string]bool{}}
	cfg := &config.Config{JWTSecret: testSecret, RateLimitRPS: 100}
	env := &testEnv{router: SetupRoutes(cfg, NewHandler(queue, status, nil, nil)), queue: queue.Scheduler, status: status}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "grader"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	path := tempArchive(t, "hw5.tar.gz")
	rec := env.do(http.MethodPost, "/api/v1/jobs", models.JobRequest{ArchivePath: path, FileCount: 1}, token)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, queue.queuedBeforeRun[path])
}

func TestFilesListsRecords(t *testing.T) {
	env := newTestEnvWithFiles(t, 100, nil, memFiles{
		"hw1": {
			{JobID: "hw1", Path: "CurrentYear/a_s1/A.java", Owner: "s1", Tokens: 40, Fingerprints: 9},
			{JobID: "hw1", Path: "CurrentYear/b_s2/B.java", Owner: "s2", Tokens: 38, Fingerprints: 8, Partial: true},
		},
	})

	rec := env.do(http.MethodGet, "/api/v1/jobs/hw1/files", nil, env.token)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		JobID string              `json:"jobId"`
		Total int64               `json:"total"`
		Files []models.FileRecord `json:"files"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "hw1", body.JobID)
	assert.Equal(t, int64(2), body.Total)
	require.Len(t, body.Files, 2)
	assert.True(t, body.Files[1].Partial)

	rec = env.do(http.MethodGet, "/api/v1/jobs/none/files", nil, env.token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILES_NOT_FOUND")
}
