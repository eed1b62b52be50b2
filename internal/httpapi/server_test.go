package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transtools/doctrans/internal/config"
	"github.com/transtools/doctrans/internal/formats"
	"github.com/transtools/doctrans/internal/jobs"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *jobs.Queue) {
	t.Helper()
	queue := jobs.NewQueue(1, nil)
	t.Cleanup(queue.Stop)
	return NewServer(queue, formats.DefaultRegistry(), opts...), queue
}

func postJob(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleJobs_SubmitAndDedupe(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJob(t, s, `{"input_path":"/docs/report.txt","target_lang":"fr"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Created bool      `json:"created"`
		Job     *jobs.Job `json:"job"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Created)
	require.Equal(t, jobs.StatusPending, created.Job.Status)
	require.Equal(t, "/docs/report.txt", created.Job.Payload.InputPath)

	rec = postJob(t, s, `{"input_path":"/docs/report.txt","target_lang":"fr"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.False(t, created.Created)
}

func TestHandleJobs_Validation(t *testing.T) {
	s, _ := newTestServer(t)

	rec := postJob(t, s, `{"target_lang":"fr"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJob(t, s, `{"input_path":"/docs/report.docx"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJob(t, s, `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleJobs_List(t *testing.T) {
	s, queue := newTestServer(t)
	queue.Enqueue(jobs.EnqueueRequest{Payload: jobs.JobPayload{InputPath: "a.txt"}})
	queue.Enqueue(jobs.EnqueueRequest{Payload: jobs.JobPayload{InputPath: "b.txt"}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []*jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
}

func TestHandleJobByID(t *testing.T) {
	s, queue := newTestServer(t)
	job, _ := queue.Enqueue(jobs.EnqueueRequest{Payload: jobs.JobPayload{InputPath: "a.txt"}})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleJobActions(t *testing.T) {
	s, queue := newTestServer(t)
	job, _ := queue.Enqueue(jobs.EnqueueRequest{Payload: jobs.JobPayload{InputPath: "a.txt"}})

	act := func(action string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+job.ID+"/"+action, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := act("pause")
	require.Equal(t, http.StatusOK, rec.Code)
	var paused jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paused))
	require.Equal(t, jobs.StatusPaused, paused.Status)

	require.Equal(t, http.StatusOK, act("resume").Code)
	require.Equal(t, http.StatusOK, act("cancel").Code)
	// cancelling a terminal job conflicts
	require.Equal(t, http.StatusConflict, act("cancel").Code)
	require.Equal(t, http.StatusNotFound, act("explode").Code)
}

func TestHandleFormats(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Extensions []string `json:"extensions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.Extensions, ".txt")
	require.Contains(t, resp.Extensions, ".srt")
}

type fakeSettings struct {
	current config.RuntimeSettings
	saved   bool
}

func (f *fakeSettings) GetRuntimeSettings(ctx context.Context) (config.RuntimeSettings, bool, error) {
	return f.current, f.saved, nil
}

func (f *fakeSettings) UpdateRuntimeSettings(ctx context.Context, next config.RuntimeSettings) error {
	f.current = next
	f.saved = true
	return nil
}

func TestHandleSettings(t *testing.T) {
	store := &fakeSettings{}
	s, _ := newTestServer(t, WithSettingsStore(store))

	req := httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"target_language":"fr","worker_count":6}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "fr", store.current.TargetLanguage)

	req = httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got config.RuntimeSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 6, got.WorkerCount)

	req = httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(`{"target_language":"???"}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSettings_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHandleJobStream(t *testing.T) {
	s, queue := newTestServer(t)
	queue.Enqueue(jobs.EnqueueRequest{Payload: jobs.JobPayload{InputPath: "a.txt"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Body.String(), "data: ")
	require.Contains(t, rec.Body.String(), "a.txt")
}
