package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/batch"
	"github.com/transtools/doctrans/internal/document"
	"github.com/transtools/doctrans/internal/extract"
)

type memStore struct {
	mu   sync.Mutex
	rows map[string]map[string]backend.Result
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]map[string]backend.Result)}
}

func (s *memStore) PutResults(ctx context.Context, jobID string, results []backend.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rows[jobID] == nil {
		s.rows[jobID] = make(map[string]backend.Result)
	}
	for _, r := range results {
		s.rows[jobID][r.UnitID] = r
	}
	return nil
}

func (s *memStore) LoadResults(ctx context.Context, jobID string) (map[string]backend.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]backend.Result, len(s.rows[jobID]))
	for id, r := range s.rows[jobID] {
		out[id] = r
	}
	return out, nil
}

// fakeBackend translates by prefixing "T:", with per-unit scripted failures.
type fakeBackend struct {
	mu sync.Mutex
	// failures[id] is how many transient failures the unit sees before
	// succeeding; -1 means it always fails
	failures  map[string]int
	permanent map[string]bool
	calls     map[string]int
	block     chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		failures:  make(map[string]int),
		permanent: make(map[string]bool),
		calls:     make(map[string]int),
	}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Translate(ctx context.Context, req backend.BatchRequest) (map[string]backend.Result, error) {
	if f.block != nil {
		select {
		case <-ctx.Done():
			results := make(map[string]backend.Result)
			for _, u := range req.Batch.Units {
				results[u.ID] = backend.Result{UnitID: u.ID, Status: backend.StatusFailed}
			}
			return results, backend.Transient(ctx.Err())
		case <-f.block:
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	results := make(map[string]backend.Result, len(req.Batch.Units))
	var failed bool
	for _, u := range req.Batch.Units {
		f.calls[u.ID]++
		if f.permanent[u.ID] {
			for _, v := range req.Batch.Units {
				results[v.ID] = backend.Result{UnitID: v.ID, Status: backend.StatusFailed}
			}
			return results, backend.Permanent(errors.New("invalid credentials"))
		}
		if n, ok := f.failures[u.ID]; ok && (n == -1 || f.calls[u.ID] <= n) {
			results[u.ID] = backend.Result{UnitID: u.ID, Status: backend.StatusFailed}
			failed = true
			continue
		}
		results[u.ID] = backend.Result{
			UnitID:         u.ID,
			TranslatedText: "T:" + u.SourceText,
			Status:         backend.StatusSuccess,
		}
	}
	if failed {
		return results, backend.Transient(errors.New("model hiccup"))
	}
	return results, nil
}

func (f *fakeBackend) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func makeUnits(texts ...string) []extract.Unit {
	units := make([]extract.Unit, len(texts))
	for i, text := range texts {
		addr := document.ParseAddress(fmt.Sprintf("line:%d", i))
		units[i] = extract.Unit{ID: extract.UnitID(addr), SourceText: text, Position: addr}
	}
	return units
}

func newEngine(fb *fakeBackend, store CheckpointStore, retryBudget int) *Engine {
	return New(fb, store, batch.New(50), Options{
		Workers:     3,
		RetryBudget: retryBudget,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})
}

func TestEngine_AllSuccess(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("one sentence here", "two sentences here", "three sentences here")

	results, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, u := range units {
		require.Equal(t, backend.StatusSuccess, results[u.ID].Status)
		require.Equal(t, "T:"+u.SourceText, results[u.ID].TranslatedText)
	}

	stored, err := store.LoadResults(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
}

func TestEngine_TransientFailureRetriesThenSucceeds(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("alpha sentence", "beta sentence", "gamma sentence")
	fb.failures[units[2].ID] = 2 // fails twice, then succeeds

	results, err := newEngine(fb, store, 3).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Equal(t, backend.StatusSuccess, results[units[2].ID].Status)
	require.Equal(t, 3, fb.callCount(units[2].ID))
	// healthy units are not re-sent alongside the retry
	require.Equal(t, 1, fb.callCount(units[0].ID))
}

func TestEngine_RetryBudgetExhaustedMeansSkipped(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("doomed sentence", "fine sentence")
	fb.failures[units[0].ID] = -1

	results, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Equal(t, backend.StatusSkipped, results[units[0].ID].Status)
	require.Equal(t, backend.StatusSuccess, results[units[1].ID].Status)
	// first attempt plus exactly RetryBudget retries
	require.Equal(t, 3, fb.callCount(units[0].ID))
}

func TestEngine_PermanentFailureSkipsImmediately(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("unit with bad auth")
	fb.permanent[units[0].ID] = true

	results, err := newEngine(fb, store, 5).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Equal(t, backend.StatusSkipped, results[units[0].ID].Status)
	require.Equal(t, 1, fb.callCount(units[0].ID))
}

func TestEngine_ResumeSkipsCheckpointedUnits(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("already done sentence", "not yet done sentence")

	require.NoError(t, store.PutResults(context.Background(), "job-1", []backend.Result{
		{UnitID: units[0].ID, TranslatedText: "cached translation", Status: backend.StatusSuccess},
	}))

	results, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Equal(t, "cached translation", results[units[0].ID].TranslatedText)
	require.Zero(t, fb.callCount(units[0].ID))
	require.Equal(t, 1, fb.callCount(units[1].ID))
}

func TestEngine_ResumeRetriesSkippedUnits(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("previously skipped sentence")

	require.NoError(t, store.PutResults(context.Background(), "job-1", []backend.Result{
		{UnitID: units[0].ID, Status: backend.StatusSkipped},
	}))

	results, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Equal(t, backend.StatusSuccess, results[units[0].ID].Status)
}

func TestEngine_DeduplicatesIdenticalText(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("repeated sentence", "repeated sentence", "repeated sentence", "unique sentence")

	results, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{TargetLang: "fr"})
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, u := range units[:3] {
		require.Equal(t, "T:repeated sentence", results[u.ID].TranslatedText)
	}
	// only the representative hit the backend
	require.Equal(t, 1, fb.callCount(units[0].ID))
	require.Zero(t, fb.callCount(units[1].ID))
	require.Zero(t, fb.callCount(units[2].ID))
}

func TestEngine_CancelStopsDispatch(t *testing.T) {
	fb := newFakeBackend()
	fb.block = make(chan struct{})
	store := newMemStore()
	units := makeUnits("first blocked sentence")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var runErr error
	go func() {
		_, runErr = newEngine(fb, store, 2).Run(ctx, "job-1", units, Params{TargetLang: "fr"})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop after cancel")
	}
	require.ErrorIs(t, runErr, context.Canceled)
}

func TestEngine_ProgressCallback(t *testing.T) {
	fb := newFakeBackend()
	store := newMemStore()
	units := makeUnits("progress one", "progress two")

	var mu sync.Mutex
	var last Progress
	_, err := newEngine(fb, store, 2).Run(context.Background(), "job-1", units, Params{
		TargetLang: "fr",
		OnProgress: func(p Progress) {
			mu.Lock()
			last = p
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 2, last.Total)
	require.Equal(t, 2, last.Success)
	require.Zero(t, last.Pending)
}
