// Package scheduler drives translation of a unit list through a backend:
// a fixed worker pool over a shared batch channel, per-unit retry with
// exponential backoff, checkpoint-based resume, and dedup of identical
// source texts.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/batch"
	"github.com/transtools/doctrans/internal/extract"
	"github.com/transtools/doctrans/internal/glossary"
	"github.com/transtools/doctrans/pkg/log"
	"github.com/transtools/doctrans/pkg/tokens"
)

// CheckpointStore is what the engine needs from the persistence layer:
// idempotent result writes and replay for resume.
type CheckpointStore interface {
	PutResults(ctx context.Context, jobID string, results []backend.Result) error
	LoadResults(ctx context.Context, jobID string) (map[string]backend.Result, error)
}

// Progress counts units by outcome. Pending is everything not yet terminal.
type Progress struct {
	Total   int
	Success int
	Skipped int
	Failed  int
	Pending int
}

// Params are the per-job translation parameters.
type Params struct {
	SourceLang string
	TargetLang string
	Glossary   *glossary.Glossary
	// OnProgress is called after every terminal unit outcome. Optional.
	OnProgress func(Progress)
}

// Options tune the engine.
type Options struct {
	// Workers is the worker pool size.
	Workers int
	// RetryBudget is the number of retries per unit after the first
	// attempt, so a unit sees at most RetryBudget+1 backend calls.
	RetryBudget int
	// BaseBackoff is the first retry delay; it doubles per attempt up to
	// MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// ContextTokens caps the rolling previous-translation window carried
	// into LLM prompts.
	ContextTokens int
}

func (o *Options) defaults() {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.RetryBudget < 0 {
		o.RetryBudget = 0
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.ContextTokens <= 0 {
		o.ContextTokens = 128
	}
}

// Engine schedules batches against one backend.
type Engine struct {
	translator backend.Translator
	store      CheckpointStore
	batcher    *batch.Batcher
	opts       Options
}

func New(translator backend.Translator, store CheckpointStore, batcher *batch.Batcher, opts Options) *Engine {
	opts.defaults()
	return &Engine{
		translator: translator,
		store:      store,
		batcher:    batcher,
		opts:       opts,
	}
}

// run is the mutable state of one Run invocation.
type run struct {
	engine *Engine
	jobID  string
	params Params

	work      chan batch.Batch
	closeOnce sync.Once
	pending   int64

	mu      sync.Mutex
	total   int
	retries map[string]int
	results map[string]backend.Result
	// dupes maps a representative unit ID to the identical-text units it
	// stands in for.
	dupes map[string][]extract.Unit

	prevMu   sync.Mutex
	prevWin  []string
	prevToks int
}

// Run translates units and returns one terminal result per unit. Units
// already Success in the checkpoint are not re-sent. A cancelled context
// stops dispatch; in-flight calls finish, committed results stay in the
// checkpoint, and ctx.Err() is returned alongside the partial results.
func (e *Engine) Run(ctx context.Context, jobID string, units []extract.Unit, params Params) (map[string]backend.Result, error) {
	r := &run{
		engine:  e,
		jobID:   jobID,
		params:  params,
		retries: make(map[string]int),
		results: make(map[string]backend.Result, len(units)),
		dupes:   make(map[string][]extract.Unit),
		total:   len(units),
	}

	checkpointed, err := e.store.LoadResults(ctx, jobID)
	if err != nil {
		return nil, err
	}

	// seed terminal successes from the checkpoint; failed and skipped
	// units get a fresh attempt
	remaining := make([]extract.Unit, 0, len(units))
	for _, u := range units {
		if prev, ok := checkpointed[u.ID]; ok && prev.Status == backend.StatusSuccess {
			r.results[u.ID] = prev
			continue
		}
		remaining = append(remaining, u)
	}
	if len(remaining) < len(units) {
		log.Info("Job %s: resuming, %d of %d units already translated", jobID, len(units)-len(remaining), len(units))
	}

	// identical source texts are translated once and fanned out
	reps := make([]extract.Unit, 0, len(remaining))
	byText := make(map[string]string)
	for _, u := range remaining {
		if repID, ok := byText[u.SourceText]; ok {
			r.dupes[repID] = append(r.dupes[repID], u)
			continue
		}
		byText[u.SourceText] = u.ID
		reps = append(reps, u)
	}

	if len(reps) == 0 {
		r.reportProgress()
		return r.results, nil
	}

	batches := e.batcher.Split(reps)
	r.pending = int64(len(reps))
	r.work = make(chan batch.Batch, 2*len(reps)+len(batches))
	for _, b := range batches {
		r.work <- b
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.opts.Workers; i++ {
		g.Go(func() error { return r.worker(ctx) })
	}
	err = g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]backend.Result, len(r.results))
	for id, res := range r.results {
		out[id] = res
	}
	return out, err
}

func (r *run) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-r.work:
			if !ok {
				return nil
			}
			r.process(ctx, b)
		}
	}
}

func (r *run) process(ctx context.Context, b batch.Batch) {
	texts := make([]string, len(b.Units))
	for i, u := range b.Units {
		texts[i] = u.SourceText
	}

	req := backend.BatchRequest{
		Batch:       b,
		SourceLang:  r.params.SourceLang,
		TargetLang:  r.params.TargetLang,
		PrevContext: r.prevContext(),
	}
	if r.params.Glossary != nil {
		req.Glossary = r.params.Glossary.Match(texts)
	}

	resMap, err := r.engine.translator.Translate(ctx, req)
	if err != nil && ctx.Err() != nil {
		// interrupted, the units stay pending for the next resume
		return
	}

	for _, u := range b.Units {
		res, ok := resMap[u.ID]
		if ok && res.Status == backend.StatusSuccess {
			r.commit(ctx, u, res)
			r.rememberTranslation(res.TranslatedText)
			continue
		}
		r.handleFailure(ctx, u, err)
	}
}

// handleFailure either schedules a retry as a singleton batch or marks the
// unit Skipped once the budget is spent or the failure is permanent.
func (r *run) handleFailure(ctx context.Context, u extract.Unit, cause error) {
	r.mu.Lock()
	attempts := r.retries[u.ID]
	exhausted := attempts >= r.engine.opts.RetryBudget
	permanent := backend.IsPermanent(cause)
	if !exhausted && !permanent {
		r.retries[u.ID] = attempts + 1
	}
	r.mu.Unlock()

	if exhausted || permanent {
		if permanent {
			log.Warn("Job %s: unit %s failed permanently, passing source through: %v", r.jobID, u.ID, cause)
		} else {
			log.Warn("Job %s: unit %s exhausted %d retries, passing source through", r.jobID, u.ID, r.engine.opts.RetryBudget)
		}
		r.commit(ctx, u, backend.Result{UnitID: u.ID, Status: backend.StatusSkipped})
		return
	}

	delay := r.backoff(attempts + 1)
	log.Debug("Job %s: retrying unit %s in %s (attempt %d)", r.jobID, u.ID, delay, attempts+1)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			select {
			case <-ctx.Done():
			case r.work <- batch.Batch{Index: -1, Units: []extract.Unit{u}}:
			}
		}
	}()
}

func (r *run) backoff(attempt int) time.Duration {
	d := r.engine.opts.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.engine.opts.MaxBackoff {
			return r.engine.opts.MaxBackoff
		}
	}
	if d > r.engine.opts.MaxBackoff {
		d = r.engine.opts.MaxBackoff
	}
	return d
}

// commit records a terminal outcome for a representative unit, fans it out
// to its identical-text duplicates, checkpoints everything, and closes the
// work channel when the last unit lands.
func (r *run) commit(ctx context.Context, u extract.Unit, res backend.Result) {
	r.mu.Lock()
	toStore := []backend.Result{res}
	r.results[u.ID] = res
	for _, dup := range r.dupes[u.ID] {
		dupRes := backend.Result{
			UnitID:         dup.ID,
			TranslatedText: res.TranslatedText,
			Status:         res.Status,
		}
		r.results[dup.ID] = dupRes
		toStore = append(toStore, dupRes)
	}
	r.mu.Unlock()

	if err := r.engine.store.PutResults(ctx, r.jobID, toStore); err != nil {
		log.Error("Job %s: failed to checkpoint %d results: %v", r.jobID, len(toStore), err)
	}
	r.reportProgress()

	if atomic.AddInt64(&r.pending, -1) == 0 {
		r.closeOnce.Do(func() { close(r.work) })
	}
}

func (r *run) reportProgress() {
	if r.params.OnProgress == nil {
		return
	}
	r.params.OnProgress(r.snapshot())
}

func (r *run) snapshot() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := Progress{Total: r.total}
	for _, res := range r.results {
		switch res.Status {
		case backend.StatusSuccess:
			p.Success++
		case backend.StatusSkipped:
			p.Skipped++
		case backend.StatusFailed:
			p.Failed++
		}
	}
	p.Pending = p.Total - p.Success - p.Skipped - p.Failed
	return p
}

// rememberTranslation feeds the rolling context window carried into LLM
// prompts: the last few translated segments, capped by token estimate.
func (r *run) rememberTranslation(text string) {
	if text == "" {
		return
	}
	r.prevMu.Lock()
	defer r.prevMu.Unlock()

	r.prevWin = append(r.prevWin, text)
	r.prevToks += tokens.Estimate(text)
	for len(r.prevWin) > 3 || (r.prevToks > r.engine.opts.ContextTokens && len(r.prevWin) > 1) {
		r.prevToks -= tokens.Estimate(r.prevWin[0])
		r.prevWin = r.prevWin[1:]
	}
}

func (r *run) prevContext() string {
	r.prevMu.Lock()
	defer r.prevMu.Unlock()
	if len(r.prevWin) == 0 {
		return ""
	}
	joined := r.prevWin[0]
	for _, s := range r.prevWin[1:] {
		joined += "\n" + s
	}
	return joined
}
