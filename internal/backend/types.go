// Package backend adapts translation providers behind a single capability
// interface. Adapters are stateless and safe for concurrent use; the
// scheduler treats them as black boxes that either translate a batch or
// fail it as a whole.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/transtools/doctrans/internal/batch"
	"github.com/transtools/doctrans/internal/glossary"
)

// Status of a single unit's translation attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome for one unit. Partial failure within a batch is
// expressed by mixing statuses across the returned map.
type Result struct {
	UnitID         string `json:"unit_id"`
	TranslatedText string `json:"translated_text"`
	Status         Status `json:"status"`
}

// BatchRequest carries one batch plus the translation parameters.
type BatchRequest struct {
	Batch      batch.Batch
	SourceLang string
	TargetLang string
	// PrevContext is a rolling snippet of recent translations, passed to
	// LLM backends for continuity across batches.
	PrevContext string
	// Glossary terms matched against this batch's text.
	Glossary []glossary.Term
}

// Translator is the capability a provider adapter implements. Translate
// returns exactly one Result per submitted unit; a whole-call failure is
// reported through the error, never by silently dropping units.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req BatchRequest) (map[string]Result, error)
}

// ErrorKind classifies a backend failure for the retry policy.
type ErrorKind int

const (
	// KindTransient failures (timeouts, 429, 5xx, network) are worth
	// retrying with backoff.
	KindTransient ErrorKind = iota
	// KindPermanent failures (auth, invalid request) will not improve
	// with retries.
	KindPermanent
)

// Error wraps a backend failure with its retry classification.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Kind == KindPermanent {
		return fmt.Sprintf("permanent backend error: %v", e.Err)
	}
	return fmt.Sprintf("transient backend error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as retryable.
func Transient(err error) *Error { return &Error{Kind: KindTransient, Err: err} }

// Permanent wraps err as non-retryable.
func Permanent(err error) *Error { return &Error{Kind: KindPermanent, Err: err} }

// IsPermanent reports whether err carries a permanent classification.
// Unclassified errors count as transient.
func IsPermanent(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindPermanent
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403 || code == 400 || code == 404 || code == 422:
		return KindPermanent
	default:
		return KindTransient
	}
}

// allFailed reports every unit of the batch as Failed. Used when a whole
// call fails, so the scheduler always receives one result per unit.
func allFailed(b batch.Batch) map[string]Result {
	results := make(map[string]Result, len(b.Units))
	for _, u := range b.Units {
		results[u.ID] = Result{UnitID: u.ID, Status: StatusFailed}
	}
	return results
}
