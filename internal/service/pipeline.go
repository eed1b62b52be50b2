// Package service ties the translation pipeline together: parse a
// document, extract units, schedule them against a backend, reassemble,
// and commit the output file. It is used both as the job queue executor
// and for one-shot CLI translation.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/transtools/doctrans/internal/backend"
	"github.com/transtools/doctrans/internal/batch"
	"github.com/transtools/doctrans/internal/config"
	"github.com/transtools/doctrans/internal/document"
	"github.com/transtools/doctrans/internal/extract"
	"github.com/transtools/doctrans/internal/formats"
	"github.com/transtools/doctrans/internal/glossary"
	"github.com/transtools/doctrans/internal/jobs"
	"github.com/transtools/doctrans/internal/reassemble"
	"github.com/transtools/doctrans/internal/scheduler"
	"github.com/transtools/doctrans/pkg/log"
)

// Pipeline runs document translations end to end.
type Pipeline struct {
	cfg      *config.Config
	registry *formats.Registry
	store    scheduler.CheckpointStore

	// Translator overrides per-job backend construction when set; used by
	// the CLI (one backend for the process) and tests.
	Translator backend.Translator
}

func NewPipeline(cfg *config.Config, registry *formats.Registry, store scheduler.CheckpointStore) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		registry: registry,
		store:    store,
	}
}

// Executor adapts the pipeline to the job queue, feeding unit progress
// back into the job row.
func (p *Pipeline) Executor(queue *jobs.Queue) jobs.Executor {
	return func(ctx context.Context, job *jobs.Job) error {
		return p.Translate(ctx, job.ID, job.Payload, func(progress scheduler.Progress) {
			queue.UpdateProgress(job.ID, jobs.Progress{
				Total:   progress.Total,
				Success: progress.Success,
				Skipped: progress.Skipped,
				Failed:  progress.Failed,
				Pending: progress.Pending,
			})
		})
	}
}

// Translate runs one document through the full pipeline. A cancelled
// context aborts between batches and leaves the checkpoint in place, so
// the same job ID resumes where it stopped.
func (p *Pipeline) Translate(ctx context.Context, jobID string, payload jobs.JobPayload, onProgress func(scheduler.Progress)) error {
	started := time.Now()

	format, err := p.registry.ForPath(payload.InputPath)
	if err != nil {
		return err
	}

	in, err := os.Open(payload.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	tree, err := format.Parse(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", payload.InputPath, err)
	}
	tree.Source = payload.InputPath

	extractor := extract.New(extract.Options{
		MinLength:   p.cfg.Translate.MinUnitLength,
		WithContext: true,
	})
	units, err := extractor.Extract(tree)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		log.Info("Job %s: nothing to translate in %s", jobID, payload.InputPath)
		return p.commit(tree, format, payload)
	}

	sourceLang := payload.SourceLang
	if sourceLang == "" {
		sourceLang = p.cfg.Translate.SourceLang
	}
	if sourceLang == "auto" {
		if detected := extract.DetectLanguage(units); !detected.IsRoot() {
			sourceLang = detected.String()
			log.Info("Job %s: detected source language %s", jobID, sourceLang)
		}
	}
	targetLang := payload.TargetLang
	if targetLang == "" {
		targetLang = p.cfg.Translate.TargetLang
	}

	params := scheduler.Params{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		OnProgress: onProgress,
	}
	if path := firstNonEmpty(payload.GlossaryPath, p.cfg.Translate.GlossaryPath); path != "" {
		g, err := glossary.Load(path)
		if err != nil {
			return err
		}
		params.Glossary = g
		log.Info("Job %s: loaded %d glossary terms", jobID, g.Len())
	}

	translator := p.Translator
	if translator == nil {
		translator, err = p.buildTranslator(payload.Backend)
		if err != nil {
			return err
		}
	}

	engine := scheduler.New(translator, p.store, batch.New(p.cfg.Translate.BatchTokenBudget), scheduler.Options{
		Workers:     p.cfg.Translate.WorkerCount,
		RetryBudget: p.cfg.Translate.RetryBudget,
	})
	results, err := engine.Run(ctx, jobID, units, params)
	if err != nil {
		return err
	}

	translated, err := reassemble.Apply(tree, units, results, reassemble.Options{
		Bilingual: payload.Bilingual,
	})
	if err != nil {
		return err
	}

	if err := p.commit(translated, format, payload); err != nil {
		return err
	}
	log.Info("Job %s: translated %d units from %s in %s", jobID, len(units), payload.InputPath, time.Since(started).Round(time.Millisecond))
	return nil
}

// commit writes the tree to the job's output path, deriving one from the
// input path when none was given.
func (p *Pipeline) commit(tree *document.Tree, format document.Format, payload jobs.JobPayload) error {
	outPath := payload.OutputPath
	if outPath == "" {
		target := firstNonEmpty(payload.TargetLang, p.cfg.Translate.TargetLang)
		outPath = OutputPath(payload.InputPath, target)
	}
	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := format.Commit(tree, out); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return out.Close()
}

func (p *Pipeline) buildTranslator(kind string) (backend.Translator, error) {
	if kind == "" {
		kind = p.cfg.Backend.Kind
	}
	switch kind {
	case "openai":
		return backend.NewOpenAI(backend.OpenAIConfig{
			BaseURL:     p.cfg.Backend.LLMAPIURL,
			APIKey:      p.cfg.Backend.LLMAPIKey,
			Model:       p.cfg.Backend.LLMModel,
			MaxTokens:   p.cfg.Backend.LLMMaxTokens,
			Temperature: p.cfg.Backend.LLMTemperature,
			Timeout:     time.Duration(p.cfg.Backend.LLMTimeout) * time.Second,
		})
	case "local":
		return backend.NewLocal(backend.LocalConfig{
			BaseURL: p.cfg.Backend.LocalAPIURL,
			Model:   p.cfg.Backend.LocalModel,
		}), nil
	case "google":
		return backend.NewGoogle(backend.GoogleConfig{
			CredentialsFile: p.cfg.Backend.GoogleCredentialsFile,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", kind)
	}
}

// OutputPath derives the destination for a translated document:
// "report.txt" translated to fr becomes "report.fr.txt".
func OutputPath(inputPath, targetLang string) string {
	ext := filepath.Ext(inputPath)
	base := strings.TrimSuffix(inputPath, ext)
	return fmt.Sprintf("%s.%s%s", base, targetLang, ext)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
