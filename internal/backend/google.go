package backend

import (
	"context"
	"fmt"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Cloud Translation adapter.
type GoogleConfig struct {
	// CredentialsFile is an optional service-account JSON path; application
	// default credentials are used when empty.
	CredentialsFile string
}

// Google translates batches through the Cloud Translation API. Unlike the
// LLM adapters there is no line protocol to validate: the API returns one
// translation per input string.
type Google struct {
	config GoogleConfig
}

func NewGoogle(config GoogleConfig) *Google {
	return &Google{config: config}
}

func (g *Google) Name() string { return "google" }

func (g *Google) Translate(ctx context.Context, req BatchRequest) (map[string]Result, error) {
	target, err := language.Parse(req.TargetLang)
	if err != nil {
		return allFailed(req.Batch), Permanent(fmt.Errorf("invalid target language %q: %w", req.TargetLang, err))
	}

	var clientOpts []option.ClientOption
	if g.config.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(g.config.CredentialsFile))
	}

	client, err := translate.NewClient(ctx, clientOpts...)
	if err != nil {
		return allFailed(req.Batch), Transient(fmt.Errorf("failed to create translate client: %w", err))
	}
	defer client.Close()

	texts := make([]string, len(req.Batch.Units))
	for i, u := range req.Batch.Units {
		texts[i] = u.SourceText
	}

	var opts *translate.Options
	if req.SourceLang != "" && req.SourceLang != "auto" {
		source, err := language.Parse(req.SourceLang)
		if err != nil {
			return allFailed(req.Batch), Permanent(fmt.Errorf("invalid source language %q: %w", req.SourceLang, err))
		}
		opts = &translate.Options{Source: source}
	}

	translations, err := client.Translate(ctx, texts, target, opts)
	if err != nil {
		return allFailed(req.Batch), Transient(fmt.Errorf("translation failed: %w", err))
	}
	if len(translations) != len(texts) {
		return allFailed(req.Batch), Transient(fmt.Errorf("expected %d translations, got %d", len(texts), len(translations)))
	}

	results := make(map[string]Result, len(translations))
	for i, u := range req.Batch.Units {
		results[u.ID] = Result{
			UnitID:         u.ID,
			TranslatedText: translations[i].Text,
			Status:         StatusSuccess,
		}
	}
	return results, nil
}
