package main

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/geosource"
	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/pipeline"
	"github.com/sells-group/walkability-cli/internal/store"
	anthropicpkg "github.com/sells-group/walkability-cli/pkg/anthropic"
	"github.com/sells-group/walkability-cli/pkg/google"
)

// initStore opens the configured store and migrates it when
// store.auto_migrate is set.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func newGoogleClient() google.Client {
	opts := []google.Option{
		google.WithHTTPClient(&http.Client{Timeout: cfg.Google.Timeout}),
		google.WithRetry(cfg.Google.Retry),
	}
	if cfg.Google.PlacesURL != "" {
		opts = append(opts, google.WithBaseURL(cfg.Google.PlacesURL))
	}
	if cfg.Google.MapsURL != "" {
		opts = append(opts, google.WithMapsBaseURL(cfg.Google.MapsURL))
	}
	if cfg.Google.RateLimit > 0 {
		burst := max(cfg.Google.Burst, 1)
		opts = append(opts, google.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.Google.RateLimit), burst)))
	}
	return google.NewClient(cfg.Google.Key, opts...)
}

func newAnthropicClient() anthropicpkg.Client {
	return anthropicpkg.NewClient(cfg.Anthropic.Key)
}

func newCalculator() *cost.Calculator {
	return cost.NewCalculator(cfg.Rates())
}

func extractOptions() intersect.Options {
	return intersect.Options{
		IncludeBoundary: cfg.Extract.IncludeBoundary,
		Load:            geosource.LoadOptions{DefaultCRS: cfg.Extract.DefaultCRS},
	}
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		OutputDir:  cfg.Extract.OutputDir,
		Extract:    extractOptions(),
		Places:     cfg.Places,
		StreetView: cfg.StreetView,
		Scorer:     cfg.Scorer,
	}
}

// pipelineEnv holds the store and pipeline used by run and serve.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the configuration for mode, opens the store and
// builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	var googleClient google.Client
	if cfg.Google.Key != "" {
		googleClient = newGoogleClient()
	} else {
		zap.L().Debug("WALKABILITY_GOOGLE_KEY not set, places and street view disabled")
	}
	var aiClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		aiClient = newAnthropicClient()
	}

	p := pipeline.New(pipelineConfig(), st, googleClient, aiClient, newCalculator())
	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
