// Package pipeline runs one walkability analysis end to end: extraction,
// then either place sentiment or street-level imagery scoring.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/internal/places"
	"github.com/sells-group/walkability-cli/internal/scorer"
	"github.com/sells-group/walkability-cli/internal/store"
	"github.com/sells-group/walkability-cli/internal/streetview"
	"github.com/sells-group/walkability-cli/pkg/anthropic"
	"github.com/sells-group/walkability-cli/pkg/google"
)

// Phase names recorded on every run.
const (
	PhaseExtract     = "1_extract"
	PhasePlaces      = "2_places"
	PhaseSentiment   = "3_sentiment"
	PhaseStreetView  = "2_streetview"
	PhaseWalkability = "3_walkability"
)

// File names written into the run output directory.
const (
	IntersectionsFile = "intersections.txt"
	PlaceIDsFile      = "places.txt"
	ReportFile        = "report.json"
	ImagesDir         = "streetview_images"
)

// Config configures a Pipeline.
type Config struct {
	// OutputDir receives one subdirectory per run.
	OutputDir  string
	Extract    intersect.Options
	Places     places.Options
	StreetView streetview.Options
	Scorer     scorer.Config
}

// Pipeline orchestrates the phases of an analysis run.
type Pipeline struct {
	cfg       Config
	store     store.Store
	google    google.Client
	anthropic anthropic.Client
	costCalc  *cost.Calculator
}

// New creates a Pipeline. calc prices the run; nil uses cost.DefaultRates.
func New(cfg Config, st store.Store, googleClient google.Client, aiClient anthropic.Client, calc *cost.Calculator) *Pipeline {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "runs"
	}
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		google:    googleClient,
		anthropic: aiClient,
		costCalc:  calc,
	}
}

// runState carries values between the phases of one run.
type runState struct {
	run    *model.Run
	dir    string
	tally  *cost.Tally
	result *model.RunResult

	points []model.LatLng
	region *intersect.Region
}

// Run executes every phase for area in the given mode and stores the final
// result. The returned run always carries the result when the run record
// could be created, including on failure.
func (p *Pipeline) Run(ctx context.Context, area model.StudyArea, mode model.RunMode) (*model.Run, error) {
	switch mode {
	case model.RunModeExtract, model.RunModeSentiment, model.RunModeStreetView:
	default:
		return nil, eris.Errorf("pipeline: unknown mode %q", mode)
	}

	log := zap.L().With(zap.String("area", area.Name), zap.String("mode", string(mode)))
	log.Info("pipeline: starting run")

	run, err := p.store.CreateRun(ctx, area, mode)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log = log.With(zap.String("run_id", run.ID))

	st := &runState{
		run:    run,
		dir:    filepath.Join(p.cfg.OutputDir, run.ID),
		tally:  cost.NewTally(p.costCalc),
		result: &model.RunResult{Phases: []model.PhaseResult{}},
	}
	st.result.OutputDir = st.dir

	setStatus := func(status model.RunStatus) {
		if statusErr := p.store.UpdateRunStatus(ctx, run.ID, status); statusErr != nil {
			log.Warn("pipeline: failed to update status", zap.Error(statusErr))
		}
	}

	var phasesMu sync.Mutex
	trackPhase := func(name string, fn func() (*model.PhaseResult, error)) error {
		phase, phaseErr := p.store.CreatePhase(ctx, run.ID, name)
		if phaseErr != nil {
			log.Warn("pipeline: failed to create phase", zap.String("phase", name), zap.Error(phaseErr))
		}

		before := st.tally.Tokens()
		costBefore := st.tally.Total()
		start := time.Now()
		phaseResult, fnErr := fn()
		duration := time.Since(start).Milliseconds()

		if phaseResult == nil {
			phaseResult = &model.PhaseResult{}
		}
		phaseResult.Name = name
		phaseResult.Duration = duration
		after := st.tally.Tokens()
		phaseResult.TokenUsage = model.TokenUsage{
			InputTokens:  after.InputTokens - before.InputTokens,
			OutputTokens: after.OutputTokens - before.OutputTokens,
			Cost:         st.tally.Total() - costBefore,
		}

		if fnErr != nil {
			phaseResult.Status = model.PhaseStatusFailed
			phaseResult.Error = fnErr.Error()
			log.Error("pipeline: phase failed",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			phaseResult.Status = model.PhaseStatusComplete
			log.Info("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", duration),
			)
		}

		if phase != nil {
			// Record the phase even when the run context was cancelled.
			if completeErr := p.store.CompletePhase(context.WithoutCancel(ctx), phase.ID, phaseResult); completeErr != nil {
				log.Warn("pipeline: failed to complete phase", zap.String("phase", name), zap.Error(completeErr))
			}
		}
		phasesMu.Lock()
		st.result.Phases = append(st.result.Phases, *phaseResult)
		phasesMu.Unlock()
		return fnErr
	}

	runErr := p.runPhases(ctx, st, mode, setStatus, trackPhase)

	tokens := st.tally.Tokens()
	st.result.TotalTokens = tokens.InputTokens + tokens.OutputTokens
	st.result.TotalCost = st.tally.Total()
	if runErr != nil {
		st.result.Error = runErr.Error()
		if kind := intersect.KindOf(runErr); kind != "" {
			st.result.ErrorKind = string(kind)
		}
	}

	if err := p.store.UpdateRunResult(context.WithoutCancel(ctx), run.ID, st.result); err != nil {
		log.Error("pipeline: failed to store result", zap.Error(err))
		if runErr == nil {
			runErr = eris.Wrap(err, "pipeline: store result")
		}
	}

	run.Result = st.result
	run.Status = model.RunStatusComplete
	if runErr != nil {
		run.Status = model.RunStatusFailed
		log.Error("pipeline: run failed", zap.Error(runErr))
		return run, runErr
	}

	log.Info("pipeline: run complete",
		zap.Int("intersections", st.result.Intersections),
		zap.Int("places", st.result.Places),
		zap.Float64("cost_usd", st.result.TotalCost),
	)
	return run, nil
}

func (p *Pipeline) runPhases(
	ctx context.Context,
	st *runState,
	mode model.RunMode,
	setStatus func(model.RunStatus),
	trackPhase func(string, func() (*model.PhaseResult, error)) error,
) error {
	setStatus(model.RunStatusExtracting)
	if err := trackPhase(PhaseExtract, func() (*model.PhaseResult, error) {
		return p.extractPhase(ctx, st)
	}); err != nil {
		return err
	}

	switch mode {
	case model.RunModeSentiment:
		setStatus(model.RunStatusFetching)
		var details []model.PlaceDetails
		if err := trackPhase(PhasePlaces, func() (*model.PhaseResult, error) {
			var pr *model.PhaseResult
			var err error
			details, pr, err = p.placesPhase(ctx, st)
			return pr, err
		}); err != nil {
			return err
		}

		setStatus(model.RunStatusScoring)
		return trackPhase(PhaseSentiment, func() (*model.PhaseResult, error) {
			return p.sentimentPhase(ctx, st, details)
		})

	case model.RunModeStreetView:
		setStatus(model.RunStatusFetching)
		var images []string
		if err := trackPhase(PhaseStreetView, func() (*model.PhaseResult, error) {
			var pr *model.PhaseResult
			var err error
			images, pr, err = p.streetViewPhase(ctx, st)
			return pr, err
		}); err != nil {
			return err
		}

		setStatus(model.RunStatusScoring)
		return trackPhase(PhaseWalkability, func() (*model.PhaseResult, error) {
			return p.walkabilityPhase(ctx, st, images)
		})
	}
	return nil
}
