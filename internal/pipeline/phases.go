package pipeline

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/coordfile"
	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/internal/places"
	"github.com/sells-group/walkability-cli/internal/scorer"
	"github.com/sells-group/walkability-cli/internal/streetview"
)

func (p *Pipeline) extractPhase(ctx context.Context, st *runState) (*model.PhaseResult, error) {
	area := st.run.Area
	res, err := intersect.ExtractFiles(ctx, area.RoadsPath, area.RegionPath, p.cfg.Extract)
	if err != nil {
		return nil, err
	}

	region, err := intersect.NewRegion(res.Region)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: region")
	}
	st.region = region
	st.points = res.Points
	st.result.Intersections = len(res.Points)

	if err := p.store.SetRunRegion(ctx, st.run.ID, res.Region); err != nil {
		return nil, eris.Wrap(err, "pipeline: save region")
	}
	if _, err := p.store.SaveIntersections(ctx, st.run.ID, res.Points); err != nil {
		return nil, eris.Wrap(err, "pipeline: save intersections")
	}

	path := filepath.Join(st.dir, IntersectionsFile)
	if err := coordfile.WriteFile(path, res.Points); err != nil {
		return nil, err
	}

	return &model.PhaseResult{
		Metadata: map[string]any{
			"roads":         res.Roads,
			"candidates":    res.Candidates,
			"pairs":         res.Pairs,
			"intersections": len(res.Points),
			"file":          path,
		},
	}, nil
}

func (p *Pipeline) placesPhase(ctx context.Context, st *runState) ([]model.PlaceDetails, *model.PhaseResult, error) {
	f := places.NewFetcher(p.google, p.cfg.Places,
		places.WithCache(p.store),
		places.WithTally(st.tally),
	)
	found, details, err := f.Fetch(ctx, st.points, st.region)
	if err != nil {
		return nil, nil, err
	}
	st.result.Places = len(found)

	idsPath := filepath.Join(st.dir, PlaceIDsFile)
	if err := places.WriteIDs(idsPath, found); err != nil {
		return nil, nil, err
	}

	return details, &model.PhaseResult{
		Metadata: map[string]any{
			"places":       len(found),
			"with_reviews": len(details),
			"file":         idsPath,
		},
	}, nil
}

func (p *Pipeline) sentimentPhase(ctx context.Context, st *runState, details []model.PlaceDetails) (*model.PhaseResult, error) {
	s := scorer.New(p.anthropic, p.cfg.Scorer, st.tally)
	scores, err := s.Sentiment(ctx, details)
	if err != nil {
		return nil, err
	}
	st.result.SentimentScores = scores

	path := filepath.Join(st.dir, scorer.SentimentResultsFile)
	if err := scorer.WriteSentimentResults(path, scores); err != nil {
		return nil, err
	}

	meta := map[string]any{"scored": len(scores), "file": path}
	if len(scores) == 0 {
		zap.L().Warn("pipeline: no places could be scored", zap.String("run_id", st.run.ID))
		return &model.PhaseResult{Metadata: meta}, nil
	}

	summary, err := scorer.FiveNumber(scorer.Values(scores))
	if err != nil {
		return nil, err
	}
	st.result.Summary = summary
	meta["median"] = summary.Median
	return &model.PhaseResult{Metadata: meta}, nil
}

func (p *Pipeline) streetViewPhase(ctx context.Context, st *runState) ([]string, *model.PhaseResult, error) {
	opts := p.cfg.StreetView
	opts.OutputDir = filepath.Join(st.dir, ImagesDir)

	images, err := streetview.NewFetcher(p.google, opts, st.tally).Fetch(ctx, st.points)
	if err != nil {
		return nil, nil, err
	}
	st.result.Images = len(images)

	return images, &model.PhaseResult{
		Metadata: map[string]any{
			"images": len(images),
			"dir":    opts.OutputDir,
		},
	}, nil
}

func (p *Pipeline) walkabilityPhase(ctx context.Context, st *runState, images []string) (*model.PhaseResult, error) {
	report, err := scorer.New(p.anthropic, p.cfg.Scorer, st.tally).Walkability(ctx, images)
	if err != nil {
		return nil, err
	}
	st.result.Walkability = report

	path := filepath.Join(st.dir, ReportFile)
	if err := scorer.WriteReport(path, report); err != nil {
		return nil, err
	}
	return &model.PhaseResult{
		Metadata: map[string]any{
			"score": report.Score,
			"file":  path,
		},
	}, nil
}
