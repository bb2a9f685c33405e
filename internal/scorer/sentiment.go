package scorer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/pkg/anthropic"
)

const sentimentSystem = `You rate places from their customer reviews. Perform a sentiment analysis on the reviews to determine the overall sentiment towards the place. Answer with one integer from 0 to 100, where 100 indicates a highly positive sentiment and total satisfaction and lower scores indicate more negative experiences. Reply with the number only.`

var scorePattern = regexp.MustCompile(`^\s*(-?\d+)\s*(?:/\s*100)?\s*\.?\s*$`)

// ParseScore parses a bare 0-100 integer reply.
func ParseScore(text string) (int, error) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, eris.Errorf("scorer: unparseable score %q", strings.TrimSpace(text))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, eris.Wrapf(err, "scorer: parse score %q", m[1])
	}
	if n < 0 || n > 100 {
		return 0, eris.Errorf("scorer: score %d out of range 0-100", n)
	}
	return n, nil
}

func (s *Scorer) sentimentRequest(d model.PlaceDetails) anthropic.MessageRequest {
	return anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    anthropic.CachedSystem(sentimentSystem, "5m"),
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Here are the reviews: " + strings.Join(d.ReviewTexts(), " "),
		}},
	}
}

// Sentiment scores each place from its reviews. Scores come back in input
// order; places whose request or reply fails are logged and left out.
func (s *Scorer) Sentiment(ctx context.Context, details []model.PlaceDetails) ([]model.SentimentScore, error) {
	if len(details) == 0 {
		return nil, nil
	}
	if s.cfg.BatchThreshold > 0 && len(details) >= s.cfg.BatchThreshold {
		return s.sentimentBatch(ctx, details)
	}
	return s.sentimentDirect(ctx, details)
}

func (s *Scorer) sentimentDirect(ctx context.Context, details []model.PlaceDetails) ([]model.SentimentScore, error) {
	log := zap.L().With(zap.String("component", "scorer"))

	scores := make([]*model.SentimentScore, len(details))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, d := range details {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			resp, err := s.client.CreateMessage(gctx, s.sentimentRequest(d))
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("scorer: sentiment request failed", zap.String("place_id", d.Place.ID), zap.Error(err))
				return nil
			}
			s.tally.AddClaude(s.cfg.Model, false, resp.Usage)

			n, err := ParseScore(resp.Text())
			if err != nil {
				log.Warn("scorer: sentiment reply rejected", zap.String("place_id", d.Place.ID), zap.Error(err))
				return nil
			}
			scores[i] = &model.SentimentScore{PlaceID: d.Place.ID, Score: n}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scorer: sentiment")
	}
	return compact(scores), nil
}

func (s *Scorer) sentimentBatch(ctx context.Context, details []model.PlaceDetails) ([]model.SentimentScore, error) {
	log := zap.L().With(zap.String("component", "scorer"))

	req := anthropic.BatchRequest{Requests: make([]anthropic.BatchRequestItem, len(details))}
	for i, d := range details {
		req.Requests[i] = anthropic.BatchRequestItem{CustomID: customID(i), Params: s.sentimentRequest(d)}
	}

	res, err := anthropic.RunBatch(ctx, s.client, req, s.pollOptions()...)
	if err != nil {
		return nil, eris.Wrap(err, "scorer: sentiment batch")
	}

	scores := make([]*model.SentimentScore, len(details))
	for i, d := range details {
		resp, ok := res.Succeeded[customID(i)]
		if !ok {
			continue
		}
		s.tally.AddClaude(s.cfg.Model, true, resp.Usage)
		n, err := ParseScore(resp.Text())
		if err != nil {
			log.Warn("scorer: sentiment reply rejected", zap.String("place_id", d.Place.ID), zap.Error(err))
			continue
		}
		scores[i] = &model.SentimentScore{PlaceID: d.Place.ID, Score: n}
	}
	log.Info("scorer: sentiment batch complete",
		zap.Int("places", len(details)),
		zap.Int("succeeded", len(res.Succeeded)),
		zap.Int("failed", len(res.Failures)),
	)
	return compact(scores), nil
}

// customID is the batch item ID of the i-th place. Place IDs are not used
// directly because the API restricts custom ID characters.
func customID(i int) string {
	return fmt.Sprintf("place-%d", i)
}

func compact(scores []*model.SentimentScore) []model.SentimentScore {
	out := make([]model.SentimentScore, 0, len(scores))
	for _, s := range scores {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Values returns the bare score values.
func Values(scores []model.SentimentScore) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		out[i] = s.Score
	}
	return out
}
