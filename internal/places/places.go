// Package places finds the points of interest around intersections and
// retrieves their reviews.
package places

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/intersect"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/pkg/google"
)

// Cache stores place details between runs. store.Store satisfies it.
type Cache interface {
	GetCachedPlace(ctx context.Context, placeID string) (*model.PlaceCache, error)
	SetCachedPlaces(ctx context.Context, details []model.PlaceDetails, ttl time.Duration) error
}

// Options configures a Fetcher.
type Options struct {
	Radius          float64       `yaml:"radius" mapstructure:"radius"` // meters
	MaxResults      int           `yaml:"max_results" mapstructure:"max_results"`
	IncludedTypes   []string      `yaml:"included_types" mapstructure:"included_types"`
	CacheTTL        time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	IncludeBoundary bool          `yaml:"include_boundary" mapstructure:"include_boundary"`
}

// Fetcher runs nearby searches and place detail lookups serially.
type Fetcher struct {
	client google.Client
	opts   Options
	cache  Cache
	tally  *cost.Tally
}

// Option configures optional Fetcher collaborators.
type Option func(*Fetcher)

// WithCache serves place details from c and writes fresh lookups back to it.
func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithTally records every Google request on t.
func WithTally(t *cost.Tally) Option {
	return func(f *Fetcher) { f.tally = t }
}

// NewFetcher returns a Fetcher using client.
func NewFetcher(client google.Client, opts Options, fopts ...Option) *Fetcher {
	if opts.Radius <= 0 {
		opts.Radius = google.DefaultNearbyRadius
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * 24 * time.Hour
	}
	f := &Fetcher{client: client, opts: opts}
	for _, o := range fopts {
		o(f)
	}
	return f
}

// Nearby searches around each coordinate in order and returns the unique
// places, in first-seen order, that lie inside region. A nil region keeps
// every place. Failed searches are logged and skipped.
func (f *Fetcher) Nearby(ctx context.Context, coords []model.LatLng, region *intersect.Region) ([]model.Place, error) {
	log := zap.L().With(zap.String("component", "places"))

	seen := make(map[string]bool)
	var out []model.Place
	for i, c := range coords {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "places: nearby search cancelled")
		}

		req := google.NewNearbyRequest(c.Lat, c.Lon, f.opts.Radius)
		req.IncludedTypes = f.opts.IncludedTypes
		if f.opts.MaxResults > 0 {
			req.MaxResultCount = f.opts.MaxResults
		}

		resp, err := f.client.SearchNearby(ctx, req)
		f.tally.AddGoogle(cost.SKUNearbySearch, 1)
		if err != nil {
			log.Warn("places: nearby search failed",
				zap.Int("index", i),
				zap.String("location", c.String()),
				zap.Error(err),
			)
			continue
		}

		for _, p := range resp.Places {
			if p.ID == "" || seen[p.ID] || p.Location == nil {
				continue
			}
			loc := model.LatLng{Lat: p.Location.Latitude, Lon: p.Location.Longitude}
			if region != nil && !region.Contains(intersect.Point{X: loc.Lon, Y: loc.Lat}, f.opts.IncludeBoundary) {
				continue
			}
			seen[p.ID] = true
			out = append(out, model.Place{ID: p.ID, Name: p.DisplayName.Text, Location: loc})
		}
	}

	log.Info("places: nearby search complete",
		zap.Int("coordinates", len(coords)),
		zap.Int("unique_places", len(out)),
	)
	return out, nil
}

// Details returns the rating and reviews of each place, in input order.
// Places without reviews and failed lookups are logged and left out.
func (f *Fetcher) Details(ctx context.Context, places []model.Place) ([]model.PlaceDetails, error) {
	log := zap.L().With(zap.String("component", "places"))

	var (
		out     []model.PlaceDetails
		fetched []model.PlaceDetails
		hits    int
	)
	defer func() {
		if f.cache == nil || len(fetched) == 0 {
			return
		}
		if err := f.cache.SetCachedPlaces(context.WithoutCancel(ctx), fetched, f.opts.CacheTTL); err != nil {
			log.Warn("places: cache write failed", zap.Int("places", len(fetched)), zap.Error(err))
		}
	}()

	for _, p := range places {
		if err := ctx.Err(); err != nil {
			return out, eris.Wrap(err, "places: details cancelled")
		}

		d, cached := f.cached(ctx, p.ID)
		if cached {
			hits++
		} else {
			resp, err := f.client.PlaceDetails(ctx, p.ID)
			f.tally.AddGoogle(cost.SKUPlaceDetails, 1)
			if err != nil {
				log.Warn("places: details failed", zap.String("place_id", p.ID), zap.Error(err))
				continue
			}
			d = toDetails(p, resp)
			fetched = append(fetched, d)
		}

		if len(d.ReviewTexts()) == 0 {
			log.Info("places: place has no reviews", zap.String("place_id", p.ID))
			continue
		}
		out = append(out, d)
	}

	log.Info("places: details complete",
		zap.Int("places", len(places)),
		zap.Int("with_reviews", len(out)),
		zap.Int("cache_hits", hits),
	)
	return out, nil
}

// Fetch runs Nearby then Details.
func (f *Fetcher) Fetch(ctx context.Context, coords []model.LatLng, region *intersect.Region) ([]model.Place, []model.PlaceDetails, error) {
	found, err := f.Nearby(ctx, coords, region)
	if err != nil {
		return nil, nil, err
	}
	details, err := f.Details(ctx, found)
	if err != nil {
		return found, nil, err
	}
	return found, details, nil
}

func (f *Fetcher) cached(ctx context.Context, placeID string) (model.PlaceDetails, bool) {
	if f.cache == nil {
		return model.PlaceDetails{}, false
	}
	pc, err := f.cache.GetCachedPlace(ctx, placeID)
	if err != nil {
		zap.L().Debug("places: cache read failed", zap.String("place_id", placeID), zap.Error(err))
		return model.PlaceDetails{}, false
	}
	if pc == nil {
		return model.PlaceDetails{}, false
	}
	return pc.Details, true
}

func toDetails(p model.Place, resp *google.PlaceDetails) model.PlaceDetails {
	d := model.PlaceDetails{Place: p, Rating: resp.Rating}
	if d.Place.Name == "" {
		d.Place.Name = resp.DisplayName.Text
	}
	for _, r := range resp.Reviews {
		d.Reviews = append(d.Reviews, model.Review{Rating: r.Rating, Text: r.Body()})
	}
	return d
}
