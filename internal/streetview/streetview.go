// Package streetview downloads street-level imagery around intersections.
package streetview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/pkg/google"
)

// Headings are the compass directions captured at every location.
var Headings = []int{0, 90, 180, 270}

// Options configures a Fetcher.
type Options struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	Width     int    `yaml:"width" mapstructure:"width"`
	Height    int    `yaml:"height" mapstructure:"height"`
	FOV       int    `yaml:"fov" mapstructure:"fov"`
	Pitch     int    `yaml:"pitch" mapstructure:"pitch"`
	Source    string `yaml:"source" mapstructure:"source"`
	// CheckMetadata skips locations without a panorama before requesting images.
	CheckMetadata bool `yaml:"check_metadata" mapstructure:"check_metadata"`
	// MaxImages stops downloading once this many images are saved. Zero means no limit.
	MaxImages int `yaml:"max_images" mapstructure:"max_images"`
}

// Fetcher saves Street View images for a list of coordinates.
type Fetcher struct {
	client google.Client
	opts   Options
	tally  *cost.Tally
}

// NewFetcher returns a Fetcher. tally may be nil.
func NewFetcher(client google.Client, opts Options, tally *cost.Tally) *Fetcher {
	if opts.OutputDir == "" {
		opts.OutputDir = "streetview_images"
	}
	return &Fetcher{client: client, opts: opts, tally: tally}
}

// Fetch downloads every heading at every coordinate into the output
// directory and returns the saved file paths in request order. Failed
// images are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, coords []model.LatLng) ([]string, error) {
	log := zap.L().With(zap.String("component", "streetview"))

	if err := os.MkdirAll(f.opts.OutputDir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "streetview: create %s", f.opts.OutputDir)
	}

	var saved []string
	for _, c := range coords {
		if err := ctx.Err(); err != nil {
			return saved, eris.Wrap(err, "streetview: cancelled")
		}
		if f.opts.CheckMetadata && !f.available(ctx, c) {
			log.Info("streetview: no imagery", zap.String("location", c.String()))
			continue
		}

		for _, h := range Headings {
			if f.opts.MaxImages > 0 && len(saved) >= f.opts.MaxImages {
				log.Info("streetview: image limit reached", zap.Int("max_images", f.opts.MaxImages))
				return saved, nil
			}

			path, err := f.fetchOne(ctx, c, h)
			if err != nil {
				log.Warn("streetview: image failed",
					zap.String("location", c.String()),
					zap.Int("heading", h),
					zap.Error(err),
				)
				continue
			}
			log.Debug("streetview: saved image", zap.String("path", path))
			saved = append(saved, path)
		}
	}

	log.Info("streetview: fetch complete",
		zap.Int("locations", len(coords)),
		zap.Int("images", len(saved)),
	)
	return saved, nil
}

func (f *Fetcher) request(c model.LatLng, heading int) google.StreetViewRequest {
	req := google.NewStreetViewRequest(c.Lat, c.Lon, heading)
	if f.opts.Width > 0 {
		req.Width = f.opts.Width
	}
	if f.opts.Height > 0 {
		req.Height = f.opts.Height
	}
	if f.opts.FOV > 0 {
		req.FOV = f.opts.FOV
	}
	if f.opts.Source != "" {
		req.Source = f.opts.Source
	}
	req.Pitch = f.opts.Pitch
	return req
}

func (f *Fetcher) available(ctx context.Context, c model.LatLng) bool {
	meta, err := f.client.StreetViewMetadata(ctx, f.request(c, 0))
	f.tally.AddGoogle(cost.SKUStreetViewMetadata, 1)
	if err != nil {
		zap.L().Warn("streetview: metadata failed", zap.String("location", c.String()), zap.Error(err))
		return false
	}
	return meta.Available()
}

func (f *Fetcher) fetchOne(ctx context.Context, c model.LatLng, heading int) (string, error) {
	img, err := f.client.StreetViewImage(ctx, f.request(c, heading))
	f.tally.AddGoogle(cost.SKUStreetView, 1)
	if err != nil {
		return "", err
	}
	path := filepath.Join(f.opts.OutputDir, FileName(c, heading))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", eris.Wrapf(err, "streetview: write %s", path)
	}
	return path, nil
}

// FileName returns "<lat>_<lon>_<heading>.jpg".
func FileName(c model.LatLng, heading int) string {
	return fmt.Sprintf("%s_%s_%d.jpg",
		strconv.FormatFloat(c.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.Lon, 'f', -1, 64),
		heading,
	)
}
