// Package scorer asks an LLM to rate places by their reviews and areas by
// their street-level imagery, and summarizes the resulting scores.
package scorer

import (
	"time"

	"github.com/sells-group/walkability-cli/internal/cost"
	"github.com/sells-group/walkability-cli/pkg/anthropic"
)

// Config configures a Scorer.
type Config struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	// BatchThreshold routes sentiment scoring through the Message Batches
	// API when at least this many places are scored. Zero disables batching.
	BatchThreshold int `yaml:"batch_threshold" mapstructure:"batch_threshold"`
	// Concurrency bounds direct sentiment requests in flight.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// MaxImages caps the images sent in one walkability request.
	MaxImages    int           `yaml:"max_images" mapstructure:"max_images"`
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`
}

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-5-20250929"

// Scorer runs sentiment and walkability scoring against an LLM.
type Scorer struct {
	client anthropic.Client
	cfg    Config
	tally  *cost.Tally
}

// New returns a Scorer. tally may be nil.
func New(client anthropic.Client, cfg Config, tally *cost.Tally) *Scorer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 100
	}
	return &Scorer{client: client, cfg: cfg, tally: tally}
}

func (s *Scorer) pollOptions() []anthropic.PollOption {
	var opts []anthropic.PollOption
	if s.cfg.PollInterval > 0 {
		opts = append(opts, anthropic.WithPollInterval(s.cfg.PollInterval))
	}
	if s.cfg.PollTimeout > 0 {
		opts = append(opts, anthropic.WithPollTimeout(s.cfg.PollTimeout))
	}
	return opts
}
