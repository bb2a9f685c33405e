package scorer

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/walkability-cli/internal/model"
	"github.com/sells-group/walkability-cli/pkg/anthropic"
)

const walkabilitySystem = `You assess urban walkability from street-level photographs of one area. Judge the pedestrian experience of walking around the area, including accessibility for people with disabilities as set out in the Accessible Canada Act. Reply in exactly this format:

Walkability Score: <integer 0-100>
Explanations:
- <one reason per line>`

var (
	walkScorePattern = regexp.MustCompile(`(?i)walkability\s+score\s*:?\s*\**\s*(-?\d+)`)
	explanationsHead = regexp.MustCompile(`(?i)^\s*\**\s*explanations?\s*\**\s*:?\s*\**\s*$`)
	bulletPattern    = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+(.*\S)\s*$`)
)

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ListImages returns the .jpg, .jpeg and .png files of dir in name order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read image dir %s", dir)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// SampleEvenly picks at most n items spread evenly across items, keeping
// their order.
func SampleEvenly[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	out := make([]T, n)
	for i := range n {
		out[i] = items[i*len(items)/n]
	}
	return out
}

// Walkability sends the images in one request and parses the assessment.
func (s *Scorer) Walkability(ctx context.Context, images []string) (*model.WalkabilityReport, error) {
	if len(images) == 0 {
		return nil, eris.New("scorer: no images to score")
	}
	images = SampleEvenly(images, s.cfg.MaxImages)

	msg := anthropic.Message{Role: "user", Content: "Here are street-level photographs of the area."}
	for _, path := range images {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "scorer: read image %s", path)
		}
		msg.Images = append(msg.Images, anthropic.Image{
			MediaType: imageTypes[strings.ToLower(filepath.Ext(path))],
			Data:      data,
		})
	}

	resp, err := s.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     s.cfg.Model,
		MaxTokens: s.cfg.MaxTokens,
		System:    []anthropic.SystemBlock{{Text: walkabilitySystem}},
		Messages:  []anthropic.Message{msg},
	})
	if err != nil {
		return nil, eris.Wrap(err, "scorer: walkability request")
	}
	s.tally.AddClaude(s.cfg.Model, false, resp.Usage)

	report, err := ParseWalkability(resp.Text())
	if err != nil {
		return nil, err
	}
	zap.L().Info("scorer: walkability scored",
		zap.Int("images", len(images)),
		zap.Int("score", report.Score),
		zap.Int("explanations", len(report.Explanations)),
	)
	return report, nil
}

// ParseWalkability extracts "Walkability Score: N" and the bullet lines
// that follow an "Explanations:" heading.
func ParseWalkability(text string) (*model.WalkabilityReport, error) {
	m := walkScorePattern.FindStringSubmatch(text)
	if m == nil {
		return nil, eris.Errorf("scorer: no walkability score in reply %q", truncate(text, 200))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: parse walkability score %q", m[1])
	}
	if n < 0 || n > 100 {
		return nil, eris.Errorf("scorer: walkability score %d out of range 0-100", n)
	}

	report := &model.WalkabilityReport{Score: n, Explanations: []string{}}
	inList := false
	for _, line := range strings.Split(text, "\n") {
		if explanationsHead.MatchString(line) {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		if b := bulletPattern.FindStringSubmatch(line); b != nil {
			report.Explanations = append(report.Explanations, b[1])
			continue
		}
		if strings.TrimSpace(line) != "" && len(report.Explanations) > 0 {
			break
		}
	}
	return report, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
