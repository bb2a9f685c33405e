package scorer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/walkability-cli/internal/model"
)

// SentimentResultsFile is the default sentiment results file name.
const SentimentResultsFile = "sentiment_analysis_results.txt"

// WriteSentimentResults writes one "Place ID: <id>, Sentiment Score: <n>"
// line per score.
func WriteSentimentResults(path string, scores []model.SentimentScore) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "scorer: create %s", path)
	}
	w := bufio.NewWriter(f)
	for _, s := range scores {
		fmt.Fprintf(w, "Place ID: %s, Sentiment Score: %d\n", s.PlaceID, s.Score)
	}
	if err := w.Flush(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "scorer: write %s", path)
	}
	return eris.Wrapf(f.Close(), "scorer: close %s", path)
}

// WriteReport writes the walkability report as JSON, or YAML when path ends
// in .yaml or .yml.
func WriteReport(path string, report *model.WalkabilityReport) error {
	if err := mkdirFor(path); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(report)
	} else {
		data, err = json.MarshalIndent(report, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return eris.Wrap(err, "scorer: encode report")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "scorer: write %s", path)
}

// ReadReport reads a report written by WriteReport.
func ReadReport(path string) (*model.WalkabilityReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read %s", path)
	}
	var r model.WalkabilityReport
	if isYAML(path) {
		err = yaml.Unmarshal(data, &r)
	} else {
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: decode %s", path)
	}
	return &r, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func mkdirFor(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "scorer: create %s", dir)
}
