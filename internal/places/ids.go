package places

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability-cli/internal/model"
)

// WriteIDs writes one place ID per line.
func WriteIDs(path string, places []model.Place) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "places: create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "places: create %s", path)
	}
	w := bufio.NewWriter(f)
	for _, p := range places {
		w.WriteString(p.ID) //nolint:errcheck
		w.WriteByte('\n')   //nolint:errcheck
	}
	if err := w.Flush(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "places: write %s", path)
	}
	return eris.Wrapf(f.Close(), "places: close %s", path)
}

// ReadIDs reads place IDs written by WriteIDs, skipping blank lines.
func ReadIDs(path string) ([]model.Place, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "places: read %s", path)
	}
	var out []model.Place
	for _, line := range strings.Split(string(data), "\n") {
		if id := strings.TrimSpace(line); id != "" {
			out = append(out, model.Place{ID: id})
		}
	}
	return out, nil
}
