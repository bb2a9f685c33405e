// Package coordfile reads and writes the intersections file: one
// "<lat>, <lon>" coordinate per line.
package coordfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/walkability-cli/internal/model"
)

// Write encodes points to w, one per line, preserving order and duplicates.
// Numbers use the shortest form that round-trips, so whole degrees are
// written without a fraction ("40, -75", not "40.0, -75.0").
func Write(w io.Writer, points []model.LatLng) error {
	bw := bufio.NewWriter(w)
	for _, p := range points {
		if _, err := bw.WriteString(p.String() + "\n"); err != nil {
			return eris.Wrap(err, "coordfile: write")
		}
	}
	return eris.Wrap(bw.Flush(), "coordfile: flush")
}

// WriteFile writes points to path, creating parent directories.
func WriteFile(path string, points []model.LatLng) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "coordfile: create directory %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "coordfile: create %s", path)
	}
	if err := Write(f, points); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "coordfile: close %s", path)
}

// Read decodes coordinates from r. Surrounding whitespace and blank lines
// are ignored.
func Read(r io.Reader) ([]model.LatLng, error) {
	var out []model.LatLng
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		p, err := ParseLine(text)
		if err != nil {
			return nil, eris.Wrapf(err, "coordfile: line %d", line)
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "coordfile: read")
	}
	return out, nil
}

// ReadFile reads the coordinates stored at path.
func ReadFile(path string) ([]model.LatLng, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "coordfile: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

// ParseLine parses a single "<lat>, <lon>" coordinate.
func ParseLine(s string) (model.LatLng, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return model.LatLng{}, eris.Errorf("coordfile: %q is not \"<lat>, <lon>\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return model.LatLng{}, eris.Wrapf(err, "coordfile: latitude in %q", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return model.LatLng{}, eris.Wrapf(err, "coordfile: longitude in %q", s)
	}
	p := model.LatLng{Lat: lat, Lon: lon}
	if !p.Valid() {
		return model.LatLng{}, eris.Errorf("coordfile: %q is out of range", s)
	}
	return p, nil
}
