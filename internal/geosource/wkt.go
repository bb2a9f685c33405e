package geosource

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// loadWKT reads one WKT geometry per non-blank line. Lines starting with '#'
// are comments. WKT carries no CRS, so LoadOptions.DefaultCRS applies.
func loadWKT(path string) (*Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geosource: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	c := &Collection{Path: path}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		g, err := wkt.Unmarshal(text)
		if err != nil {
			return nil, eris.Wrapf(err, "geosource: %s line %d", path, line)
		}
		c.Features = append(c.Features, Feature{Geometry: g})
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "geosource: read %s", path)
	}
	return c, nil
}
