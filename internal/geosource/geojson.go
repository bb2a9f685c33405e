package geosource

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/walkability-cli/internal/crs"
)

// geojsonHeader holds the members needed to dispatch a GeoJSON document.
type geojsonHeader struct {
	Type string `json:"type"`
	CRS  *struct {
		Type       string `json:"type"`
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

func loadGeoJSON(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geosource: read %s", path)
	}
	c, err := ParseGeoJSON(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geosource: %s", path)
	}
	c.Path = path
	return c, nil
}

// ParseGeoJSON decodes a FeatureCollection, Feature or bare geometry. RFC 7946
// documents are EPSG:4326; a legacy named "crs" member overrides that.
func ParseGeoJSON(data []byte) (*Collection, error) {
	var hdr geojsonHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		return nil, eris.Wrap(err, "geosource: decode geojson")
	}

	c := &Collection{CRS: crs.WGS84()}
	if hdr.CRS != nil && hdr.CRS.Properties.Name != "" {
		parsed, err := crs.Parse(hdr.CRS.Properties.Name)
		if err != nil {
			return nil, eris.Wrap(err, "geosource: geojson crs member")
		}
		c.CRS = parsed
	}

	switch hdr.Type {
	case "FeatureCollection":
		var fc geojson.FeatureCollection
		if err := json.Unmarshal(data, &fc); err != nil {
			return nil, eris.Wrap(err, "geosource: decode feature collection")
		}
		for _, f := range fc.Features {
			c.Features = append(c.Features, Feature{Geometry: f.Geometry, Properties: f.Properties})
		}
	case "Feature":
		var f geojson.Feature
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "geosource: decode feature")
		}
		c.Features = append(c.Features, Feature{Geometry: f.Geometry, Properties: f.Properties})
	case "":
		return nil, eris.New("geosource: geojson document has no type")
	default:
		var g geom.T
		if err := geojson.Unmarshal(data, &g); err != nil {
			return nil, eris.Wrap(err, "geosource: decode geometry")
		}
		c.Features = append(c.Features, Feature{Geometry: g})
	}
	return c, nil
}
