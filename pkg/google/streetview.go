package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
)

// StreetViewRequest describes one Street View Static image.
type StreetViewRequest struct {
	Lat, Lng float64
	Heading  int
	Width    int
	Height   int
	Pitch    int
	FOV      int
	// Source is "default" or "outdoor".
	Source string
}

// NewStreetViewRequest returns a request with the standard analysis view:
// 1080x1080, pitch 0, fov 90, default source.
func NewStreetViewRequest(lat, lng float64, heading int) StreetViewRequest {
	return StreetViewRequest{
		Lat:     lat,
		Lng:     lng,
		Heading: heading,
		Width:   1080,
		Height:  1080,
		FOV:     90,
		Source:  "default",
	}
}

func (r StreetViewRequest) location() string {
	return strconv.FormatFloat(r.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(r.Lng, 'f', -1, 64)
}

func (r StreetViewRequest) query() url.Values {
	q := url.Values{}
	q.Set("location", r.location())
	q.Set("size", fmt.Sprintf("%dx%d", r.Width, r.Height))
	q.Set("heading", strconv.Itoa(r.Heading))
	q.Set("pitch", strconv.Itoa(r.Pitch))
	q.Set("fov", strconv.Itoa(r.FOV))
	if r.Source != "" {
		q.Set("source", r.Source)
	}
	return q
}

// StreetViewMetadata reports whether imagery exists near a location.
type StreetViewMetadata struct {
	Status   string `json:"status"`
	PanoID   string `json:"pano_id"`
	Date     string `json:"date"`
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location,omitempty"`
}

// Available reports whether a panorama was found.
func (m *StreetViewMetadata) Available() bool {
	return m != nil && m.Status == "OK"
}

func (c *httpClient) StreetViewImage(ctx context.Context, req StreetViewRequest) ([]byte, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, eris.Errorf("google: invalid street view size %dx%d", req.Width, req.Height)
	}
	data, err := c.doMaps(ctx, "/streetview", req.query())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, eris.New("google: empty street view image")
	}
	return data, nil
}

func (c *httpClient) StreetViewMetadata(ctx context.Context, req StreetViewRequest) (*StreetViewMetadata, error) {
	q := url.Values{}
	q.Set("location", req.location())
	if req.Source != "" {
		q.Set("source", req.Source)
	}
	data, err := c.doMaps(ctx, "/streetview/metadata", q)
	if err != nil {
		return nil, err
	}
	var meta StreetViewMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal street view metadata")
	}
	return &meta, nil
}
