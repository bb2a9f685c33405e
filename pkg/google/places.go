package google

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
)

// DefaultNearbyRadius is the search radius in meters used when none is given.
const DefaultNearbyRadius = 400

const (
	nearbyFieldMask  = "places.id,places.displayName,places.location"
	detailsFieldMask = "id,displayName,location,rating,reviews"
)

// NearbyRequest is a Places Nearby Search (New) request.
type NearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes,omitempty"`
	MaxResultCount      int                 `json:"maxResultCount,omitempty"`
	LocationRestriction LocationRestriction `json:"locationRestriction"`
}

// LocationRestriction bounds a nearby search.
type LocationRestriction struct {
	Circle Circle `json:"circle"`
}

// Circle is a center point and radius in meters.
type Circle struct {
	Center LatLng  `json:"center"`
	Radius float64 `json:"radius"`
}

// NewNearbyRequest builds a circular search around (lat, lng). A
// non-positive radius uses DefaultNearbyRadius.
func NewNearbyRequest(lat, lng, radius float64) NearbyRequest {
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	return NearbyRequest{
		LocationRestriction: LocationRestriction{
			Circle: Circle{Center: LatLng{Latitude: lat, Longitude: lng}, Radius: radius},
		},
	}
}

// NearbyResponse is the response from Nearby Search.
type NearbyResponse struct {
	Places []Place `json:"places"`
}

// Place is a place returned by a search.
type Place struct {
	ID          string      `json:"id"`
	DisplayName DisplayName `json:"displayName"`
	Location    *LatLng     `json:"location,omitempty"`
}

// PlaceDetails is the response from Place Details.
type PlaceDetails struct {
	ID          string      `json:"id"`
	DisplayName DisplayName `json:"displayName"`
	Location    *LatLng     `json:"location,omitempty"`
	Rating      float64     `json:"rating"`
	Reviews     []Review    `json:"reviews"`
}

// Review is one user review on a place.
type Review struct {
	Rating       int        `json:"rating"`
	Text         *LocalText `json:"text,omitempty"`
	OriginalText *LocalText `json:"originalText,omitempty"`
}

// LocalText is localized text with its language.
type LocalText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// Body returns the review text, falling back to the original language.
func (r Review) Body() string {
	if r.Text != nil && r.Text.Text != "" {
		return r.Text.Text
	}
	if r.OriginalText != nil {
		return r.OriginalText.Text
	}
	return ""
}

func (c *httpClient) SearchNearby(ctx context.Context, req NearbyRequest) (*NearbyResponse, error) {
	var result NearbyResponse
	if err := c.doPlaces(ctx, http.MethodPost, "/places:searchNearby", nearbyFieldMask, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error) {
	if placeID == "" {
		return nil, eris.New("google: empty place id")
	}
	var result PlaceDetails
	if err := c.doPlaces(ctx, http.MethodGet, "/places/"+url.PathEscape(placeID), detailsFieldMask, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
