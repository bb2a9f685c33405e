package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/walkability-cli/internal/resilience"
)

const (
	defaultBaseURL     = "https://places.googleapis.com/v1"
	defaultMapsBaseURL = "https://maps.googleapis.com/maps/api"
)

// Client performs Google Places API (New) and Street View Static API
// operations.
type Client interface {
	SearchNearby(ctx context.Context, req NearbyRequest) (*NearbyResponse, error)
	PlaceDetails(ctx context.Context, placeID string) (*PlaceDetails, error)
	StreetViewImage(ctx context.Context, req StreetViewRequest) ([]byte, error)
	StreetViewMetadata(ctx context.Context, req StreetViewRequest) (*StreetViewMetadata, error)
}

// LatLng is a coordinate in Places API wire format.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default Places API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithMapsBaseURL overrides the default Maps (Street View Static) base URL.
func WithMapsBaseURL(url string) Option {
	return func(c *httpClient) {
		c.mapsBaseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimiter throttles every request through l.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *httpClient) {
		c.limiter = l
	}
}

// WithRetry sets the retry policy for transient failures. The default is
// resilience.DefaultPolicy.
func WithRetry(p resilience.Policy) Option {
	return func(c *httpClient) {
		c.retry = p
	}
}

type httpClient struct {
	apiKey      string
	baseURL     string
	mapsBaseURL string
	http        *http.Client
	limiter     *rate.Limiter
	retry       resilience.Policy
}

// NewClient creates a Google Maps Platform client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		mapsBaseURL: defaultMapsBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.DefaultPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// doPlaces sends a Places API request with key and field mask headers and
// decodes the JSON response into out.
func (c *httpClient) doPlaces(ctx context.Context, method, path, fieldMask string, in, out any) error {
	var payload []byte
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "google: marshal request")
		}
		payload = data
	}

	respBody, err := c.send(ctx, path, func() (*http.Request, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("X-Goog-Api-Key", c.apiKey)
		req.Header.Set("X-Goog-FieldMask", fieldMask)
		return req, nil
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrap(err, "google: unmarshal response")
	}
	return nil
}

// doMaps sends a keyed GET to the Maps base URL and returns the raw body.
func (c *httpClient) doMaps(ctx context.Context, path string, q url.Values) ([]byte, error) {
	q.Set("key", c.apiKey)
	target := c.mapsBaseURL + path + "?" + q.Encode()
	return c.send(ctx, path, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
}

// send issues the request built by newReq, retrying transient failures
// under the client's policy. Each attempt waits on the rate limiter.
func (c *httpClient) send(ctx context.Context, op string, newReq func() (*http.Request, error)) ([]byte, error) {
	p := c.retry
	if p.OnRetry == nil {
		p.OnRetry = resilience.LogRetries("google", op)
	}
	return resilience.DoVal(ctx, p, func(ctx context.Context) ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "google: rate limit wait")
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, eris.Wrap(err, "google: create request")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "google: send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "google: read response")
		}

		if resp.StatusCode != http.StatusOK {
			return nil, eris.Wrap(&resilience.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}, "google")
		}
		return respBody, nil
	})
}
