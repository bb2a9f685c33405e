package model

// Place is a point of interest returned by a nearby search.
type Place struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location LatLng `json:"location"`
}

// Review is a single user review of a place.
type Review struct {
	Rating int    `json:"rating"`
	Text   string `json:"text"`
}

// PlaceDetails holds the rating and reviews for one place.
type PlaceDetails struct {
	Place   Place    `json:"place"`
	Rating  float64  `json:"rating"`
	Reviews []Review `json:"reviews"`
}

// ReviewTexts returns the non-empty review bodies in order.
func (d *PlaceDetails) ReviewTexts() []string {
	out := make([]string, 0, len(d.Reviews))
	for _, r := range d.Reviews {
		if r.Text != "" {
			out = append(out, r.Text)
		}
	}
	return out
}

// SentimentScore is the 0-100 sentiment score assigned to one place.
type SentimentScore struct {
	PlaceID string `json:"place_id"`
	Score   int    `json:"score"`
}

// WalkabilityReport is the parsed walkability assessment of an area.
type WalkabilityReport struct {
	Score        int      `json:"score" yaml:"score"`
	Explanations []string `json:"explanations" yaml:"explanations"`
}

// FiveNumberSummary describes the distribution of a set of scores.
type FiveNumberSummary struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}
