package model

import "strconv"

// LatLng is a geographic coordinate in EPSG:4326, latitude first.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the coordinate as "<lat>, <lon>" with the shortest
// representation that round-trips.
func (p LatLng) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// Query formats the coordinate as "<lat>,<lon>" for use in URL query strings.
func (p LatLng) Query() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// Valid reports whether the coordinate lies within geographic bounds.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// StudyArea identifies the inputs of one analysis.
type StudyArea struct {
	Name       string `json:"name"`
	RoadsPath  string `json:"roads_path"`
	RegionPath string `json:"region_path"`
}
