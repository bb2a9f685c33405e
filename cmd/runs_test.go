package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/walkability-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Area:      model.StudyArea{Name: "Annex", RegionPath: "annex.shp"},
			Mode:      model.RunModeSentiment,
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Intersections: 42},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Area:      model.StudyArea{RegionPath: "regions/the-beaches-and-east-end-neighborhood.geojson"},
			Mode:      model.RunModeStreetView,
			Status:    model.RunStatusFetching,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "AREA")
	assert.Contains(t, output, "MODE")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "Annex")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "regions/the-beaches-and-eas...")
	assert.Contains(t, output, "streetview")
	assert.Contains(t, output, "fetching")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestRunsStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{Status: model.RunStatusComplete, CreatedAt: now, UpdatedAt: now.Add(10 * time.Second), Result: &model.RunResult{TotalCost: 0.5}},
		{Status: model.RunStatusComplete, CreatedAt: now, UpdatedAt: now.Add(30 * time.Second), Result: &model.RunResult{TotalCost: 0.25}},
		{Status: model.RunStatusFailed, Result: &model.RunResult{ErrorKind: "input_shape"}},
		{Status: model.RunStatusFailed},
		{Status: model.RunStatusScoring},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 1, s.Other)
	assert.Equal(t, 1, s.ByKind["input_shape"])
	assert.Equal(t, 1, s.ByKind["unclassified"])
	assert.InDelta(t, 0.75, s.TotalCost, 1e-9)
	assert.InDelta(t, 20.0, s.AvgDurSecs, 1e-9)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	output := buf.String()
	assert.Contains(t, output, "input_shape:")
	assert.Contains(t, output, "$0.7500")
	assert.Contains(t, output, "20.0s")
	assert.NotContains(t, output, "geometry_load")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}
