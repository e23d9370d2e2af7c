// Package garmin parses exported Garmin Connect activity documents
// into dive traces. It consumes the JSON produced by the connect API's
// activity-details and activity-splits endpoints (saved to disk by
// whatever sync tool the user runs); it never talks to Garmin itself.
package garmin

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osamu-dazaai/garmin-freediving-coach/internal/dive"
)

// ActivityExport is one exported apnea activity: the lap summaries
// (one lap per dive) plus the 1Hz time-series metrics.
type ActivityExport struct {
	ActivityID string `json:"activityId"`

	Splits struct {
		LapDTOs []LapSummary `json:"lapDTOs"`
	} `json:"splits"`

	Details struct {
		MetricDescriptors     []metricDescriptor `json:"metricDescriptors"`
		ActivityDetailMetrics []detailMetric     `json:"activityDetailMetrics"`
	} `json:"details"`
}

// LapSummary is Garmin's per-dive lap record.
type LapSummary struct {
	StartTimeGMT       string   `json:"startTimeGMT"`
	MaxDepth           float64  `json:"maxDepth"`
	AverageDepth       float64  `json:"averageDepth"`
	Duration           float64  `json:"duration"`
	BottomTime         float64  `json:"bottomTime"`
	SurfaceInterval    float64  `json:"surfaceInterval"`
	AverageHR          *float64 `json:"averageHR"`
	MaxHR              *float64 `json:"maxHR"`
	AverageTemperature *float64 `json:"averageTemperature"`
}

type metricDescriptor struct {
	MetricsIndex int    `json:"metricsIndex"`
	Key          string `json:"key"`
}

// detailMetric is one row of the metrics matrix. Entries are nullable:
// the watch drops HR (and occasionally depth) for individual seconds.
type detailMetric struct {
	Metrics []*float64 `json:"metrics"`
}

// ParsedDive is one dive cut out of an activity: the 1Hz trace plus
// the lap summary it came from.
type ParsedDive struct {
	Number    int
	StartedAt time.Time
	Trace     dive.DiveTrace
	Lap       LapSummary
}

// LoadActivityFile reads an exported activity document from disk.
func LoadActivityFile(path string) (*ActivityExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read activity export: %w", err)
	}
	var export ActivityExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("parse activity export %s: %w", path, err)
	}
	return &export, nil
}

// SplitDives cuts the activity's time series into per-dive traces
// using the lap durations as boundaries. Time offsets are rebased to
// each dive's start; each trace gets a fresh dive ID. Samples with no
// depth reading are dropped, samples with no HR keep NaN.
func SplitDives(export *ActivityExport) ([]ParsedDive, error) {
	samples, err := extractSamples(export)
	if err != nil {
		return nil, err
	}
	laps := export.Splits.LapDTOs
	if len(laps) == 0 {
		return nil, fmt.Errorf("activity %s has no laps", export.ActivityID)
	}

	var out []ParsedDive
	cumulative := 0.0
	for i, lap := range laps {
		end := cumulative + lap.Duration

		var diveSamples []dive.Sample
		for _, s := range samples {
			if s.TimeOffset >= cumulative && s.TimeOffset < end {
				s.TimeOffset -= cumulative
				diveSamples = append(diveSamples, s)
			}
		}

		startedAt, err := parseLapStart(lap.StartTimeGMT)
		if err != nil {
			return nil, fmt.Errorf("dive %d: %w", i+1, err)
		}

		out = append(out, ParsedDive{
			Number:    i + 1,
			StartedAt: startedAt,
			Trace:     dive.DiveTrace{DiveID: uuid.New(), Samples: diveSamples},
			Lap:       lap,
		})
		cumulative = end
	}
	return out, nil
}

// extractSamples flattens the metrics matrix into 1Hz samples using
// the descriptor table to locate the depth and HR columns.
func extractSamples(export *ActivityExport) ([]dive.Sample, error) {
	depthIdx, hrIdx := -1, -1
	for _, d := range export.Details.MetricDescriptors {
		key := strings.ToLower(d.Key)
		switch {
		case strings.Contains(key, "depth") && strings.Contains(key, "direct"):
			depthIdx = d.MetricsIndex
		case strings.Contains(key, "heart") && strings.Contains(key, "direct"):
			hrIdx = d.MetricsIndex
		}
	}
	if depthIdx < 0 {
		return nil, fmt.Errorf("activity %s carries no depth channel", export.ActivityID)
	}

	var samples []dive.Sample
	for i, row := range export.Details.ActivityDetailMetrics {
		// Every row consumes its second of the fixed 1Hz cadence even
		// when the depth reading is missing; otherwise a depth gap
		// would shift all later samples out of their lap windows.
		if depthIdx >= len(row.Metrics) || row.Metrics[depthIdx] == nil {
			continue
		}
		hr := math.NaN()
		if hrIdx >= 0 && hrIdx < len(row.Metrics) && row.Metrics[hrIdx] != nil {
			hr = *row.Metrics[hrIdx]
		}
		samples = append(samples, dive.Sample{
			TimeOffset: float64(i),
			Depth:      *row.Metrics[depthIdx],
			HeartRate:  hr,
		})
	}
	return samples, nil
}

// parseLapStart parses Garmin's lap timestamp ("2026-02-24T04:37:44.0").
func parseLapStart(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	trimmed := strings.TrimSuffix(s, ".0")
	t, err := time.Parse("2006-01-02T15:04:05", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad lap start time %q: %w", s, err)
	}
	return t.UTC(), nil
}
