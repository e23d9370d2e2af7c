package dive

import (
	"encoding/json"
	"fmt"
	"os"
)

// TuningConfig holds optional overrides for segmentation and
// classification thresholds. Fields are pointers so a JSON file can
// override any subset and leave the rest at their defaults.
type TuningConfig struct {
	// Segmentation
	SurfaceThresholdMetres *float64 `json:"surface_threshold_metres,omitempty"`
	BottomDepthFraction    *float64 `json:"bottom_depth_fraction,omitempty"`
	SmoothingWindow        *int     `json:"smoothing_window,omitempty"`

	// Discipline classifier
	FIMIntervalMinSecs   *float64 `json:"fim_interval_min_secs,omitempty"`
	FIMIntervalMaxSecs   *float64 `json:"fim_interval_max_secs,omitempty"`
	FIMIntervalTolerance *float64 `json:"fim_interval_tolerance,omitempty"`
	CWTMaxCV             *float64 `json:"cwt_max_cv,omitempty"`
	CWTRateMin           *float64 `json:"cwt_rate_min,omitempty"`
	CWTRateMax           *float64 `json:"cwt_rate_max,omitempty"`
	CNFMaxCV             *float64 `json:"cnf_max_cv,omitempty"`
	CNFRateMin           *float64 `json:"cnf_rate_min,omitempty"`
	CNFRateMax           *float64 `json:"cnf_rate_max,omitempty"`

	// Lung-volume classifier
	FRCHRDeltaBpm    *float64 `json:"frc_hr_delta_bpm,omitempty"`
	ExhaleHRDeltaBpm *float64 `json:"exhale_hr_delta_bpm,omitempty"`
	HRStableStdDev   *float64 `json:"hr_stable_stddev,omitempty"`
	ConsistentCVMax  *float64 `json:"consistent_cv_max,omitempty"`
	FullSlowFactor   *float64 `json:"full_slow_factor,omitempty"`
	ExhaleFastFactor *float64 `json:"exhale_fast_factor,omitempty"`
	ShortDiveFactor  *float64 `json:"short_dive_factor,omitempty"`
}

// LoadTuningConfig reads overrides from a JSON file. A missing path
// returns an empty config (all defaults).
func LoadTuningConfig(path string) (*TuningConfig, error) {
	if path == "" {
		return &TuningConfig{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &TuningConfig{}, nil
		}
		return nil, fmt.Errorf("read tuning config: %w", err)
	}
	var cfg TuningConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse tuning config %s: %w", path, err)
	}
	return &cfg, nil
}

// Segmenter builds a segmenter with this config's overrides applied.
func (c *TuningConfig) Segmenter() *Segmenter {
	sg := NewSegmenter()
	setF(&sg.SurfaceThreshold, c.SurfaceThresholdMetres)
	setF(&sg.BottomDepthFraction, c.BottomDepthFraction)
	if c.SmoothingWindow != nil && *c.SmoothingWindow >= 1 {
		sg.SmoothingWindow = *c.SmoothingWindow
	}
	return sg
}

// DisciplineClassifier builds a discipline classifier with overrides.
func (c *TuningConfig) DisciplineClassifier() *DisciplineClassifier {
	dc := NewDisciplineClassifier()
	setF(&dc.FIMIntervalMin, c.FIMIntervalMinSecs)
	setF(&dc.FIMIntervalMax, c.FIMIntervalMaxSecs)
	setF(&dc.FIMIntervalTolerance, c.FIMIntervalTolerance)
	setF(&dc.CWTMaxCV, c.CWTMaxCV)
	setF(&dc.CWTRateMin, c.CWTRateMin)
	setF(&dc.CWTRateMax, c.CWTRateMax)
	setF(&dc.CNFMaxCV, c.CNFMaxCV)
	setF(&dc.CNFRateMin, c.CNFRateMin)
	setF(&dc.CNFRateMax, c.CNFRateMax)
	return dc
}

// LungVolumeClassifier builds a lung-volume classifier with overrides.
func (c *TuningConfig) LungVolumeClassifier() *LungVolumeClassifier {
	lc := NewLungVolumeClassifier()
	setF(&lc.FRCHRDelta, c.FRCHRDeltaBpm)
	setF(&lc.ExhaleHRDelta, c.ExhaleHRDeltaBpm)
	setF(&lc.HRStableStdDev, c.HRStableStdDev)
	setF(&lc.ConsistentCVMax, c.ConsistentCVMax)
	setF(&lc.FullSlowFactor, c.FullSlowFactor)
	setF(&lc.ExhaleFastFactor, c.ExhaleFastFactor)
	setF(&lc.ShortDiveFactor, c.ShortDiveFactor)
	return lc
}

func setF(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}
