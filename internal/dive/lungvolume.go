package dive

import (
	"fmt"
	"math"
)

// LungVolume is the air volume the diver started the descent with.
type LungVolume string

const (
	LungFull    LungVolume = "full"
	LungFRC     LungVolume = "frc" // functional residual capacity
	LungExhale  LungVolume = "exhale"
	LungUnknown LungVolume = "unknown"
)

// LungVolumes lists the classifiable states in canonical order.
var LungVolumes = []LungVolume{LungFull, LungFRC, LungExhale}

// HRCategory maps a lung volume to its heart-rate baseline bucket.
func (lv LungVolume) HRCategory() (HRCategory, bool) {
	switch lv {
	case LungFull:
		return HRFullLung, true
	case LungFRC:
		return HRFRC, true
	case LungExhale:
		return HRExhale, true
	default:
		return "", false
	}
}

// LungVolumeClassifier labels a dive full, FRC, exhale, or unknown
// from the heart-rate differential and buoyancy pattern scored against
// the user's baseline. Baseline-dependent rules are skipped (no
// evidence, not a penalty) while the user is uncalibrated, and an
// uncalibrated result is held below auto-trust confidence even when
// every session-relative rule fires.
type LungVolumeClassifier struct {
	ModelVersion string

	// FRCHRDelta and ExhaleHRDelta are absolute bpm drops below the
	// full-lung reference. The FRC +50 weight against an absolute
	// (not stdev-scaled) threshold is deliberate: the HR differential
	// is the most reliable discriminator observed.
	FRCHRDelta    float64
	ExhaleHRDelta float64

	// HRStableStdDev is the fixed HR-variability ceiling for the FRC
	// stability rule.
	HRStableStdDev float64

	// ConsistentCVMax is the descent-CV ceiling for the FRC velocity
	// consistency rule.
	ConsistentCVMax float64

	// FullSlowFactor / ExhaleFastFactor compare first-two-metre
	// velocity against the baseline descent rate for the discipline.
	FullSlowFactor   float64
	ExhaleFastFactor float64

	// ShortDiveFactor flags exhale dives well below the user's
	// historical duration.
	ShortDiveFactor float64
}

// NewLungVolumeClassifier returns the rule-based lung-volume
// classifier with default thresholds.
func NewLungVolumeClassifier() *LungVolumeClassifier {
	return &LungVolumeClassifier{
		ModelVersion:     "lungvolume-rules-v1",
		FRCHRDelta:       8,
		ExhaleHRDelta:    18,
		HRStableStdDev:   4.0,
		ConsistentCVMax:  0.15,
		FullSlowFactor:   0.7,
		ExhaleFastFactor: 1.2,
		ShortDiveFactor:  0.8,
	}
}

// Model returns the classifier identifier.
func (c *LungVolumeClassifier) Model() string { return c.ModelVersion }

// ClassifyLungVolume labels the dive with the default classifier.
// sessionHRRef is the mean avg-HR of the session's other dives (NaN
// when unavailable); discipline selects the descent-rate baseline used
// by the buoyancy rules.
func ClassifyLungVolume(f Features, baseline *UserBaseline, sessionHRRef float64, discipline Discipline) ClassificationResult {
	return NewLungVolumeClassifier().Classify(f, baseline, sessionHRRef, discipline)
}

// Classify scores the three lung-volume states additively up to 100
// and applies the shared ambiguity downgrade. Missing HR data means
// the HR rules contribute no evidence rather than scoring against any
// state.
func (c *LungVolumeClassifier) Classify(f Features, baseline *UserBaseline, sessionHRRef float64, discipline Discipline) ClassificationResult {
	result := ClassificationResult{
		Model:  c.ModelVersion,
		Scores: make(map[string]float64, len(LungVolumes)),
	}

	hrRef, hrRefStdDev, hrRefSource := c.heartRateReference(baseline, sessionHRRef)
	rateStat, hasRate := baselineRateFor(baseline, discipline)

	add := func(lv LungVolume, signal string, score float64, detail string) {
		result.Scores[string(lv)] += score
		result.Evidence = append(result.Evidence, Evidence{Signal: signal, Score: score, Detail: detail})
	}
	for _, lv := range LungVolumes {
		result.Scores[string(lv)] = 0
	}

	if f.HasHR && !math.IsNaN(hrRef) {
		diff := f.AvgHR - hrRef
		result.Evidence = append(result.Evidence, Evidence{
			Signal: "hr_differential",
			Detail: fmt.Sprintf("avg hr %.0f vs %s reference %.0f (%+.0f bpm)", f.AvgHR, hrRefSource, hrRef, diff),
		})

		if hrRefStdDev > 0 && math.Abs(diff) <= hrRefStdDev {
			add(LungFull, "full_hr_baseline", 40, fmt.Sprintf("within 1 stdev (%.1f) of full-lung baseline", hrRefStdDev))
		}
		if diff <= -c.FRCHRDelta {
			add(LungFRC, "frc_hr_drop", 50, fmt.Sprintf("%.0f bpm below reference (threshold %.0f)", -diff, c.FRCHRDelta))
		}
		if diff <= -c.ExhaleHRDelta {
			add(LungExhale, "exhale_hr_drop", 40, fmt.Sprintf("%.0f bpm below reference (threshold %.0f)", -diff, c.ExhaleHRDelta))
		}
	}
	if f.HasHR && f.HRStdDev < c.HRStableStdDev {
		add(LungFRC, "frc_hr_stable", 20, fmt.Sprintf("hr stdev %.1f below %.1f", f.HRStdDev, c.HRStableStdDev))
	}

	if f.HasBuoyancy && hasRate {
		if f.VelocityFirstTwoMetres < c.FullSlowFactor*rateStat.Mean {
			add(LungFull, "full_positive_buoyancy", 30,
				fmt.Sprintf("first 2m at %.2f m/s, under %.0f%% of %s baseline rate", f.VelocityFirstTwoMetres, c.FullSlowFactor*100, discipline))
		}
		if f.VelocityFirstTwoMetres > c.ExhaleFastFactor*rateStat.Mean {
			add(LungExhale, "exhale_sinking", 40,
				fmt.Sprintf("first 2m at %.2f m/s, over %.0f%% of %s baseline rate", f.VelocityFirstTwoMetres, c.ExhaleFastFactor*100, discipline))
		}
	}
	if f.HasBuoyancy {
		if f.BuoyancyStruggle {
			add(LungFull, "full_buoyancy_accel", 10, fmt.Sprintf("accelerated %.2f m/s between 2m and 5m", f.BuoyancyAcceleration))
		} else {
			add(LungFRC, "frc_no_struggle", 10, "no deceleration-then-reacceleration pattern")
		}
	}

	if f.DescentVelocityCV > 0 && f.DescentVelocityCV < c.ConsistentCVMax {
		add(LungFRC, "frc_velocity_consistency", 20, fmt.Sprintf("descent cv %.3f", f.DescentVelocityCV))
	}

	if baseline != nil && baseline.BottomDuration.Count > 0 && f.BottomDuration > baseline.BottomDuration.Mean {
		add(LungFull, "full_long_bottom", 20,
			fmt.Sprintf("bottom %.0fs above historical %.0fs", f.BottomDuration, baseline.BottomDuration.Mean))
	}
	if baseline != nil && baseline.TotalDuration.Count > 0 && f.TotalDuration < c.ShortDiveFactor*baseline.TotalDuration.Mean {
		add(LungExhale, "exhale_short_dive", 20,
			fmt.Sprintf("duration %.0fs under %.0f%% of historical %.0fs", f.TotalDuration, c.ShortDiveFactor*100, baseline.TotalDuration.Mean))
	}

	order := make([]string, len(LungVolumes))
	for i, lv := range LungVolumes {
		order[i] = string(lv)
	}
	best, second := rankScores(result.Scores, order)
	result.Candidate = best

	score := result.Scores[best]
	if adjusted, ok := ambiguityDowngrade(score, result.Scores[best], result.Scores[second]); ok {
		result.Evidence = append(result.Evidence, Evidence{
			Signal: "ambiguous",
			Score:  adjusted - score,
			Detail: fmt.Sprintf("%s and %s within %d points", best, second, AmbiguityMargin),
		})
		score = adjusted
	}

	result.Confidence = clampScore(score)

	// The session-relative HR reference ranks candidates for a new user
	// but is not verified against anything the user confirmed, so an
	// uncalibrated result never reaches auto-trust and cannot seed the
	// baseline on its own.
	if baseline == nil || baseline.State() == Uncalibrated {
		if ceiling := float64(AutoTrustConfidence - 1); result.Confidence > ceiling {
			result.Evidence = append(result.Evidence, Evidence{
				Signal: "uncalibrated_cap",
				Score:  ceiling - result.Confidence,
				Detail: "no calibrated baseline; confidence held below auto-trust",
			})
			result.Confidence = ceiling
		}
	}

	result.Label = best
	if result.Confidence < MinLabelConfidence {
		result.Label = string(LungUnknown)
	}
	return result
}

// heartRateReference picks the reference the HR rules compare against:
// the learned full-lung baseline when it exists, otherwise the
// session-relative reference. Returns NaN when neither is available.
func (c *LungVolumeClassifier) heartRateReference(baseline *UserBaseline, sessionHRRef float64) (ref, stdev float64, source string) {
	if baseline != nil {
		if s, ok := baseline.HeartRateStat(HRFullLung); ok {
			return s.Mean, s.StdDev(), "full-lung baseline"
		}
	}
	if !math.IsNaN(sessionHRRef) && sessionHRRef > 0 {
		return sessionHRRef, 0, "session"
	}
	return math.NaN(), 0, ""
}

func baselineRateFor(baseline *UserBaseline, d Discipline) (RunningStat, bool) {
	if baseline == nil || d == DisciplineUnknown || d == "" {
		return RunningStat{}, false
	}
	return baseline.DescentRateStat(d)
}
