package dive

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// CalibrationTarget is the number of trusted labels a user must
// accumulate before baseline-dependent classification is considered
// reliable. calibration_complete is always derived from this, never
// set directly.
const CalibrationTarget = 20

// CalibrationState is the user's position in the baseline-learning
// lifecycle.
type CalibrationState string

const (
	Uncalibrated CalibrationState = "UNCALIBRATED"
	Calibrating  CalibrationState = "CALIBRATING"
	Calibrated   CalibrationState = "CALIBRATED"
)

// HRCategory buckets heart-rate baselines by lung-volume context.
type HRCategory string

const (
	HRResting  HRCategory = "resting"
	HRFullLung HRCategory = "full_lung"
	HRFRC      HRCategory = "frc"
	HRExhale   HRCategory = "exhale"
)

// RunningStat is a single-pass running statistic maintained with
// Welford's online algorithm. Mean and stdev are exact without storing
// history; Min and Max are historical extremes and are not adjusted by
// Remove (exact removal of extremes requires recomputing from the
// label-event log).
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Push folds one value into the statistic.
func (s *RunningStat) Push(v float64) {
	s.Count++
	if s.Count == 1 {
		s.Mean = v
		s.M2 = 0
		s.Min = v
		s.Max = v
		return
	}
	delta := v - s.Mean
	s.Mean += delta / float64(s.Count)
	s.M2 += delta * (v - s.Mean)
	if v < s.Min {
		s.Min = v
	}
	if v > s.Max {
		s.Max = v
	}
}

// Remove reverses a previous Push of v. Used when a trusted label is
// re-labeled and its old contribution must leave the bucket.
func (s *RunningStat) Remove(v float64) error {
	if s.Count == 0 {
		return fmt.Errorf("remove from empty running stat")
	}
	if s.Count == 1 {
		*s = RunningStat{}
		return nil
	}
	n := float64(s.Count)
	newMean := (n*s.Mean - v) / (n - 1)
	s.M2 -= (v - newMean) * (v - s.Mean)
	if s.M2 < 0 {
		s.M2 = 0 // floating-point dust
	}
	s.Mean = newMean
	s.Count--
	return nil
}

// Variance returns the sample variance, 0 for fewer than two values.
func (s RunningStat) Variance() float64 {
	if s.Count < 2 {
		return 0
	}
	return s.M2 / float64(s.Count-1)
}

// StdDev returns the sample standard deviation.
func (s RunningStat) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// UserBaseline is one user's learned statistics: heart-rate buckets
// keyed by lung-volume category and descent-rate buckets keyed by
// discipline, plus calibration progress. Treated as an immutable
// value: every update returns a fresh copy, and persisting the
// canonical copy is the storage collaborator's concern.
type UserBaseline struct {
	UserID string `json:"user_id"`

	HeartRate      map[HRCategory]RunningStat `json:"heart_rate"`
	DescentRate    map[Discipline]RunningStat `json:"descent_rate"`
	BottomDuration RunningStat                `json:"bottom_duration"`
	TotalDuration  RunningStat                `json:"total_duration"`

	CalibrationDives    int       `json:"calibration_dives"`
	CalibrationComplete bool      `json:"calibration_complete"`
	LastCalibration     time.Time `json:"last_calibration"`
}

// NewUserBaseline returns an empty (UNCALIBRATED) baseline for a user.
func NewUserBaseline(userID string) UserBaseline {
	return UserBaseline{
		UserID:      userID,
		HeartRate:   make(map[HRCategory]RunningStat),
		DescentRate: make(map[Discipline]RunningStat),
	}
}

// State derives the calibration state from the trusted-label count.
func (b UserBaseline) State() CalibrationState {
	switch {
	case b.CalibrationDives == 0:
		return Uncalibrated
	case b.CalibrationDives < CalibrationTarget:
		return Calibrating
	default:
		return Calibrated
	}
}

// HeartRateStat returns the bucket for the category if it has data.
func (b UserBaseline) HeartRateStat(cat HRCategory) (RunningStat, bool) {
	s, ok := b.HeartRate[cat]
	return s, ok && s.Count > 0
}

// DescentRateStat returns the bucket for the discipline if it has data.
func (b UserBaseline) DescentRateStat(d Discipline) (RunningStat, bool) {
	s, ok := b.DescentRate[d]
	return s, ok && s.Count > 0
}

func (b UserBaseline) clone() UserBaseline {
	out := b
	out.HeartRate = make(map[HRCategory]RunningStat, len(b.HeartRate))
	for k, v := range b.HeartRate {
		out.HeartRate[k] = v
	}
	out.DescentRate = make(map[Discipline]RunningStat, len(b.DescentRate))
	for k, v := range b.DescentRate {
		out.DescentRate[k] = v
	}
	return out
}

// LabelSource records who produced a label.
type LabelSource string

const (
	SourceManual LabelSource = "manual"
	SourceAuto   LabelSource = "auto"
)

// LabelEvent records one trusted label together with the feature
// values that produced it. Events are append-only and are the sole
// input to baseline recomputation; retaining them allows any Welford
// update to be reversed or replayed.
type LabelEvent struct {
	EventID uuid.UUID `json:"event_id"`
	DiveID  uuid.UUID `json:"dive_id"`
	UserID  string    `json:"user_id"`

	Discipline Discipline `json:"discipline"`
	LungVolume LungVolume `json:"lung_volume"`

	DisciplineSource LabelSource `json:"discipline_source"`
	LungVolumeSource LabelSource `json:"lung_volume_source"`

	AvgHR          float64 `json:"avg_hr"` // NaN when the trace had no HR
	AvgDescentRate float64 `json:"avg_descent_rate"`
	BottomDuration float64 `json:"bottom_duration"`
	TotalDuration  float64 `json:"total_duration"`

	RecordedAt time.Time `json:"recorded_at"`
}

// ApplyLabelEvent folds one label event into the baseline and returns
// the updated copy; the input baseline is not mutated. Every event
// increments calibration_dives exactly once, regardless of which
// buckets it touched.
func ApplyLabelEvent(b UserBaseline, ev LabelEvent) UserBaseline {
	out := b.clone()
	if out.HeartRate == nil {
		out.HeartRate = make(map[HRCategory]RunningStat)
	}
	if out.DescentRate == nil {
		out.DescentRate = make(map[Discipline]RunningStat)
	}
	pushEvent(&out, ev)

	out.CalibrationDives++
	out.CalibrationComplete = out.CalibrationDives >= CalibrationTarget
	if ev.RecordedAt.After(out.LastCalibration) {
		out.LastCalibration = ev.RecordedAt
	}
	return out
}

// ReplaceLabelEvent swaps a previously applied event for a corrected
// one: the old bucket contributions are reversed and the new ones
// folded in. calibration_dives is unchanged, so re-labeling never
// double-counts.
func ReplaceLabelEvent(b UserBaseline, old, corrected LabelEvent) (UserBaseline, error) {
	out := b.clone()
	if err := removeEvent(&out, old); err != nil {
		return b, fmt.Errorf("reverse old label event %s: %w", old.EventID, err)
	}
	pushEvent(&out, corrected)
	if corrected.RecordedAt.After(out.LastCalibration) {
		out.LastCalibration = corrected.RecordedAt
	}
	return out, nil
}

// RecomputeBaseline rebuilds a baseline from the full label-event log.
// This is the explicit reset path: it is the only way calibration may
// regress (for example after historical dives are deleted).
func RecomputeBaseline(userID string, events []LabelEvent) UserBaseline {
	b := NewUserBaseline(userID)
	for _, ev := range events {
		b = ApplyLabelEvent(b, ev)
	}
	return b
}

func pushEvent(b *UserBaseline, ev LabelEvent) {
	if cat, ok := ev.LungVolume.HRCategory(); ok && !math.IsNaN(ev.AvgHR) && ev.AvgHR > 0 {
		s := b.HeartRate[cat]
		s.Push(ev.AvgHR)
		b.HeartRate[cat] = s
	}
	if ev.Discipline != DisciplineUnknown && ev.Discipline != "" && ev.AvgDescentRate > 0 {
		s := b.DescentRate[ev.Discipline]
		s.Push(ev.AvgDescentRate)
		b.DescentRate[ev.Discipline] = s
	}
	if ev.BottomDuration > 0 {
		b.BottomDuration.Push(ev.BottomDuration)
	}
	if ev.TotalDuration > 0 {
		b.TotalDuration.Push(ev.TotalDuration)
	}
}

func removeEvent(b *UserBaseline, ev LabelEvent) error {
	if cat, ok := ev.LungVolume.HRCategory(); ok && !math.IsNaN(ev.AvgHR) && ev.AvgHR > 0 {
		s := b.HeartRate[cat]
		if err := s.Remove(ev.AvgHR); err != nil {
			return err
		}
		b.HeartRate[cat] = s
	}
	if ev.Discipline != DisciplineUnknown && ev.Discipline != "" && ev.AvgDescentRate > 0 {
		s := b.DescentRate[ev.Discipline]
		if err := s.Remove(ev.AvgDescentRate); err != nil {
			return err
		}
		b.DescentRate[ev.Discipline] = s
	}
	if ev.BottomDuration > 0 {
		if err := b.BottomDuration.Remove(ev.BottomDuration); err != nil {
			return err
		}
	}
	if ev.TotalDuration > 0 {
		if err := b.TotalDuration.Remove(ev.TotalDuration); err != nil {
			return err
		}
	}
	return nil
}
