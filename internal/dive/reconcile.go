package dive

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DiveClassification bundles the two AI results for one dive.
type DiveClassification struct {
	Discipline ClassificationResult `json:"discipline"`
	LungVolume ClassificationResult `json:"lung_volume"`
}

// ManualLabel carries user-supplied labels. Empty fields mean the user
// did not label that axis.
type ManualLabel struct {
	Discipline Discipline `json:"discipline,omitempty"`
	LungVolume LungVolume `json:"lung_volume,omitempty"`
}

// FinalLabel is the reconciled label for a dive. The precedence law:
// a manual value always wins over an AI value, never the reverse.
type FinalLabel struct {
	Discipline           Discipline  `json:"discipline"`
	DisciplineSource     LabelSource `json:"discipline_source"`
	DisciplineConfidence float64     `json:"discipline_confidence"`

	LungVolume           LungVolume  `json:"lung_volume"`
	LungVolumeSource     LabelSource `json:"lung_volume_source"`
	LungVolumeConfidence float64     `json:"lung_volume_confidence"`
}

// Reconcile merges the AI classification with any manual label.
// Manual confidence is reported as 100.
func Reconcile(ai DiveClassification, manual ManualLabel) FinalLabel {
	final := FinalLabel{
		Discipline:           Discipline(ai.Discipline.Label),
		DisciplineSource:     SourceAuto,
		DisciplineConfidence: ai.Discipline.Confidence,
		LungVolume:           LungVolume(ai.LungVolume.Label),
		LungVolumeSource:     SourceAuto,
		LungVolumeConfidence: ai.LungVolume.Confidence,
	}
	if final.Discipline == "" {
		final.Discipline = DisciplineUnknown
	}
	if final.LungVolume == "" {
		final.LungVolume = LungUnknown
	}
	if manual.Discipline != "" {
		final.Discipline = manual.Discipline
		final.DisciplineSource = SourceManual
		final.DisciplineConfidence = 100
	}
	if manual.LungVolume != "" {
		final.LungVolume = manual.LungVolume
		final.LungVolumeSource = SourceManual
		final.LungVolumeConfidence = 100
	}
	return final
}

// disciplineTrusted reports whether the discipline side of the label
// may feed the baseline.
func (fl FinalLabel) disciplineTrusted() bool {
	if fl.Discipline == DisciplineUnknown {
		return false
	}
	return fl.DisciplineSource == SourceManual || fl.DisciplineConfidence >= AutoTrustConfidence
}

func (fl FinalLabel) lungVolumeTrusted() bool {
	if fl.LungVolume == LungUnknown {
		return false
	}
	return fl.LungVolumeSource == SourceManual || fl.LungVolumeConfidence >= AutoTrustConfidence
}

// Trusted reports whether the reconciled label qualifies for a
// LabelEvent: a manual label on either axis, or an AI label at or
// above AutoTrustConfidence. The grace window during which a user may
// still override an auto-trusted label is the caller's concern; this
// package only exposes Confirm/Override semantics.
func (fl FinalLabel) Trusted() bool {
	return fl.disciplineTrusted() || fl.lungVolumeTrusted()
}

// NewLabelEvent builds the LabelEvent for a trusted final label.
// Untrusted axes are recorded as unknown so baseline buckets skip
// them. Returns false when the label qualifies for no event at all.
func NewLabelEvent(userID string, f Features, final FinalLabel, at time.Time) (LabelEvent, bool) {
	if !final.Trusted() {
		return LabelEvent{}, false
	}
	ev := LabelEvent{
		EventID:          uuid.New(),
		DiveID:           f.DiveID,
		UserID:           userID,
		Discipline:       DisciplineUnknown,
		LungVolume:       LungUnknown,
		DisciplineSource: final.DisciplineSource,
		LungVolumeSource: final.LungVolumeSource,
		AvgHR:            math.NaN(),
		AvgDescentRate:   f.AvgDescentRate,
		BottomDuration:   f.BottomDuration,
		TotalDuration:    f.TotalDuration,
		RecordedAt:       at,
	}
	if final.disciplineTrusted() {
		ev.Discipline = final.Discipline
	}
	if final.lungVolumeTrusted() {
		ev.LungVolume = final.LungVolume
	}
	if f.HasHR {
		ev.AvgHR = f.AvgHR
	}
	return ev, true
}

// Confirm promotes a dive's AI labels to user-confirmed manual labels.
// This is the confirm entry point for the auto-trust grace window.
func Confirm(ai DiveClassification) ManualLabel {
	m := ManualLabel{}
	if d := Discipline(ai.Discipline.Label); d != DisciplineUnknown && d != "" {
		m.Discipline = d
	}
	if lv := LungVolume(ai.LungVolume.Label); lv != LungUnknown && lv != "" {
		m.LungVolume = lv
	}
	return m
}
