package dive

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func aiResult(label string, confidence float64) ClassificationResult {
	return ClassificationResult{Label: label, Candidate: label, Confidence: confidence}
}

func TestReconcile_ManualAlwaysWins(t *testing.T) {
	ai := DiveClassification{
		Discipline: aiResult("CWT", 95),
		LungVolume: aiResult("full", 92),
	}
	manual := ManualLabel{Discipline: DisciplineFIM, LungVolume: LungFRC}

	final := Reconcile(ai, manual)

	if final.Discipline != DisciplineFIM || final.DisciplineSource != SourceManual {
		t.Errorf("discipline = %s/%s, want FIM/manual over a 95-confidence AI label",
			final.Discipline, final.DisciplineSource)
	}
	if final.LungVolume != LungFRC || final.LungVolumeSource != SourceManual {
		t.Errorf("lung volume = %s/%s, want frc/manual", final.LungVolume, final.LungVolumeSource)
	}
	if final.DisciplineConfidence != 100 || final.LungVolumeConfidence != 100 {
		t.Error("manual labels must report confidence 100")
	}
}

func TestReconcile_PartialManualLabel(t *testing.T) {
	ai := DiveClassification{
		Discipline: aiResult("CWT", 88),
		LungVolume: aiResult("full", 72),
	}
	// User labels only the lung volume.
	final := Reconcile(ai, ManualLabel{LungVolume: LungExhale})

	if final.Discipline != DisciplineCWT || final.DisciplineSource != SourceAuto {
		t.Errorf("discipline = %s/%s, want the AI label kept", final.Discipline, final.DisciplineSource)
	}
	if final.LungVolume != LungExhale || final.LungVolumeSource != SourceManual {
		t.Errorf("lung volume = %s/%s, want the manual override", final.LungVolume, final.LungVolumeSource)
	}
}

func TestFinalLabel_TrustThresholds(t *testing.T) {
	cases := []struct {
		name  string
		final FinalLabel
		want  bool
	}{
		{"auto at threshold", FinalLabel{Discipline: DisciplineCWT, DisciplineSource: SourceAuto, DisciplineConfidence: 85, LungVolume: LungUnknown}, true},
		{"auto below threshold", FinalLabel{Discipline: DisciplineCWT, DisciplineSource: SourceAuto, DisciplineConfidence: 84, LungVolume: LungUnknown}, false},
		{"manual low confidence", FinalLabel{Discipline: DisciplineCWT, DisciplineSource: SourceManual, DisciplineConfidence: 100, LungVolume: LungUnknown}, true},
		{"unknown never trusted", FinalLabel{Discipline: DisciplineUnknown, DisciplineSource: SourceAuto, DisciplineConfidence: 99, LungVolume: LungUnknown}, false},
		{"trusted lung volume only", FinalLabel{Discipline: DisciplineUnknown, LungVolume: LungFRC, LungVolumeSource: SourceAuto, LungVolumeConfidence: 90}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.final.Trusted(); got != tc.want {
				t.Errorf("Trusted() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewLabelEvent_UntrustedAxisRecordedUnknown(t *testing.T) {
	f := Features{
		DiveID:         uuid.New(),
		HasHR:          true,
		AvgHR:          78,
		AvgDescentRate: 0.95,
		BottomDuration: 18,
		TotalDuration:  95,
	}
	final := FinalLabel{
		Discipline:           DisciplineCWT,
		DisciplineSource:     SourceAuto,
		DisciplineConfidence: 90,
		LungVolume:           LungFull,
		LungVolumeSource:     SourceAuto,
		LungVolumeConfidence: 70, // below auto-trust
	}

	ev, ok := NewLabelEvent("neko", f, final, time.Now())
	if !ok {
		t.Fatal("expected an event for a trusted discipline label")
	}
	if ev.Discipline != DisciplineCWT {
		t.Errorf("discipline = %s, want CWT", ev.Discipline)
	}
	if ev.LungVolume != LungUnknown {
		t.Errorf("lung volume = %s, want unknown (70 < auto-trust)", ev.LungVolume)
	}
	if ev.DiveID != f.DiveID {
		t.Error("event must carry the dive ID")
	}
	if ev.AvgHR != 78 || ev.AvgDescentRate != 0.95 {
		t.Errorf("event metrics = hr %.0f rate %.2f, want copied from features", ev.AvgHR, ev.AvgDescentRate)
	}
}

func TestNewLabelEvent_NothingTrusted(t *testing.T) {
	final := FinalLabel{
		Discipline:           DisciplineCWT,
		DisciplineSource:     SourceAuto,
		DisciplineConfidence: 70,
		LungVolume:           LungUnknown,
	}

	_, ok := NewLabelEvent("neko", Features{}, final, time.Now())
	if ok {
		t.Error("no event should be produced when neither axis is trusted")
	}
}

func TestNewLabelEvent_MissingHRStaysNaN(t *testing.T) {
	final := FinalLabel{Discipline: DisciplineCWT, DisciplineSource: SourceManual}

	ev, ok := NewLabelEvent("neko", Features{AvgHR: math.NaN()}, final, time.Now())
	if !ok {
		t.Fatal("manual label must always produce an event")
	}
	if !math.IsNaN(ev.AvgHR) {
		t.Errorf("AvgHR = %f, want NaN so the HR bucket is skipped", ev.AvgHR)
	}
}

func TestConfirm_PromotesAILabels(t *testing.T) {
	ai := DiveClassification{
		Discipline: aiResult("CWT", 90),
		LungVolume: aiResult("unknown", 40),
	}

	manual := Confirm(ai)
	if manual.Discipline != DisciplineCWT {
		t.Errorf("discipline = %s, want CWT confirmed", manual.Discipline)
	}
	if manual.LungVolume != "" {
		t.Errorf("lung volume = %s, want empty (unknown cannot be confirmed)", manual.LungVolume)
	}

	final := Reconcile(ai, manual)
	if final.DisciplineSource != SourceManual {
		t.Error("confirmed label should reconcile as manual")
	}
}
