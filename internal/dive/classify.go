package dive

import (
	"fmt"
	"math"
)

// Discipline is the freediving discipline inferred from propulsion
// patterns in the descent.
type Discipline string

const (
	DisciplineFIM     Discipline = "FIM" // free immersion (rope pulls)
	DisciplineCWT     Discipline = "CWT" // constant weight with fins
	DisciplineCNF     Discipline = "CNF" // constant weight no fins
	DisciplineUnknown Discipline = "unknown"
)

// Disciplines lists the classifiable disciplines in canonical order.
var Disciplines = []Discipline{DisciplineFIM, DisciplineCWT, DisciplineCNF}

// Confidence and scoring thresholds shared by both classifiers.
const (
	// MinLabelConfidence is the floor below which a result is
	// reported as unknown (the best candidate stays in the evidence
	// for manual review).
	MinLabelConfidence = 60

	// AutoTrustConfidence is the floor at which an AI label may be
	// auto-trusted by the reconciler.
	AutoTrustConfidence = 85

	// AmbiguityMargin and AmbiguityPenalty implement the tie-break:
	// when the top two scores are within the margin, confidence is
	// downgraded by the penalty.
	AmbiguityMargin  = 10
	AmbiguityPenalty = 20

	// BaselineBonusMax is the maximum bonus for closeness to the
	// user's learned baseline (full within 1 stdev, none beyond 3).
	BaselineBonusMax = 20
)

// Evidence is one scored signal. Low-confidence results always carry
// their evidence so a human can adjudicate.
type Evidence struct {
	Signal string  `json:"signal"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// ClassificationResult is the outcome of classifying one dive along
// one axis (discipline or lung volume). Label is "unknown" when
// confidence is below MinLabelConfidence; Candidate always holds the
// best-scoring label regardless.
type ClassificationResult struct {
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"` // 0-100
	Candidate  string             `json:"candidate"`
	Scores     map[string]float64 `json:"scores"`
	Evidence   []Evidence         `json:"evidence"`
	Model      string             `json:"model"`
}

// Classifier produces a ClassificationResult from dive features and a
// user baseline. The rule-based implementations below are a
// deterministic, explainable placeholder that a trained model can be
// swapped against behind the same contract.
type Classifier interface {
	Model() string
}

// DisciplineClassifier labels a dive FIM, CWT, CNF, or unknown from
// velocity-rhythm analysis and baseline comparison.
type DisciplineClassifier struct {
	ModelVersion string

	// FIM rhythm window: inter-peak intervals must cluster here.
	FIMIntervalMin       float64
	FIMIntervalMax       float64
	FIMIntervalTolerance float64

	// CWT smoothness window.
	CWTMaxCV   float64
	CWTRateMin float64
	CWTRateMax float64

	// CNF: stricter smoothness, slower rate.
	CNFMaxCV   float64
	CNFRateMin float64
	CNFRateMax float64
}

// NewDisciplineClassifier returns the rule-based discipline classifier
// with default thresholds.
func NewDisciplineClassifier() *DisciplineClassifier {
	return &DisciplineClassifier{
		ModelVersion:         "discipline-rules-v1",
		FIMIntervalMin:       2.0,
		FIMIntervalMax:       4.0,
		FIMIntervalTolerance: 0.5,
		CWTMaxCV:             0.2,
		CWTRateMin:           0.7,
		CWTRateMax:           1.2,
		CNFMaxCV:             0.15,
		CNFRateMin:           0.5,
		CNFRateMax:           0.8,
	}
}

// Model returns the classifier identifier.
func (c *DisciplineClassifier) Model() string { return c.ModelVersion }

// ClassifyDiscipline labels the dive with the default classifier.
func ClassifyDiscipline(f Features, baseline *UserBaseline) ClassificationResult {
	return NewDisciplineClassifier().Classify(f, baseline)
}

// Classify scores all three disciplines, applies the baseline bonus to
// the best candidate, and downgrades ambiguous results. Never returns
// an error: ambiguity and missing baselines surface only through the
// confidence number and evidence list.
func (c *DisciplineClassifier) Classify(f Features, baseline *UserBaseline) ClassificationResult {
	result := ClassificationResult{
		Model:  c.ModelVersion,
		Scores: make(map[string]float64, len(Disciplines)),
	}

	fimScore, fimEv := c.fimRhythmScore(f)
	cwtScore, cwtEv := c.smoothnessScore(f, DisciplineCWT, c.CWTMaxCV, c.CWTRateMin, c.CWTRateMax)
	cnfScore, cnfEv := c.smoothnessScore(f, DisciplineCNF, c.CNFMaxCV, c.CNFRateMin, c.CNFRateMax)

	result.Scores[string(DisciplineFIM)] = fimScore
	result.Scores[string(DisciplineCWT)] = cwtScore
	result.Scores[string(DisciplineCNF)] = cnfScore
	result.Evidence = append(result.Evidence, fimEv...)
	result.Evidence = append(result.Evidence, cwtEv...)
	result.Evidence = append(result.Evidence, cnfEv...)

	order := make([]string, len(Disciplines))
	for i, d := range Disciplines {
		order[i] = string(d)
	}
	best, second := rankScores(result.Scores, order)
	result.Candidate = best

	score := result.Scores[best]
	if bonus := baselineRateBonus(baseline, Discipline(best), f.AvgDescentRate); bonus > 0 {
		score += bonus
		result.Evidence = append(result.Evidence, Evidence{
			Signal: "baseline_rate_match",
			Score:  bonus,
			Detail: fmt.Sprintf("descent rate %.2f m/s near %s baseline", f.AvgDescentRate, best),
		})
	}
	if adjusted, ok := ambiguityDowngrade(score, result.Scores[best], result.Scores[second]); ok {
		result.Evidence = append(result.Evidence, Evidence{
			Signal: "ambiguous",
			Score:  adjusted - score,
			Detail: fmt.Sprintf("%s and %s within %d points", best, second, AmbiguityMargin),
		})
		score = adjusted
	}

	result.Confidence = clampScore(score)
	result.Label = best
	if result.Confidence < MinLabelConfidence {
		result.Label = string(DisciplineUnknown)
	}
	return result
}

// fimRhythmScore detects rope-pull rhythm: velocity peaks in the
// descent whose intervals cluster inside the FIM window. The score
// scales with peak regularity (fraction of intervals within the
// tolerance of the median interval).
func (c *DisciplineClassifier) fimRhythmScore(f Features) (float64, []Evidence) {
	intervals := f.DescentPeakIntervals
	if len(intervals) < 2 {
		return 0, nil
	}
	median := medianInterval(intervals)
	if median < c.FIMIntervalMin || median > c.FIMIntervalMax {
		return 0, nil
	}
	regularity := intervalRegularity(intervals, c.FIMIntervalTolerance)
	score := 80 * regularity
	return score, []Evidence{{
		Signal: "fim_rhythm",
		Score:  score,
		Detail: fmt.Sprintf("%d pull intervals, median %.1fs, regularity %.2f", len(intervals), median, regularity),
	}}
}

// smoothnessScore awards points for a low descent CV inside the
// discipline's rate window: a base for meeting both conditions, plus
// bonuses for how far the CV sits below the limit and how centred the
// rate is in the window.
func (c *DisciplineClassifier) smoothnessScore(f Features, d Discipline, maxCV, rateMin, rateMax float64) (float64, []Evidence) {
	cv := f.DescentVelocityCV
	rate := f.AvgDescentRate
	if rate <= 0 || cv >= maxCV || rate < rateMin || rate > rateMax {
		return 0, nil
	}
	centre := (rateMin + rateMax) / 2
	halfWidth := (rateMax - rateMin) / 2
	centred := 1 - math.Abs(rate-centre)/halfWidth

	score := 50 + 20*(maxCV-cv)/maxCV + 10*centred
	return score, []Evidence{{
		Signal: fmt.Sprintf("%s_smoothness", d),
		Score:  score,
		Detail: fmt.Sprintf("cv %.3f below %.2f, rate %.2f m/s in [%.1f, %.1f]", cv, maxCV, rate, rateMin, rateMax),
	}}
}

// baselineRateBonus scales BaselineBonusMax by how close the dive's
// descent rate is to the user's learned rate for the candidate
// discipline: within 1 stdev earns the full bonus, beyond 3 none.
func baselineRateBonus(baseline *UserBaseline, d Discipline, rate float64) float64 {
	if baseline == nil || rate <= 0 {
		return 0
	}
	stat, ok := baseline.DescentRateStat(d)
	if !ok || stat.Count < 2 {
		return 0
	}
	sd := stat.StdDev()
	if sd <= 0 {
		return 0
	}
	z := math.Abs(rate-stat.Mean) / sd
	switch {
	case z <= 1:
		return BaselineBonusMax
	case z >= 3:
		return 0
	default:
		return BaselineBonusMax * (3 - z) / 2
	}
}

// rankScores returns the labels of the highest and second-highest
// scores. Ties resolve in the supplied canonical order so results are
// deterministic.
func rankScores(scores map[string]float64, order []string) (best, second string) {
	for _, k := range order {
		if _, ok := scores[k]; !ok {
			continue
		}
		switch {
		case best == "" || scores[k] > scores[best]:
			second = best
			best = k
		case second == "" || scores[k] > scores[second]:
			second = k
		}
	}
	return best, second
}

// ambiguityDowngrade applies the penalty when the top two raw scores
// sit within the margin. A winner whose raw score met the label floor
// is never pushed below it by ambiguity alone: the overlap of the CWT
// and CNF rate windows costs auto-trust, not the label. Weak ambiguous
// matches (raw score under the floor) still land at unknown.
func ambiguityDowngrade(score, bestRaw, secondRaw float64) (adjusted float64, applied bool) {
	if secondRaw <= 0 || bestRaw-secondRaw >= AmbiguityMargin {
		return score, false
	}
	adjusted = score - AmbiguityPenalty
	if bestRaw >= MinLabelConfidence && adjusted < MinLabelConfidence {
		adjusted = MinLabelConfidence
	}
	return adjusted, true
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
