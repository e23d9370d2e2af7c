package dive

// CalibrationProgress summarises how far a user's baseline learning
// has come, for display by the caller.
type CalibrationProgress struct {
	TotalLabeled    int     `json:"total_labeled"`
	Target          int     `json:"target"`
	Complete        bool    `json:"complete"`
	ProgressPercent float64 `json:"progress_percent"`
	Confidence      float64 `json:"confidence"`   // 0-100
	DataQuality     string  `json:"data_quality"` // poor/fair/good/excellent
}

// expectedBuckets is the coverage denominator: three HR lung-volume
// buckets plus three discipline descent-rate buckets.
const expectedBuckets = 6

// CalibrationProgress derives the progress summary from the baseline.
func (b UserBaseline) CalibrationProgress() CalibrationProgress {
	p := CalibrationProgress{
		TotalLabeled: b.CalibrationDives,
		Target:       CalibrationTarget,
		Complete:     b.CalibrationComplete,
	}
	p.ProgressPercent = float64(b.CalibrationDives) / CalibrationTarget * 100
	if p.ProgressPercent > 100 {
		p.ProgressPercent = 100
	}
	p.Confidence = b.baselineConfidence()
	p.DataQuality = b.dataQuality()
	return p
}

// baselineConfidence scores the baseline 0-100: up to 50 for labeled
// dive count, 30 for bucket consistency (low CV), 20 for bucket
// coverage.
func (b UserBaseline) baselineConfidence() float64 {
	confidence := float64(b.CalibrationDives) / CalibrationTarget * 50
	if confidence > 50 {
		confidence = 50
	}

	var consistency float64
	var buckets int
	addBucket := func(s RunningStat) {
		if s.Count < 2 || s.Mean == 0 {
			return
		}
		buckets++
		cv := s.StdDev() / s.Mean
		c := 1 - cv
		if c < 0 {
			c = 0
		}
		consistency += c
	}
	covered := 0
	for _, cat := range []HRCategory{HRFullLung, HRFRC, HRExhale} {
		if s, ok := b.HeartRateStat(cat); ok {
			covered++
			addBucket(s)
		}
	}
	for _, d := range Disciplines {
		if s, ok := b.DescentRateStat(d); ok {
			covered++
			addBucket(s)
		}
	}
	if buckets > 0 {
		confidence += consistency / float64(buckets) * 30
	}
	confidence += float64(covered) / expectedBuckets * 20
	return confidence
}

// dataQuality grades the baseline by labeled-dive count and bucket
// coverage.
func (b UserBaseline) dataQuality() string {
	switch {
	case b.CalibrationDives < 5:
		return "poor"
	case b.CalibrationDives < 10:
		return "fair"
	case b.CalibrationDives < CalibrationTarget:
		return "good"
	}
	covered := 0
	for _, cat := range []HRCategory{HRFullLung, HRFRC, HRExhale} {
		if _, ok := b.HeartRateStat(cat); ok {
			covered++
		}
	}
	for _, d := range Disciplines {
		if _, ok := b.DescentRateStat(d); ok {
			covered++
		}
	}
	if covered >= 5 {
		return "excellent"
	}
	return "good"
}
