package model

// Timing features in milliseconds.
type Timing struct {
	ReactionTimeMs *float64 `json:"reactionTimeMs"`
	MovementTimeMs *float64 `json:"movementTimeMs"`
	InterTapMs     *float64 `json:"interTapMs"`
}

// Spatial features in normalized stage units. ErrorDistNorm is expressed in
// target radii.
type Spatial struct {
	DirectDistNorm      *float64 `json:"directDistNorm"`
	PathLengthNorm      *float64 `json:"pathLengthNorm"`
	Straightness        *float64 `json:"straightness"`
	ErrorDistNorm       *float64 `json:"errorDistNorm"`
	InitialDirectionDeg *float64 `json:"initialDirectionDeg"`
}

// Kinematics over the attempt window. Speeds are normalized units per ms.
type Kinematics struct {
	MeanSpeed        *float64 `json:"meanSpeed"`
	PeakSpeed        *float64 `json:"peakSpeed"`
	SpeedVar         *float64 `json:"speedVar"`
	MeanAccel        *float64 `json:"meanAccel"`
	PeakAccel        *float64 `json:"peakAccel"`
	JerkRMS          *float64 `json:"jerkRMS"`
	SubmovementCount *int     `json:"submovementCount"`
	OvershootCount   *int     `json:"overshootCount"`
}

// Fitts holds the Shannon formulation terms and throughput in bits/s.
// EffectiveWidth and IDe depend on the endpoint spread of a whole round, so
// the extractor leaves them nil and round summaries fill them in.
type Fitts struct {
	D              *float64 `json:"D"`
	W              *float64 `json:"W"`
	ID             *float64 `json:"ID"`
	Throughput     *float64 `json:"throughput"`
	EffectiveWidth *float64 `json:"effectiveWidth"`
	IDe            *float64 `json:"IDe"`
}

// Features groups every derived value of one attempt. A nil member means
// "no data", never a measured zero.
type Features struct {
	Timing     Timing     `json:"timing"`
	Spatial    Spatial    `json:"spatial"`
	Kinematics Kinematics `json:"kinematics"`
	Fitts      Fitts      `json:"fitts"`
}

// HasWindowData reports whether any window-derived member is set.
// InterTapMs is excluded: it depends only on the previous click.
func (f *Features) HasWindowData() bool {
	t, s, k, fi := f.Timing, f.Spatial, f.Kinematics, f.Fitts
	for _, p := range []*float64{
		t.ReactionTimeMs, t.MovementTimeMs,
		s.DirectDistNorm, s.PathLengthNorm, s.Straightness, s.ErrorDistNorm, s.InitialDirectionDeg,
		k.MeanSpeed, k.PeakSpeed, k.SpeedVar, k.MeanAccel, k.PeakAccel, k.JerkRMS,
		fi.D, fi.W, fi.ID, fi.Throughput,
	} {
		if p != nil {
			return true
		}
	}
	return k.SubmovementCount != nil || k.OvershootCount != nil
}

// EnrichmentStatus is the outcome of the enrich stage for one attempt.
type EnrichmentStatus string

const (
	EnrichmentOK       EnrichmentStatus = "ok"
	EnrichmentDegraded EnrichmentStatus = "degraded"
	EnrichmentFailed   EnrichmentStatus = "failed"
	EnrichmentSkipped  EnrichmentStatus = "skipped"
)

// Enrichment records how the derived features of an attempt were produced.
type Enrichment struct {
	Status EnrichmentStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}
