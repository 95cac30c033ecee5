package scoring

import (
	"math"

	"github.com/vareng/annotator/internal/annotation/model"
)

// Scorer computes the ML score attached to an annotation record. A Scorer
// with no encoding table loaded (modelPath unset) is in degraded mode:
// Score always returns nil, and the batch pipeline continues without a
// score rather than failing the variant (§4.2 step 4).
type Scorer struct {
	encoding *Encoding
	enabled  bool
}

// New builds a Scorer. An empty modelPath puts the scorer in degraded
// mode; any other value is read as an encoding table via LoadEncoding.
func New(modelPath string) (*Scorer, error) {
	if modelPath == "" {
		return &Scorer{enabled: false}, nil
	}

	encoding, err := LoadEncoding(modelPath)
	if err != nil {
		return nil, err
	}
	return &Scorer{encoding: encoding, enabled: true}, nil
}

// Score maps fv to a scalar in [0,1], or nil if scoring is disabled. It is
// a pure function of fv and the loaded encoding table: no I/O, no shared
// mutable state, safe to call concurrently from every worker.
func (s *Scorer) Score(fv model.FeatureVector) *float64 {
	if !s.enabled {
		return nil
	}

	af := orDefault(fv.AlleleFrequency, s.encoding.DefaultAlleleFrequency)
	maxPop := orDefault(fv.MaxPopAlleleFreq, s.encoding.DefaultMaxPopFrequency)
	spliceAI := orDefault(fv.SpliceAIDelta, s.encoding.DefaultSpliceAI)
	gerp := orDefault(fv.GERP, s.encoding.DefaultGERP)
	polyphen := orDefault(fv.PolyPhen, s.encoding.DefaultPolyPhen)
	cadd := orDefault(fv.CADDScore, s.encoding.DefaultCADD)

	// Rarity dominates: a common variant is pulled toward benign
	// regardless of predicted consequence severity.
	rarity := 1.0 - clamp01(maxPop*50)

	logit := -2.0 +
		3.0*s.encoding.consequenceWeight(fv.Consequence) +
		2.0*s.encoding.impactWeight(fv.Impact) +
		1.5*s.encoding.lofteeWeight(fv.LOFTEEClass) +
		1.0*polyphen +
		1.0*spliceAI +
		0.3*(gerp/6.0) +
		0.05*(cadd/10.0) +
		2.0*rarity +
		0.5*(1.0-clamp01(af*50))

	score := sigmoid(logit)
	return &score
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// FeatureVector extracts the nine scoring inputs from a persisted
// annotation: the record's own fields plus the canonical transcript's
// (MANE if present, otherwise the first transcript).
func FeatureVector(record model.Record, transcripts []model.Transcript) model.FeatureVector {
	canonical := canonicalTranscript(transcripts)

	fv := model.FeatureVector{
		Consequence:      record.MostSevereConseq,
		AlleleFrequency:  record.AlleleFrequency,
		MaxPopAlleleFreq: record.MaxPopAlleleFreq,
		CADDScore:        record.CADDScore,
	}
	if canonical != nil {
		fv.Impact = canonical.Impact
		fv.SpliceAIDelta = canonical.SpliceAIDelta
		fv.GERP = canonical.GERP
		fv.LOFTEEClass = canonical.LOFTEEClass
		fv.PolyPhen = canonical.PolyPhen
	}
	return fv
}

func canonicalTranscript(transcripts []model.Transcript) *model.Transcript {
	for i := range transcripts {
		if transcripts[i].MANE {
			return &transcripts[i]
		}
	}
	if len(transcripts) > 0 {
		return &transcripts[0]
	}
	return nil
}
