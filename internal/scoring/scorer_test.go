package scoring

import (
	"testing"

	"github.com/vareng/annotator/internal/annotation/model"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestScore_DegradedModeReturnsNil(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	score := s.Score(model.FeatureVector{Consequence: "missense_variant", Impact: "MODERATE"})
	if score != nil {
		t.Fatalf("expected nil score in degraded mode, got %v", *score)
	}
}

func TestScore_InRangeZeroToOne(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.enabled = true
	s.encoding = defaultEncoding()

	cases := []model.FeatureVector{
		{Consequence: "transcript_ablation", Impact: "HIGH", LOFTEEClass: strPtr("HC")},
		{Consequence: "synonymous_variant", Impact: "LOW", AlleleFrequency: floatPtr(0.3), MaxPopAlleleFreq: floatPtr(0.3)},
		{Consequence: "unknown_consequence", Impact: "UNKNOWN_IMPACT"},
	}
	for _, fv := range cases {
		score := s.Score(fv)
		if score == nil {
			t.Fatalf("expected a score for %+v", fv)
		}
		if *score < 0 || *score > 1 {
			t.Fatalf("score %v out of [0,1] range for %+v", *score, fv)
		}
	}
}

func TestScore_HighImpactRareVariantScoresHigherThanCommonBenign(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.enabled = true
	s.encoding = defaultEncoding()

	severe := s.Score(model.FeatureVector{
		Consequence:      "stop_gained",
		Impact:           "HIGH",
		LOFTEEClass:      strPtr("HC"),
		AlleleFrequency:  floatPtr(0.00001),
		MaxPopAlleleFreq: floatPtr(0.00001),
	})
	benign := s.Score(model.FeatureVector{
		Consequence:      "synonymous_variant",
		Impact:           "LOW",
		AlleleFrequency:  floatPtr(0.4),
		MaxPopAlleleFreq: floatPtr(0.4),
	})

	if *severe <= *benign {
		t.Fatalf("expected a rare stop-gained variant to score higher than a common synonymous one: severe=%v benign=%v", *severe, *benign)
	}
}

func TestFeatureVector_PrefersManeTranscript(t *testing.T) {
	record := model.Record{MostSevereConseq: "missense_variant"}
	transcripts := []model.Transcript{
		{Impact: "MODIFIER", GERP: floatPtr(1.0)},
		{Impact: "MODERATE", GERP: floatPtr(4.5), MANE: true},
	}

	fv := FeatureVector(record, transcripts)
	if fv.Impact != "MODERATE" {
		t.Fatalf("expected feature vector to use the MANE transcript's impact, got %s", fv.Impact)
	}
}

func TestFeatureVector_FallsBackToFirstTranscriptWhenNoMANE(t *testing.T) {
	record := model.Record{MostSevereConseq: "intron_variant"}
	transcripts := []model.Transcript{
		{Impact: "MODIFIER"},
		{Impact: "LOW"},
	}

	fv := FeatureVector(record, transcripts)
	if fv.Impact != "MODIFIER" {
		t.Fatalf("expected fallback to the first transcript, got %s", fv.Impact)
	}
}

func TestFeatureVector_NoTranscriptsLeavesTranscriptFieldsNil(t *testing.T) {
	record := model.Record{MostSevereConseq: "intergenic_variant"}
	fv := FeatureVector(record, nil)
	if fv.GERP != nil || fv.PolyPhen != nil || fv.LOFTEEClass != nil {
		t.Fatalf("expected transcript-sourced fields to stay nil with no transcripts, got %+v", fv)
	}
}
