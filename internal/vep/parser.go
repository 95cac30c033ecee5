package vep

import (
	"fmt"
	"strings"

	"github.com/Jeffail/gabs"
	linq "github.com/ahmetb/go-linq"
	"github.com/mitchellh/mapstructure"

	"github.com/vareng/annotator/internal/annotation/model"
)

// FailureReason says why a requested key produced no annotation. The only
// reason defined is ReasonNoAnnotation; transcript or colocated elements
// that fail to decode are skipped rather than reported as a failure.
type FailureReason string

const (
	// ReasonNoAnnotation means the response had neither transcripts nor a
	// colocated-variant summary for this key.
	ReasonNoAnnotation FailureReason = "no_annotation_returned"
)

// Failure records why one requested key did not produce an annotation.
type Failure struct {
	VariantKey string
	Reason     FailureReason
}

// ParseResult is the outcome of parsing one batch response.
type ParseResult struct {
	Annotations map[string]model.Annotation
	Failures    []Failure
}

// transcriptBlock mirrors one element of a response block's
// transcript_consequences array. Fields the upstream service omits decode
// to their zero value; callers must treat pointer fields as the only
// trustworthy nullability signal.
type transcriptBlock struct {
	TranscriptID      string   `mapstructure:"transcript_id"`
	GeneSymbol        string   `mapstructure:"gene_symbol"`
	Impact            string   `mapstructure:"impact"`
	ConsequenceTerms  []string `mapstructure:"consequence_terms"`
	PolyphenScore     *float64 `mapstructure:"polyphen_score"`
	RevelScore        *float64 `mapstructure:"revel_score"`
	Hgvsc             *string  `mapstructure:"hgvsc"`
	Hgvsp             *string  `mapstructure:"hgvsp"`
	ManeSelect        *string  `mapstructure:"mane_select"`
	SpliceAIDelta     *float64 `mapstructure:"spliceai_delta"`
	Gerp              *float64 `mapstructure:"gerp"`
	LofteeClass       *string  `mapstructure:"loftee"`
}

func (t transcriptBlock) isMANE() bool {
	return t.ManeSelect != nil && *t.ManeSelect != ""
}

// colocatedVariant mirrors one element of a response block's
// colocated_variants array.
type colocatedVariant struct {
	Frequencies map[string]float64 `mapstructure:"frequencies"`
	ClinSig     []string           `mapstructure:"clin_sig"`
	OMIM        []string           `mapstructure:"omim"`
}

// ParseBatch turns one VEP batch response into per-variant annotations and
// failures. requested is the set of variant keys that were in the outbound
// batch; response blocks whose id is not in that set are silently ignored
// (§4.2 step 3), and requested keys absent from the response become
// individual no_annotation_returned failures.
func ParseBatch(raw []byte, requested []string) (ParseResult, error) {
	parsed, err := gabs.ParseJSON(raw)
	if err != nil {
		return ParseResult{}, fmt.Errorf("vep: parsing response: %w", err)
	}

	blocks, err := parsed.Children()
	if err != nil {
		return ParseResult{}, fmt.Errorf("vep: response is not a JSON array: %w", err)
	}

	wanted := make(map[string]bool, len(requested))
	for _, key := range requested {
		wanted[key] = true
	}

	result := ParseResult{Annotations: make(map[string]model.Annotation)}
	seen := make(map[string]bool, len(requested))

	for _, block := range blocks {
		key, ok := block.Path("id").Data().(string)
		if !ok || !wanted[key] {
			continue
		}
		seen[key] = true

		annotation, failed := parseBlock(key, block)
		if failed != nil {
			result.Failures = append(result.Failures, *failed)
			continue
		}
		result.Annotations[key] = *annotation
	}

	for _, key := range requested {
		if !seen[key] {
			result.Failures = append(result.Failures, Failure{VariantKey: key, Reason: ReasonNoAnnotation})
		}
	}

	return result, nil
}

func parseBlock(key string, block *gabs.Container) (*model.Annotation, *Failure) {
	var transcripts []transcriptBlock
	if children, err := block.Path("transcript_consequences").Children(); err == nil {
		for _, c := range children {
			var tb transcriptBlock
			if err := mapstructure.Decode(c.Data(), &tb); err == nil {
				transcripts = append(transcripts, tb)
			}
		}
	}

	var colocated []colocatedVariant
	if children, err := block.Path("colocated_variants").Children(); err == nil {
		for _, c := range children {
			var cv colocatedVariant
			if err := mapstructure.Decode(c.Data(), &cv); err == nil {
				colocated = append(colocated, cv)
			}
		}
	}

	if len(transcripts) == 0 && len(colocated) == 0 {
		return nil, &Failure{VariantKey: key, Reason: ReasonNoAnnotation}
	}

	mostSevere, _ := block.Path("most_severe_consequence").Data().(string)

	record := model.Record{
		VariantKey:       key,
		MostSevereConseq: mostSevere,
		CADDScore:        floatPtr(block.Path("cadd_phred").Data()),
	}
	record.Gene = selectGene(transcripts, mostSevere)
	record.AlleleFrequency, record.MaxPopAlleleFreq = selectFrequencies(colocated)
	record.OMIMID = joinDistinct(colocated, func(cv colocatedVariant) []string { return cv.OMIM })
	record.ClinicalSignificance = joinDistinct(colocated, func(cv colocatedVariant) []string { return cv.ClinSig })

	rows := make([]model.Transcript, 0, len(transcripts))
	for _, t := range transcripts {
		rows = append(rows, model.Transcript{
			VariantKey:      key,
			TranscriptID:    t.TranscriptID,
			PolyPhen:        t.PolyphenScore,
			ProteinNotation: t.Hgvsp,
			Revel:           t.RevelScore,
			SpliceAIDelta:   t.SpliceAIDelta,
			MANE:            t.isMANE(),
			LOFTEEClass:     t.LofteeClass,
			Impact:          t.Impact,
			GERP:            t.Gerp,
			CDNANotation:    t.Hgvsc,
			Consequences:    t.ConsequenceTerms,
		})
	}

	return &model.Annotation{Record: record, Transcripts: rows}, nil
}

// selectGene implements the priority order from §4.4: MANE transcript,
// then the transcript matching the response's own most-severe
// consequence, then the first listed transcript.
func selectGene(transcripts []transcriptBlock, mostSevere string) string {
	var mane []transcriptBlock
	linq.From(transcripts).WhereT(func(t transcriptBlock) bool {
		return t.isMANE()
	}).ToSlice(&mane)
	if len(mane) > 0 {
		return mane[0].GeneSymbol
	}

	var matching []transcriptBlock
	linq.From(transcripts).WhereT(func(t transcriptBlock) bool {
		for _, c := range t.ConsequenceTerms {
			if c == mostSevere {
				return true
			}
		}
		return false
	}).ToSlice(&matching)
	if len(matching) > 0 {
		return matching[0].GeneSymbol
	}

	if len(transcripts) > 0 {
		return transcripts[0].GeneSymbol
	}
	return ""
}

// selectFrequencies extracts gnomAD-exomes allele frequency and the
// maximum frequency across all reported populations, per §4.4.
func selectFrequencies(colocated []colocatedVariant) (allele *float64, maxPop *float64) {
	for _, cv := range colocated {
		if v, ok := cv.Frequencies["gnomad_exomes"]; ok && allele == nil {
			freq := v
			allele = &freq
		}
	}

	var all []float64
	linq.From(colocated).SelectManyT(func(cv colocatedVariant) linq.Query {
		vals := make([]float64, 0, len(cv.Frequencies))
		for _, v := range cv.Frequencies {
			vals = append(vals, v)
		}
		return linq.From(vals)
	}).ToSlice(&all)

	for _, v := range all {
		freq := v
		if maxPop == nil || freq > *maxPop {
			maxPop = &freq
		}
	}

	return allele, maxPop
}

// joinDistinct collects the distinct, non-empty values pick returns across
// colocated, joined with "|" — the stable delimiter named in §4.4 — or nil
// if nothing was found.
func joinDistinct(colocated []colocatedVariant, pick func(colocatedVariant) []string) *string {
	seen := make(map[string]bool)
	var ordered []string
	for _, cv := range colocated {
		for _, v := range pick(cv) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			ordered = append(ordered, v)
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	joined := strings.Join(ordered, "|")
	return &joined
}

func floatPtr(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}
