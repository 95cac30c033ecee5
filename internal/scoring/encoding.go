// Package scoring implements the ML scorer contract of SPEC_FULL.md §4.6: a
// pure function from the fixed nine-feature vector to a scalar in [0,1].
// Categorical encodings and numeric imputation constants are data, not
// code, so they are kept in a small YAML table loaded the way the
// teacher's own config.Load reads its YAML file — just a second,
// independently-versioned document instead of a second format.
package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Encoding holds the categorical-to-numeric mapping and the imputation
// constants used when a feature is nil. Per §4.6 these are fixed and
// documented, not learned at runtime.
type Encoding struct {
	ConsequenceWeights map[string]float64 `yaml:"consequence_weights"`
	ImpactWeights      map[string]float64 `yaml:"impact_weights"`
	LOFTEEWeights      map[string]float64 `yaml:"loftee_weights"`

	// Imputation constants for numeric features, applied only when the
	// underlying pointer is nil. The frequency defaults are non-zero: a
	// variant absent from gnomAD is closer to "rare" than to "zero
	// frequency observed". The built-in SpliceAI and GERP defaults are 0,
	// so a missing value for either scores the same as a reported 0.
	DefaultAlleleFrequency  float64 `yaml:"default_allele_frequency"`
	DefaultMaxPopFrequency  float64 `yaml:"default_max_pop_frequency"`
	DefaultSpliceAI         float64 `yaml:"default_spliceai"`
	DefaultGERP             float64 `yaml:"default_gerp"`
	DefaultPolyPhen         float64 `yaml:"default_polyphen"`
	DefaultCADD             float64 `yaml:"default_cadd"`
	UnknownCategoryWeight   float64 `yaml:"unknown_category_weight"`
}

// defaultEncoding is the built-in fallback table, used whenever no model
// path is configured but a caller still wants the fixed encodings (e.g.
// unit tests). Weights are loosely ordered by established deleteriousness
// rank within each category; they are not derived from a trained model.
func defaultEncoding() *Encoding {
	return &Encoding{
		ConsequenceWeights: map[string]float64{
			"transcript_ablation":        1.0,
			"splice_acceptor_variant":    0.95,
			"splice_donor_variant":       0.95,
			"stop_gained":                0.9,
			"frameshift_variant":         0.9,
			"stop_lost":                  0.75,
			"start_lost":                 0.75,
			"missense_variant":           0.6,
			"inframe_insertion":          0.5,
			"inframe_deletion":           0.5,
			"splice_region_variant":      0.4,
			"synonymous_variant":         0.1,
			"intron_variant":             0.05,
			"intergenic_variant":         0.01,
			"upstream_gene_variant":      0.02,
			"downstream_gene_variant":    0.02,
			"5_prime_UTR_variant":        0.08,
			"3_prime_UTR_variant":        0.08,
		},
		ImpactWeights: map[string]float64{
			"HIGH":     1.0,
			"MODERATE": 0.6,
			"LOW":      0.25,
			"MODIFIER": 0.05,
		},
		LOFTEEWeights: map[string]float64{
			"HC": 1.0,
			"LC": 0.4,
		},
		DefaultAlleleFrequency: 0.0001,
		DefaultMaxPopFrequency: 0.0001,
		DefaultSpliceAI:        0.0,
		DefaultGERP:            0.0,
		DefaultPolyPhen:        0.5,
		DefaultCADD:            15.0,
		UnknownCategoryWeight:  0.3,
	}
}

// LoadEncoding reads an encoding table from path, a YAML document whose
// keys match Encoding's tags. An empty path returns the built-in default
// table directly — it is not an error, since callers only reach here when
// scoring is already known to be enabled.
func LoadEncoding(path string) (*Encoding, error) {
	if path == "" {
		return defaultEncoding(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scoring: read encoding file: %w", err)
	}

	cfg := defaultEncoding()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("scoring: parse encoding file: %w", err)
	}
	return cfg, nil
}

func (e *Encoding) consequenceWeight(consequence string) float64 {
	if w, ok := e.ConsequenceWeights[consequence]; ok {
		return w
	}
	return e.UnknownCategoryWeight
}

func (e *Encoding) impactWeight(impact string) float64 {
	if w, ok := e.ImpactWeights[impact]; ok {
		return w
	}
	return e.UnknownCategoryWeight
}

func (e *Encoding) lofteeWeight(class *string) float64 {
	if class == nil {
		return e.UnknownCategoryWeight
	}
	if w, ok := e.LOFTEEWeights[*class]; ok {
		return w
	}
	return e.UnknownCategoryWeight
}
