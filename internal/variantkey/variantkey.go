// Package variantkey canonicalizes the (chrom, pos, ref, alt) tuple that
// identifies a single-nucleotide variant into the stable string key used
// everywhere else in the service: store, registry, VEP requests.
package variantkey

import (
	"fmt"
	"strconv"
	"strings"
)

// validBase reports whether b is one of the four canonical nucleotide
// letters. Variants with any other character are rejected as malformed.
func validBase(b string) bool {
	if len(b) != 1 {
		return false
	}
	for _, r := range strings.ToUpper(b) {
		switch r {
		case 'A', 'C', 'G', 'T':
		default:
			return false
		}
	}
	return true
}

// Normalize builds the canonical variant key "{chrom}:{pos}:{ref}>{alt}".
//
// Chromosome normalization is the documented choice for Open Question 1:
// a leading "chr" (any case) is stripped so "chr1" and "1" collide onto the
// same key. This function is the only place that decision is made; every
// caller downstream (store, registry, VEP client) must go through it.
func Normalize(chrom string, pos int, ref, alt string) (string, error) {
	chrom = strings.TrimSpace(chrom)
	if chrom == "" {
		return "", fmt.Errorf("variantkey: chromosome is required")
	}
	chrom = stripChrPrefix(chrom)

	if pos <= 0 {
		return "", fmt.Errorf("variantkey: position must be positive, got %d", pos)
	}

	ref = strings.ToUpper(strings.TrimSpace(ref))
	alt = strings.ToUpper(strings.TrimSpace(alt))

	if !validBase(ref) {
		return "", fmt.Errorf("variantkey: invalid reference allele %q", ref)
	}
	if !validBase(alt) {
		return "", fmt.Errorf("variantkey: invalid alternate allele %q", alt)
	}
	if ref == alt {
		return "", fmt.Errorf("variantkey: reference and alternate alleles are identical (%q)", ref)
	}

	return fmt.Sprintf("%s:%d:%s>%s", chrom, pos, ref, alt), nil
}

func stripChrPrefix(chrom string) string {
	if len(chrom) > 3 && strings.EqualFold(chrom[:3], "chr") {
		return chrom[3:]
	}
	return chrom
}

// Components is the parsed form of a canonical variant key, used by callers
// (such as the VEP client) that need to rebuild a per-variant request from
// a stored key.
type Components struct {
	Chrom string
	Pos   int
	Ref   string
	Alt   string
}

// Parse splits a canonical key back into its components. It is the inverse
// of Normalize for well-formed keys; malformed keys return an error rather
// than a best-effort guess.
func Parse(key string) (Components, error) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) != 3 {
		return Components{}, fmt.Errorf("variantkey: malformed key %q", key)
	}

	gt := strings.Index(parts[2], ">")
	if gt == -1 {
		return Components{}, fmt.Errorf("variantkey: malformed key %q", key)
	}

	pos, err := strconv.Atoi(parts[1])
	if err != nil {
		return Components{}, fmt.Errorf("variantkey: malformed position in key %q: %w", key, err)
	}

	return Components{
		Chrom: parts[0],
		Pos:   pos,
		Ref:   parts[2][:gt],
		Alt:   parts[2][gt+1:],
	}, nil
}
