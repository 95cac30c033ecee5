package variantkey

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		chrom   string
		pos     int
		ref     string
		alt     string
		want    string
		wantErr bool
	}{
		{"bare chromosome", "1", 12345, "A", "G", "1:12345:A>G", false},
		{"chr-prefixed collides with bare", "chr1", 12345, "A", "G", "1:12345:A>G", false},
		{"uppercase CHR prefix", "CHR1", 12345, "a", "g", "1:12345:A>G", false},
		{"mitochondrial", "MT", 1, "A", "C", "MT:1:A>C", false},
		{"zero position rejected", "1", 0, "A", "G", "", true},
		{"negative position rejected", "1", -5, "A", "G", "", true},
		{"empty chromosome rejected", "", 1, "A", "G", "", true},
		{"invalid ref base rejected", "1", 1, "N", "G", "", true},
		{"invalid alt base rejected", "X", 1, "A", "N", "", true},
		{"identical ref and alt rejected", "1", 1, "A", "A", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.chrom, tt.pos, tt.ref, tt.alt)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	key, err := Normalize("chr1", 12345, "A", "G")
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}

	got, err := Parse(key)
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	want := Components{Chrom: "1", Pos: 12345, Ref: "A", Alt: "G"}
	if got != want {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_Malformed(t *testing.T) {
	for _, key := range []string{"", "1", "1:2", "1:2:AG", "1:notanumber:A>G"} {
		if _, err := Parse(key); err == nil {
			t.Errorf("Parse(%q) expected error, got nil", key)
		}
	}
}
