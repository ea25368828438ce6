package importer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/pfm-ledger/internal/domain/shared"
)

// Fingerprinter computes the fuzzy near-duplicate key for a transaction.
// The key collapses records from the same source, on the same calendar day,
// with the same rounded amount and the same descriptor prefix. It is a
// reporting signal only; the exact (source, external_ref) key is the one
// authoritative identity.
type Fingerprinter struct {
	prefixLength int
}

// NewFingerprinter creates a fingerprinter with the configured descriptor
// prefix length.
func NewFingerprinter(prefixLength int) *Fingerprinter {
	return &Fingerprinter{prefixLength: prefixLength}
}

// Fingerprint derives the fuzzy key for a normalized record
func (f *Fingerprinter) Fingerprint(rec *NormalizedRecord) string {
	day := rec.OccurredAt.UTC().Format("2006-01-02")
	amount := rec.Amount.Round(2).StringFixed(2)
	prefix := descriptorPrefix(rec.Descriptor, f.prefixLength)
	return fmt.Sprintf("%s|%s|%s|%s", rec.Source, day, amount, prefix)
}

// descriptorPrefix case-folds the descriptor, collapses runs of whitespace
// to a single space and truncates to n runes.
func descriptorPrefix(descriptor string, n int) string {
	folded := strings.ToLower(strings.TrimSpace(descriptor))
	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteRune(' ')
		}
		space = false
		b.WriteRune(r)
	}

	runes := []rune(b.String())
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// NaturalKey reports the exact identity of a record when it carries one
func NaturalKey(rec *NormalizedRecord) (source shared.SourceKind, ref string, ok bool) {
	if rec.ExternalRef == nil {
		return "", "", false
	}
	return rec.Source, *rec.ExternalRef, true
}
