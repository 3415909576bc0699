package services

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ============================================================================
// NORMALIZATION
// ============================================================================

// NormalizeText folds a description for matching: accents removed, lower
// case, punctuation replaced by spaces, whitespace collapsed.
func NormalizeText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// ============================================================================
// SCORERS (0-100)
// ============================================================================

// Ratio is the Levenshtein similarity of two strings.
func Ratio(a, b string) float64 {
	return ratio(NormalizeText(a), NormalizeText(b))
}

// PartialRatio scores the best alignment of the shorter string inside the longer.
func PartialRatio(a, b string) float64 {
	return partialRatio(NormalizeText(a), NormalizeText(b))
}

// TokenSortRatio compares the strings after sorting their words.
func TokenSortRatio(a, b string) float64 {
	return tokenSortRatio(NormalizeText(a), NormalizeText(b), ratio)
}

// TokenSetRatio compares the shared words against each side's leftovers.
func TokenSetRatio(a, b string) float64 {
	return tokenSetRatio(NormalizeText(a), NormalizeText(b), ratio)
}

// WRatio picks the best of the scorers above, weighting partial scorers down
// as the length difference between the strings grows.
func WRatio(a, b string) float64 {
	return wRatio(NormalizeText(a), NormalizeText(b))
}

func ratio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	if a == b {
		return 100
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	d := levenshtein.ComputeDistance(a, b)
	return 100 * (1 - float64(d)/float64(longest))
}

func partialRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	short := string(ra)
	if len(ra) == len(rb) {
		return ratio(short, string(rb))
	}

	best := 0.0
	for i := 0; i+len(ra) <= len(rb); i++ {
		score := ratio(short, string(rb[i:i+len(ra)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) []string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return tokens
}

func tokenSortRatio(a, b string, scorer func(string, string) float64) float64 {
	return scorer(strings.Join(sortedTokens(a), " "), strings.Join(sortedTokens(b), " "))
}

func tokenSetRatio(a, b string, scorer func(string, string) float64) float64 {
	setA := map[string]bool{}
	for _, t := range strings.Fields(a) {
		setA[t] = true
	}
	setB := map[string]bool{}
	for _, t := range strings.Fields(b) {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	sect := strings.Join(common, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	best := scorer(combinedA, combinedB)
	if sect != "" {
		best = math.Max(best, scorer(sect, combinedA))
		best = math.Max(best, scorer(sect, combinedB))
	}
	return best
}

func wRatio(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}

	const unbaseScale = 0.95
	base := ratio(a, b)

	lenRatio := float64(la) / float64(lb)
	if lenRatio < 1 {
		lenRatio = 1 / lenRatio
	}

	if lenRatio < 1.5 {
		tsor := tokenSortRatio(a, b, ratio) * unbaseScale
		tser := tokenSetRatio(a, b, ratio) * unbaseScale
		return roundScore(math.Max(base, math.Max(tsor, tser)))
	}

	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	partial := partialRatio(a, b) * partialScale
	ptsor := tokenSortRatio(a, b, partialRatio) * unbaseScale * partialScale
	ptser := tokenSetRatio(a, b, partialRatio) * unbaseScale * partialScale
	return roundScore(math.Max(math.Max(base, partial), math.Max(ptsor, ptser)))
}

func roundScore(s float64) float64 {
	return math.Round(s*100) / 100
}

// ============================================================================
// EXTRACTION
// ============================================================================

// ScoredChoice is one scored candidate. Index points into the choices slice.
type ScoredChoice struct {
	Choice string
	Score  float64
	Index  int
}

// Extract scores every choice against query and returns the best limit of
// them, highest score first, earlier index first on ties.
func Extract(query string, choices []string, limit int) []ScoredChoice {
	normalized := make([]string, len(choices))
	for i, c := range choices {
		normalized[i] = NormalizeText(c)
	}
	return extractNormalized(NormalizeText(query), choices, normalized, limit)
}

// ExtractOne returns the best choice, or ok=false when there are no choices
// or the query is empty.
func ExtractOne(query string, choices []string) (ScoredChoice, bool) {
	best := Extract(query, choices, 1)
	if len(best) == 0 {
		return ScoredChoice{}, false
	}
	return best[0], true
}

func extractNormalized(query string, choices, normalized []string, limit int) []ScoredChoice {
	if query == "" || len(choices) == 0 || limit <= 0 {
		return nil
	}

	scored := make([]ScoredChoice, 0, len(choices))
	for i := range choices {
		s := wRatio(query, normalized[i])
		if s <= 0 {
			continue
		}
		scored = append(scored, ScoredChoice{Choice: choices[i], Score: s, Index: i})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Index < scored[j].Index
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
