// Package textscore implements keyword-group scoring: normalize the
// complaint's combined title/description, strip stop words, and score
// against three weighted keyword groups.
package textscore

import (
	"regexp"
	"strings"
)

// Group identifies one of the three weighted keyword buckets.
type Group string

const (
	GroupHigh   Group = "high"
	GroupMedium Group = "medium"
	GroupNormal Group = "normal"
)

var weights = map[Group]int{
	GroupHigh:   3,
	GroupMedium: 2,
	GroupNormal: 1,
}

// keyword is a single phrase matched with word-boundary semantics after
// normalization; multi-word phrases match as contiguous normalized tokens.
type keyword struct {
	group Group
	term  string
	re    *regexp.Regexp
}

var keywords = compileKeywords([]struct {
	group Group
	terms []string
}{
	{GroupHigh, []string{
		"accident", "injury", "emergency", "collapsed", "fire",
		"exposed wire", "flooding main road",
	}},
	{GroupMedium, []string{
		"dangerous", "deep", "overflow", "blocking traffic", "severe",
		"heavy leakage",
	}},
	{GroupNormal, []string{
		"pothole", "garbage", "drainage", "leak", "broken", "damaged",
		"streetlight",
	}},
})

func compileKeywords(groups []struct {
	group Group
	terms []string
}) []keyword {
	out := make([]keyword, 0, 32)
	for _, g := range groups {
		for _, term := range g.terms {
			pattern := `\b` + regexp.QuoteMeta(term) + `\b`
			out = append(out, keyword{group: g.group, term: term, re: regexp.MustCompile(pattern)})
		}
	}
	return out
}

// stopWords is a fixed English stop-word list removed during normalization.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "of": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "with": {}, "is": {},
	"are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "its": {},
	"as": {}, "by": {}, "from": {}, "has": {}, "have": {}, "had": {},
	"not": {}, "no": {}, "so": {}, "very": {}, "near": {}, "there": {},
	"here": {}, "i": {}, "we": {}, "you": {}, "he": {}, "she": {}, "they": {},
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// normalize lowercases combined text, strips non-alphanumerics to single
// spaces, and removes stop words, preserving word order for multi-word
// keyword matching.
func normalize(text string) string {
	lower := strings.ToLower(text)
	spaced := nonAlnum.ReplaceAllString(lower, " ")
	fields := strings.Fields(spaced)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Result is the outcome of scoring a complaint's combined text.
type Result struct {
	BaseScore    float64
	HighCount    int
	MediumCount  int
	NormalCount  int
	MatchedHigh  []string
	MatchedMed   []string
	MatchedNorm  []string
}

// Score normalizes title+" "+description and matches it against the three
// keyword groups, returning the per-group counts, matched keywords, and the
// combined base score capped at 6.
func Score(title, description string) Result {
	normalized := normalize(title + " " + description)

	var res Result
	for _, kw := range keywords {
		if !kw.re.MatchString(normalized) {
			continue
		}
		switch kw.group {
		case GroupHigh:
			res.HighCount++
			res.MatchedHigh = append(res.MatchedHigh, kw.term)
		case GroupMedium:
			res.MediumCount++
			res.MatchedMed = append(res.MatchedMed, kw.term)
		case GroupNormal:
			res.NormalCount++
			res.MatchedNorm = append(res.MatchedNorm, kw.term)
		}
	}

	raw := weights[GroupHigh]*res.HighCount + weights[GroupMedium]*res.MediumCount + weights[GroupNormal]*res.NormalCount
	res.BaseScore = float64(raw)
	if res.BaseScore > 6 {
		res.BaseScore = 6
	}
	return res
}
