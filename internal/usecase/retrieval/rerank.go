package retrieval

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	domchunk "github.com/kailas-cloud/edurag/internal/domain/chunk"
)

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// minKeywordLen drops short tokens ("a", "in", "of") from the keyword set.
const minKeywordLen = 3

// keywords returns the distinct lowercase alphanumeric tokens of query, in order of appearance.
func keywords(query string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range tokenRe.FindAllString(strings.ToLower(query), -1) {
		if len(tok) < minKeywordLen {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// keywordScore counts keyword occurrences in the chunk topic, title and the first contentChars runes of content.
func keywordScore(c domchunk.Chunk, kws []string, contentChars int) int {
	if len(kws) == 0 {
		return 0
	}
	m := c.Metadata()
	haystack := strings.ToLower(m.Topic + "\n" + m.Title + "\n" + prefix(c.Content(), contentChars))

	score := 0
	for _, kw := range kws {
		score += strings.Count(haystack, kw)
	}
	return score
}

func prefix(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

type scored struct {
	r       domchunk.Retrieved
	overlap int
}

// rerank orders by similarity (missing counts as 0), then by keyword overlap, both descending.
func rerank(in []domchunk.Retrieved, kws []string, contentChars int) []scored {
	out := make([]scored, len(in))
	for i, r := range in {
		out[i] = scored{r: r, overlap: keywordScore(r.Chunk, kws, contentChars)}
	}
	slices.SortStableFunc(out, func(a, b scored) int {
		if c := cmp.Compare(b.r.SimilarityOrZero(), a.r.SimilarityOrZero()); c != 0 {
			return c
		}
		return cmp.Compare(b.overlap, a.overlap)
	})
	return out
}
