package chunking

import (
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Result is the merged output of a chunked transform.
type Result struct {
	Text       string
	ChunkCount int
	// Degraded is set when at least one overlap seam could not be matched and
	// the lossy skip fallback was used. Operators can use it to spot chapters
	// whose seams deserve a manual look.
	Degraded bool
}

// minOverlapMatch caps the minimum normalized match length; shorter overlaps
// use their own length.
const minOverlapMatch = 20

// Reassemble merges ordered processed chunks back into one continuous text,
// removing the overlap region duplicated by the splitter. The transform may
// have reworded the overlapped text, so matching is best-effort: the longest
// case-insensitive, whitespace-normalized suffix of the assembled text that
// matches a prefix of the incoming chunk wins, with a Levenshtein tolerance
// pass behind it. When no confident match exists the overlap length is
// skipped heuristically from the chunk head, which may drop or duplicate a
// few words at the seam; Degraded reports that.
func Reassemble(chunks []Processed[string]) Result {
	if len(chunks) == 0 {
		return Result{}
	}
	if len(chunks) == 1 {
		return Result{Text: chunks[0].Output, ChunkCount: 1}
	}

	var assembled strings.Builder
	assembled.WriteString(chunks[0].Output)
	degraded := false

	for i := 1; i < len(chunks); i++ {
		chunk := chunks[i]
		prev := chunks[i-1]

		if !chunk.HasLeadingOverlap || chunk.OverlapLen <= 0 {
			appendPlain(&assembled, prev.Text, chunk.Text, chunk.Output)
			continue
		}

		text := assembled.String()
		cut, ok := matchOverlap(text, chunk.Output, chunk.OverlapLen)
		if ok {
			rest := string([]rune(chunk.Output)[cut:])
			if rest == "" {
				continue
			}
			// The transform may have trimmed the whitespace that followed the
			// overlap region; the normalized match then absorbs it into the
			// cut and the seam would fuse. Restore it the same way appendPlain
			// does: only when the source carried whitespace at the seam.
			if overlapSeamHadSpace(chunk) && needsSeparator(text, rest) {
				assembled.WriteString(" ")
			}
			assembled.WriteString(rest)
			continue
		}

		// Lossy fallback: drop roughly the overlap's worth of runes from the
		// chunk head, snapping forward to a word boundary.
		degraded = true
		rest := skipOverlapHeuristically(chunk.Output, chunk.OverlapLen)
		if rest == "" {
			continue
		}
		if needsSeparator(text, rest) {
			assembled.WriteString(" ")
		}
		assembled.WriteString(rest)
	}

	return Result{Text: assembled.String(), ChunkCount: len(chunks), Degraded: degraded}
}

// appendPlain joins a non-overlapping chunk. A separating space is inserted
// only when the source chunks carried whitespace at the seam that the
// transform dropped; with an identity transform the concatenation therefore
// reproduces the source byte-for-byte, forced mid-word cuts included.
func appendPlain(assembled *strings.Builder, prevSource, curSource, output string) {
	if output == "" {
		return
	}
	seamHadSpace := endsWithSpace(prevSource) || startsWithSpace(curSource)
	if seamHadSpace && needsSeparator(assembled.String(), output) {
		assembled.WriteString(" ")
	}
	assembled.WriteString(output)
}

// overlapSeamHadSpace reports whether the source text had whitespace where
// the overlap region ends inside the chunk. Forced mid-word cuts return
// false, keeping the exact round-trip property for identity transforms.
func overlapSeamHadSpace(chunk Processed[string]) bool {
	runes := []rune(chunk.Text)
	n := chunk.OverlapLen
	if n <= 0 || n >= len(runes) {
		return false
	}
	return unicode.IsSpace(runes[n]) || unicode.IsSpace(runes[n-1])
}

// matchOverlap looks for the longest prefix of chunk (in runes) whose
// normalized form matches a suffix of the assembled text, searching within a
// window proportional to the overlap length. Returns the prefix rune count
// to cut and whether the match is confident.
func matchOverlap(assembled, chunk string, overlapLen int) (int, bool) {
	minMatch := overlapLen
	if minMatch > minOverlapMatch {
		minMatch = minOverlapMatch
	}

	window := overlapLen * 2
	chunkRunes := []rune(chunk)
	maxCut := len(chunkRunes)
	if maxCut > window {
		maxCut = window
	}

	tail := tailRunes(assembled, window)
	normTail := normalizeSeam(tail)
	if len([]rune(normTail)) < minMatch {
		return 0, false
	}

	// Exact pass on normalized text, longest prefix first.
	for cut := maxCut; cut > 0; cut-- {
		normPrefix := normalizeSeam(string(chunkRunes[:cut]))
		if len([]rune(normPrefix)) < minMatch {
			break
		}
		if strings.HasSuffix(normTail, normPrefix) {
			return cut, true
		}
	}

	// Tolerance pass: accept near-matches (the LLM may have touched a word
	// or two inside the overlap). Allows one edit per ten runes.
	normTailRunes := []rune(normTail)
	for cut := maxCut; cut > 0; cut -= 4 {
		normPrefix := normalizeSeam(string(chunkRunes[:cut]))
		prefixRunes := []rune(normPrefix)
		if len(prefixRunes) < minMatch {
			break
		}
		if len(prefixRunes) > len(normTailRunes) {
			continue
		}
		suffix := string(normTailRunes[len(normTailRunes)-len(prefixRunes):])
		if fuzzy.LevenshteinDistance(suffix, normPrefix)*10 <= len(prefixRunes) {
			return cut, true
		}
	}

	return 0, false
}

// skipOverlapHeuristically drops about overlapLen runes from the head of
// text, then advances to the next word boundary so the seam does not start
// mid-word.
func skipOverlapHeuristically(text string, overlapLen int) string {
	runes := []rune(text)
	if overlapLen >= len(runes) {
		return ""
	}
	pos := overlapLen
	limit := pos + 20
	if limit > len(runes) {
		limit = len(runes)
	}
	for pos < limit && !unicode.IsSpace(runes[pos]) {
		pos++
	}
	return strings.TrimLeft(string(runes[pos:]), " \t")
}

// normalizeSeam lowercases and collapses whitespace runs so that seam
// comparison ignores case and spacing differences introduced by the
// transform.
func normalizeSeam(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func needsSeparator(left, right string) bool {
	return !endsWithSpace(left) && !startsWithSpace(right)
}

func endsWithSpace(s string) bool {
	runes := []rune(s)
	if len(runes) == 0 {
		return false
	}
	return unicode.IsSpace(runes[len(runes)-1])
}

func startsWithSpace(s string) bool {
	for _, r := range s {
		return unicode.IsSpace(r)
	}
	return false
}
