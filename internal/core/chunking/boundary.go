package chunking

import "unicode"

// locateBoundary finds the best cut offset in (start, target], scanning
// backward at most window runes from target. Precedence is fixed: sentence
// end, then paragraph break, then newline, then any whitespace. When nothing
// matches, the exact target is returned (forced cut) together with ok=false
// so the caller can report the degenerate case.
//
// The returned offset is never <= start (an empty chunk) and never beyond
// len(runes). A cut offset c means the chunk ends at runes[c-1]; for a
// sentence end that is the whitespace following the terminator, so the next
// chunk starts clean.
func locateBoundary(runes []rune, start, target, window int) (int, bool) {
	if target > len(runes) {
		target = len(runes)
	}
	lowest := target - window
	if lowest <= start {
		lowest = start + 1
	}

	// Sentence end: terminator, optional closing quote, then whitespace.
	for pos := target; pos > lowest; pos-- {
		if !unicode.IsSpace(runes[pos-1]) {
			continue
		}
		p := pos - 2
		if p >= start && isClosingQuote(runes[p]) {
			p--
		}
		if p >= start && isSentenceEnd(runes[p]) {
			return pos, true
		}
	}

	// Paragraph break.
	for pos := target; pos > lowest; pos-- {
		if runes[pos-1] == '\n' && pos-2 >= start && runes[pos-2] == '\n' {
			return pos, true
		}
	}

	// Single newline.
	for pos := target; pos > lowest; pos-- {
		if runes[pos-1] == '\n' {
			return pos, true
		}
	}

	// Any whitespace.
	for pos := target; pos > lowest; pos-- {
		if unicode.IsSpace(runes[pos-1]) {
			return pos, true
		}
	}

	// Forced cut mid-word.
	return target, false
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosingQuote(r rune) bool {
	switch r {
	case '"', '\'', ')', '”', '’':
		return true
	}
	return false
}
