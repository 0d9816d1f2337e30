package anchor

import (
	"strings"
	"unicode/utf8"
)

// searchQuote finds quote.Exact in text and returns rune offsets. When the
// exact text occurs more than once, the occurrence whose surroundings best
// match the prefix and suffix wins; remaining ties go to the occurrence
// nearest the recorded position, then to the earliest.
//
// An empty quote can only be placed by the position hint, clamped to the text.
func searchQuote(text string, quote TextQuoteSelector, hint *TextPositionSelector) (int, int, bool) {
	total := utf8.RuneCountInString(text)
	exactLen := utf8.RuneCountInString(quote.Exact)

	if exactLen == 0 {
		if hint == nil {
			return 0, 0, false
		}
		start := min(max(hint.Start, 0), total)
		return start, start, true
	}

	best, bestScore, bestDist := -1, -1, 0
	for from := 0; from <= len(text); {
		i := strings.Index(text[from:], quote.Exact)
		if i < 0 {
			break
		}
		byteStart := from + i
		start := utf8.RuneCountInString(text[:byteStart])
		byteEnd := byteStart + len(quote.Exact)

		score := commonSuffix(text[:byteStart], quote.Prefix) + commonPrefix(text[byteEnd:], quote.Suffix)
		dist := 0
		if hint != nil {
			dist = abs(start - hint.Start)
		}
		if score > bestScore || (score == bestScore && dist < bestDist) {
			best, bestScore, bestDist = start, score, dist
		}

		_, size := utf8.DecodeRuneInString(text[byteStart:])
		from = byteStart + size
	}
	if best < 0 {
		return 0, 0, false
	}

	// The recorded quote may run past the end of a shrunken document.
	end := min(best+exactLen, total)
	if string([]rune(text)[best:end]) != quote.Exact {
		return 0, 0, false
	}
	return best, end, true
}

// commonSuffix counts the runes shared at the end of a and b.
func commonSuffix(a, b string) int {
	n := 0
	for a != "" && b != "" {
		ra, sa := utf8.DecodeLastRuneInString(a)
		rb, sb := utf8.DecodeLastRuneInString(b)
		if ra != rb {
			break
		}
		a, b = a[:len(a)-sa], b[:len(b)-sb]
		n++
	}
	return n
}

// commonPrefix counts the runes shared at the start of a and b.
func commonPrefix(a, b string) int {
	n := 0
	for a != "" && b != "" {
		ra, sa := utf8.DecodeRuneInString(a)
		rb, sb := utf8.DecodeRuneInString(b)
		if ra != rb {
			break
		}
		a, b = a[sa:], b[sb:]
		n++
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
