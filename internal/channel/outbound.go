package channel

import (
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Split boundaries, strongest first. A chunk always ends right after its boundary
// so that joining the chunks reproduces the input exactly.
var (
	paragraphBreaks = []string{"\n\n"}
	lineBreaks      = []string{"\n"}
	sentenceBreaks  = []string{". ", "! ", "? ", "; ", "。", "！", "？"}
)

// ChunkText splits text into pieces of at most limit UTF-16 code units (see
// TextLength) without dropping or rewriting any character. It prefers paragraph breaks, then line breaks, then
// sentence ends, then whitespace, and only hard-cuts a run with no break.
func ChunkText(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || TextLength(text) <= limit {
		return []string{text}
	}
	chunks := make([]string, 0, TextLength(text)/limit+1)
	rest := text
	for TextLength(rest) > limit {
		cut := cutIndex(rest, limit)
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// cutIndex returns the byte offset where the first chunk of text ends.
func cutIndex(text string, limit int) int {
	window := text[:byteOffset(text, limit)]
	levels := []func(string) int{
		func(w string) int { return lastBoundary(w, paragraphBreaks) },
		func(w string) int { return lastBoundary(w, lineBreaks) },
		func(w string) int { return lastBoundary(w, sentenceBreaks) },
		lastSpace,
	}
	// A break in the back half of the window is taken at the strongest level;
	// otherwise any break beats a hard cut.
	minFill := len(window) / 2
	for _, level := range levels {
		if idx := level(window); idx >= minFill && idx > 0 {
			return idx
		}
	}
	for _, level := range levels {
		if idx := level(window); idx > 0 {
			return idx
		}
	}
	return len(window)
}

func lastBoundary(window string, seps []string) int {
	best := -1
	for _, sep := range seps {
		if idx := strings.LastIndex(window, sep); idx >= 0 && idx+len(sep) > best {
			best = idx + len(sep)
		}
	}
	return best
}

func lastSpace(window string) int {
	idx := strings.LastIndexFunc(window, unicode.IsSpace)
	if idx < 0 {
		return -1
	}
	_, size := utf8.DecodeRuneInString(window[idx:])
	return idx + size
}

// byteOffset returns the byte index just after the longest prefix of s that
// fits in n UTF-16 code units. The prefix always holds at least one rune so
// the chunker makes progress.
func byteOffset(s string, n int) int {
	units := 0
	for i, r := range s {
		units += runeUnits(r)
		if units > n && i > 0 {
			return i
		}
	}
	return len(s)
}

// TextLength measures text the way Telegram counts message length: in UTF-16
// code units, so characters outside the Basic Multilingual Plane count twice.
func TextLength(value string) int {
	units := 0
	for _, r := range value {
		units += runeUnits(r)
	}
	return units
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
