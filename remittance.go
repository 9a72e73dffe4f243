package comdirect

import (
	"strings"
	"unicode"
)

// The remittanceInfo field packs up to 99 logical lines into one string,
// each line prefixed by a two-digit 1-based sequence marker ("01", "02", …)
// with no universal separator. Two physical layouts occur in practice:
//
//   - wide: total length > 100, markers nominally 37 characters apart
//   - narrow: total length <= 100, markers recognized only directly after
//     whitespace, which keeps digit pairs inside dates and reference numbers
//     from being misread as markers
//
// There is no machine-parseable schema for this field, so decoding is a
// heuristic that prefers never failing over fidelity on pathological input.
const (
	remittanceMarkerPitch     = 37
	remittanceMarkerTolerance = 15
	remittanceMaxLines        = 99
	remittanceWideThreshold   = 100
)

// ParseRemittanceInfo decodes a packed remittance string into its logical
// lines. It is total: it never fails, and input without a locatable leading
// marker comes back as a single trimmed line.
func ParseRemittanceInfo(remittance string) []string {
	text := []rune(strings.TrimSpace(remittance))
	if len(text) == 0 {
		return nil
	}

	first := findFirstMarker(text)
	if first < 0 {
		return []string{string(text)}
	}

	var positions []int

	if len(text) > remittanceWideThreshold {
		positions = wideMarkers(text, first)
	} else {
		positions = narrowMarkers(text, first)
	}

	var lines []string

	for i, pos := range positions {
		end := len(text)
		if i+1 < len(positions) {
			end = positions[i+1]
		}

		if line := strings.TrimSpace(string(text[pos+2 : end])); line != "" {
			lines = append(lines, line)
		}
	}

	if len(lines) == 0 {
		return []string{string(text)}
	}

	return lines
}

// findFirstMarker returns the position of the leading "01" marker: either at
// position 0 or the first occurrence directly after whitespace. -1 if none.
func findFirstMarker(text []rune) int {
	if len(text) >= 2 && text[0] == '0' && text[1] == '1' {
		return 0
	}

	for i := 0; i+2 < len(text); i++ {
		if unicode.IsSpace(text[i]) && text[i+1] == '0' && text[i+2] == '1' {
			return i + 1
		}
	}

	return -1
}

// wideMarkers walks the wide layout: each next marker is expected one pitch
// after the previous one and searched for within a bounded window. The walk
// stops at the first expected marker that cannot be found.
func wideMarkers(text []rune, first int) []int {
	positions := []int{first}
	expectedPos := first + remittanceMarkerPitch

	for marker := 2; marker <= remittanceMaxLines; marker++ {
		start := positions[len(positions)-1] + 20
		if low := expectedPos - remittanceMarkerTolerance; low > start {
			start = low
		}

		end := expectedPos + remittanceMarkerTolerance
		if end > len(text)-1 {
			end = len(text) - 1
		}

		found := -1

		for pos := start; pos < end; pos++ {
			if pos+1 < len(text) && markerValue(text, pos) == marker {
				found = pos
				break
			}
		}

		if found < 0 {
			break
		}

		positions = append(positions, found)
		expectedPos = found + remittanceMarkerPitch
	}

	return positions
}

// narrowMarkers walks the narrow layout: the next marker is searched for
// strictly forward from just past the previous one and accepted only when
// directly preceded by whitespace.
func narrowMarkers(text []rune, first int) []int {
	positions := []int{first}

	for marker := 2; marker <= remittanceMaxLines; marker++ {
		found := -1

		for pos := positions[len(positions)-1] + 2; pos < len(text)-1; pos++ {
			if (pos == 0 || unicode.IsSpace(text[pos-1])) && markerValue(text, pos) == marker {
				found = pos
				break
			}
		}

		if found < 0 {
			break
		}

		positions = append(positions, found)
	}

	return positions
}

// markerValue returns the two-digit value at pos, or -1 if the span is not
// two ASCII digits.
func markerValue(text []rune, pos int) int {
	if pos+1 >= len(text) {
		return -1
	}

	hi, lo := text[pos], text[pos+1]

	if hi < '0' || hi > '9' || lo < '0' || lo > '9' {
		return -1
	}

	return int(hi-'0')*10 + int(lo-'0')
}
