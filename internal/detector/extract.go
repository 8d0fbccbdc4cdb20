package detector

import (
	"regexp"
	"strings"

	"github.com/arbovm/levenshtein"
)

const canonicalLabel = "SERVICETAG"

var (
	inlineTagPattern  = regexp.MustCompile(`(?:ST|SVC TAG|SERVICE TAG|S/N)[:\s]*([a-zA-Z0-9]{7})`)
	labelLinePattern  = regexp.MustCompile(`(?i)SERVICE\s*TAG\s*:?$`)
	tagLinePattern    = regexp.MustCompile(`^[A-Z0-9]{7}$`)
	looseTokenPattern = regexp.MustCompile(`\b[A-Z0-9]{7}\b`)
	labelNoisePattern = regexp.MustCompile(`[^A-Z0-9]+`)

	// label words that happen to be 7 characters long
	labelWordStoplist = map[string]bool{"SERVICE": true}
)

// Extractor finds a service tag in OCR output lines
type Extractor struct {
	fuzzyDistance int
}

func NewExtractor(fuzzyDistance int) *Extractor {
	if fuzzyDistance < 0 {
		fuzzyDistance = 0
	}
	return &Extractor{fuzzyDistance: fuzzyDistance}
}

// Extract tries, in order: a labelled tag on the same line, a label line
// followed by a 7 character line, and finally any 7 character token.
func (e *Extractor) Extract(lines []string) (string, bool) {
	if len(lines) == 0 {
		return "", false
	}

	if m := inlineTagPattern.FindStringSubmatch(strings.Join(lines, " ")); m != nil {
		return m[1], true
	}

	upper := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.ToUpper(strings.TrimSpace(line)); line != "" {
			upper = append(upper, line)
		}
	}

	for i := 0; i < len(upper)-1; i++ {
		if e.isLabel(upper[i]) && tagLinePattern.MatchString(upper[i+1]) {
			return upper[i+1], true
		}
	}

	for _, line := range upper {
		for _, token := range looseTokenPattern.FindAllString(line, -1) {
			if !labelWordStoplist[token] {
				return token, true
			}
		}
	}

	return "", false
}

// isLabel accepts "SERVICE TAG" and, within the configured edit distance,
// OCR misreads such as "SERV1CE TAG:".
func (e *Extractor) isLabel(line string) bool {
	if labelLinePattern.MatchString(line) {
		return true
	}
	if e.fuzzyDistance == 0 {
		return false
	}
	compact := labelNoisePattern.ReplaceAllString(line, "")
	if compact == "" {
		return false
	}
	return levenshtein.Distance(compact, canonicalLabel) <= e.fuzzyDistance
}

// SplitLines turns raw OCR text into trimmed non-empty lines
func SplitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
