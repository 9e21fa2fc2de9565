package knowledge

import "strings"

// Advisory thresholds for content warnings.
const (
	minExpectedLines = 10
	shortContentLen  = 500
)

// codeKeywords are terms suggesting the record discusses code.
var codeKeywords = []string{
	"function", "def ", "class ", "const ", "import ", "implement",
}

// Validate inspects resolved content for signs of incompleteness and
// returns advisory warnings. It never fails and never blocks a save;
// warnings travel back to the caller alongside the new record id.
func Validate(content string) []string {
	var warnings []string

	if strings.Count(content, "\n")+1 < minExpectedLines {
		warnings = append(warnings,
			"content seems very short for a conversation record - consider including the full exchange")
	}

	if mentionsCode(content) && !strings.Contains(content, "```") {
		warnings = append(warnings,
			"content mentions code but has no code blocks - code snippets may have been lost")
	}

	if hasEllipsis(content) && len(content) < shortContentLen {
		warnings = append(warnings,
			"content appears truncated - consider saving from an export file instead")
	}

	return warnings
}

func mentionsCode(content string) bool {
	lower := strings.ToLower(content)
	for _, kw := range codeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasEllipsis(content string) bool {
	return strings.Contains(content, "...") || strings.Contains(content, "…")
}
