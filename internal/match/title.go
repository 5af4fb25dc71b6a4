package match

import (
	"regexp"
	"strings"
)

const untitled = "Untitled document"

var (
	documentCode  = regexp.MustCompile(`^[A-Z]{2,4}\s+\d+`)
	metadataLabel = []string{"Audience:", "Type:", "Region:", "Category:", "Publication Date:", "Effective Date:"}
)

// Title picks the line of a record's text most likely to be its title.
func Title(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if isMetadata(line) {
			continue
		}
		if documentCode.MatchString(line) {
			return line
		}
		if len(line) > 30 {
			return line
		}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 15 && !strings.Contains(line, ":") {
			return line
		}
	}
	return untitled
}

func isMetadata(line string) bool {
	for _, label := range metadataLabel {
		if strings.Contains(line, label) {
			return true
		}
	}
	return false
}
