package extraction

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// MaxInputChars bounds the text sent for extraction
const MaxInputChars = 60000

var (
	innerSpace  = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
	bulletGlyph = regexp.MustCompile(`^[•·▪‣◦]\s*`)
)

// CleanText normalizes pasted posting text: unified line endings, collapsed
// inner whitespace, "- " bullets and at most one blank line between blocks.
// Leading indentation of list items is kept.
func CleanText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = cleanLine(line)
	}
	content = blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(content)
}

func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	indent := len(line) - len(strings.TrimLeft(line, " \t"))

	trimmed = bulletGlyph.ReplaceAllString(trimmed, "- ")
	trimmed = innerSpace.ReplaceAllString(trimmed, " ")
	if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
		return strings.Repeat(" ", indent) + trimmed
	}
	return trimmed
}

// truncateInput cuts text to MaxInputChars runes
func truncateInput(text string) (string, bool) {
	runes := []rune(text)
	if len(runes) <= MaxInputChars {
		return text, false
	}
	return string(runes[:MaxInputChars]), true
}

// contentHash identifies an input in logs without logging its content
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
