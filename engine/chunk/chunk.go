// Package chunk splits review text into semantically coherent sections.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/vrtlab/revmine/engine/domain"
)

const (
	// DefaultSection labels text preceding the first section header.
	DefaultSection = "opening"
	// MinChunkRunes is the minimum chunk length; shorter segments are noise.
	MinChunkRunes = 5
)

// Review sites mark sections with fullwidth or ASCII bracketed titles.
var sectionHeader = regexp.MustCompile(`【[^【】]+】|\[[^\[\]]+\]`)

// Split breaks fullText into labeled chunks. Text before the first header
// carries DefaultSection; each header labels the text that follows it until
// the next header. Pure function: identical input yields an identical chunk
// list, and empty input yields nil.
func Split(fullText string) []domain.Chunk {
	if strings.TrimSpace(fullText) == "" {
		return nil
	}

	var chunks []domain.Chunk
	section := DefaultSection
	pos := 0

	emit := func(raw string) {
		text := strings.TrimSpace(raw)
		if utf8.RuneCountInString(text) < MinChunkRunes {
			return
		}
		chunks = append(chunks, domain.Chunk{Section: section, Text: text})
	}

	for _, loc := range sectionHeader.FindAllStringIndex(fullText, -1) {
		emit(fullText[pos:loc[0]])
		section = fullText[loc[0]:loc[1]]
		pos = loc[1]
	}
	emit(fullText[pos:])

	return chunks
}
