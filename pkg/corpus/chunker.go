package corpus

import (
	"regexp"
	"strings"
)

// Chunker splits extracted document text into sentence-based spans with
// a configurable overlap so retrieval does not lose context at boundaries.
type Chunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewChunker returns a Chunker. Non-positive sentencesPerChunk falls back
// to 5; negative overlap falls back to 0. Overlap must be smaller than the
// chunk size or chunking could not advance.
func NewChunker(sentencesPerChunk, overlapSentences int) *Chunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &Chunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Split returns the chunk texts for a document, in order. A trailing
// fragment without a sentence terminator, common in table-heavy financial
// documents, is kept as a final sentence. Empty or whitespace-only input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	var sentences []string
	end := 0
	for _, loc := range c.splitter.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if tail := strings.TrimSpace(text[end:]); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) == 0 {
		return nil
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[i:end], " "))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
	}
	return chunks
}
