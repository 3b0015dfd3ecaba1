package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkerSplit(t *testing.T) {
	t.Run("should split into overlapping sentence chunks", func(t *testing.T) {
		c := NewChunker(2, 1)
		text := "One. Two. Three. Four."

		chunks := c.Split(text)

		assert.Equal(t, []string{"One. Two.", "Two. Three.", "Three. Four."}, chunks)
	})

	t.Run("should return whole text when no sentence terminator", func(t *testing.T) {
		c := NewChunker(5, 1)

		chunks := c.Split("revenue table without punctuation")

		assert.Equal(t, []string{"revenue table without punctuation"}, chunks)
	})

	t.Run("should keep a trailing fragment without terminator", func(t *testing.T) {
		c := NewChunker(2, 0)

		chunks := c.Split("One. Two. Total Assets 9,000")

		assert.Equal(t, []string{"One. Two.", "Total Assets 9,000"}, chunks)
	})

	t.Run("should return nothing for blank input", func(t *testing.T) {
		c := NewChunker(5, 1)

		assert.Nil(t, c.Split("   \n\t  "))
		assert.Nil(t, c.Split(""))
	})

	t.Run("should clamp overlap below chunk size", func(t *testing.T) {
		// overlap == size would never advance
		c := NewChunker(2, 5)
		text := strings.Repeat("Word. ", 10)

		chunks := c.Split(text)

		assert.NotEmpty(t, chunks)
		for _, ch := range chunks {
			assert.NotEmpty(t, ch)
		}
	})

	t.Run("should apply defaults for invalid arguments", func(t *testing.T) {
		c := NewChunker(0, -3)
		text := "A. B. C. D. E. F. G."

		chunks := c.Split(text)

		assert.Equal(t, "A. B. C. D. E.", chunks[0])
	})
}
