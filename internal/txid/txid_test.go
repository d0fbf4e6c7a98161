package txid

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	g := NewGenerator()

	id := g.Generate("QR")

	pattern := regexp.MustCompile(`^QR\d{13}[A-Za-z0-9]{6}$`)
	assert.Regexp(t, pattern, id)
}

func TestGeneratePrefixes(t *testing.T) {
	g := NewGenerator()

	assert.True(t, len(g.Generate("UPI")) > len("UPI"))
	assert.Equal(t, "UPI", g.Generate("UPI")[:3])
	assert.Equal(t, "QR", g.Generate("QR")[:2])
}

func TestGenerateUniqueness(t *testing.T) {
	g := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Generate("QR")
		require.False(t, seen[id], "duplicate id generated: %s", id)
		seen[id] = true
	}
}

func TestGenerateEmbedsTimestamp(t *testing.T) {
	g := NewGenerator()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	id := g.Generate("QR")

	assert.Contains(t, id, "1717243200000")
}
