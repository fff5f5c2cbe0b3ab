package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIDIsWithin53Bits(t *testing.T) {
	const max53 = uint64(1<<53) - 1
	for i := 0; i < 1000; i++ {
		id := PublicID()
		assert.LessOrEqual(t, id, max53)
	}
}

func TestPublicIDIsUnlikelyToCollide(t *testing.T) {
	seen := make(map[uint64]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := PublicID()
		assert.False(t, seen[id], "unexpected collision at iteration %d", i)
		seen[id] = true
	}
}

func TestTaskIDStringIsNonEmptyAndIDsDiffer(t *testing.T) {
	id := NewTaskID()
	s := id.String()
	assert.NotEmpty(t, s)

	other := NewTaskID()
	assert.NotEqual(t, id, other)
}

func TestNewMessageIDFormat(t *testing.T) {
	id := NewMessageID("rustmailer.example")
	assert.Contains(t, id, "@rustmailer.example")
}

func TestNewAccessTokenIsHex64(t *testing.T) {
	tok := NewAccessToken()
	assert.Len(t, tok, 64)
	for _, r := range tok {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}

	other := NewAccessToken()
	assert.NotEqual(t, tok, other)
}
