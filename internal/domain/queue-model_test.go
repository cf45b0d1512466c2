package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidQueueTransition(t *testing.T) {
	assert.True(t, ValidQueueTransition(QueueStatusWaiting, QueueStatusNotified))
	assert.True(t, ValidQueueTransition(QueueStatusWaiting, QueueStatusCancelled))
	assert.True(t, ValidQueueTransition(QueueStatusNotified, QueueStatusAccepted))
	assert.True(t, ValidQueueTransition(QueueStatusNotified, QueueStatusCancelled))

	// terminal statuses allow nothing
	assert.False(t, ValidQueueTransition(QueueStatusAccepted, QueueStatusCancelled))
	assert.False(t, ValidQueueTransition(QueueStatusCancelled, QueueStatusNotified))
	assert.False(t, ValidQueueTransition(QueueStatusWaiting, QueueStatusAccepted))
}

func TestStatusGlyph(t *testing.T) {
	cases := map[string]string{
		QueueStatusWaiting:   "⏳",
		QueueStatusNotified:  "🔔",
		QueueStatusAccepted:  "✅",
		QueueStatusCancelled: "❌",
	}
	for status, glyph := range cases {
		entry := &QueueEntry{Status: status}
		assert.Equal(t, glyph, entry.StatusGlyph())
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "@aziz", (&BotUser{Username: "aziz", FullName: "Aziz T"}).DisplayName())
	assert.Equal(t, "Aziz T", (&BotUser{FullName: "Aziz T"}).DisplayName())
	assert.Equal(t, "Haydovchi", (&BotUser{}).DisplayName())
}
