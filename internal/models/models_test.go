package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePostStatus(t *testing.T) {
	for _, st := range PostStatuses {
		got, ok := ParsePostStatus(string(st))
		assert.True(t, ok)
		assert.Equal(t, st, got)
	}
	_, ok := ParsePostStatus("archived")
	assert.False(t, ok)
}

func TestTerminal(t *testing.T) {
	assert.True(t, PostDelivered.Terminal())
	assert.True(t, PostCancelled.Terminal())
	assert.False(t, PostApproved.Terminal())
	assert.False(t, PostRevision.Terminal())
}

func TestParseReactionType(t *testing.T) {
	_, ok := ParseReactionType("fire")
	assert.True(t, ok)
	_, ok = ParseReactionType("thumbsdown")
	assert.False(t, ok)
}

func TestPackageItemRemaining(t *testing.T) {
	assert.Equal(t, 4, PackageItem{Allocated: 10, Used: 6}.Remaining())
	assert.Equal(t, 0, PackageItem{Allocated: 3, Used: 5}.Remaining())
}

func TestActorTypeFor(t *testing.T) {
	assert.Equal(t, ActorAgency, ActorTypeFor(RoleStaff))
	assert.Equal(t, ActorClient, ActorTypeFor(RoleClient))
	assert.Equal(t, ActorSubUser, ActorTypeFor(RoleSubUser))
}
