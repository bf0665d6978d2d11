package deliverables

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aura-portal/backend/internal/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.PostStatus
		want     bool
	}{
		{models.PostDraft, models.PostInProgress, true},
		{models.PostDraft, models.PostClientReview, false},
		{models.PostInProgress, models.PostClientReview, true},
		{models.PostInternalReview, models.PostInProgress, true},
		{models.PostClientReview, models.PostApproved, true},
		{models.PostClientReview, models.PostRevision, true},
		{models.PostClientReview, models.PostDelivered, false},
		{models.PostRevision, models.PostClientReview, true},
		{models.PostRevision, models.PostDelivered, true},
		{models.PostApproved, models.PostDelivered, true},
		{models.PostApproved, models.PostRevision, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range models.PostStatuses {
		if !s.Terminal() {
			continue
		}
		for _, to := range models.PostStatuses {
			assert.False(t, CanTransition(s, to), "%s -> %s", s, to)
		}
		assert.Empty(t, AllowedTransitions(s))
	}
}

func TestEveryLiveStatusCanBeCancelled(t *testing.T) {
	for _, s := range models.PostStatuses {
		if s.Terminal() {
			continue
		}
		assert.True(t, CanTransition(s, models.PostCancelled), s)
	}
}

func TestIsBillable(t *testing.T) {
	assert.False(t, IsBillable(1, 2))
	assert.False(t, IsBillable(2, 2))
	assert.True(t, IsBillable(3, 2))
	assert.True(t, IsBillable(1, 0))
}
