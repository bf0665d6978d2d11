package notifications

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/dbtest"
	"github.com/aura-portal/backend/internal/models"
)

func TestRepository_BroadcastReadStateIsPerReader(t *testing.T) {
	pool := dbtest.Pool(t)
	repo := NewRepository(pool)
	ctx := context.Background()
	clientID := dbtest.Client(t, pool)

	kim, sam, staff := uuid.New(), uuid.New(), uuid.New()
	kimView := Audience{Reader: kim, Recipient: &kim}
	samView := Audience{Reader: sam, Recipient: &sam}
	staffView := Audience{Reader: staff}

	broadcast := &models.Notification{ClientID: clientID, Kind: models.NotifyInvoiceIssued, Title: "Invoice issued"}
	require.NoError(t, repo.Insert(ctx, broadcast))
	direct := &models.Notification{ClientID: clientID, RecipientID: &sam, Kind: models.NotifyInvoiceIssued, Title: "For Sam"}
	require.NoError(t, repo.Insert(ctx, direct))

	count := func(aud Audience) int {
		n, err := repo.UnreadNotifications(ctx, clientID, aud)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, 1, count(kimView))
	assert.Equal(t, 2, count(samView))
	assert.Equal(t, 2, count(staffView))

	require.NoError(t, repo.MarkRead(ctx, broadcast.ID, kim))
	require.NoError(t, repo.MarkRead(ctx, broadcast.ID, kim))
	assert.Equal(t, 0, count(kimView))
	assert.Equal(t, 2, count(samView), "another member's read does not clear the broadcast")
	assert.Equal(t, 2, count(staffView))

	got, err := repo.Get(ctx, broadcast.ID, kim)
	require.NoError(t, err)
	assert.NotNil(t, got.ReadAt)
	got, err = repo.Get(ctx, broadcast.ID, sam)
	require.NoError(t, err)
	assert.Nil(t, got.ReadAt)

	n, err := repo.MarkAllRead(ctx, clientID, samView)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 0, count(samView))

	unread, err := repo.List(ctx, clientID, staffView, true, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 2)
}
