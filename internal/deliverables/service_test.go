package deliverables

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
)

type fixture struct {
	svc      *Service
	store    *memStore
	usage    *fakeUsage
	files    *fakeFiles
	notifier *fakeNotifier
	feed     *fakeFeed
	tenant   uuid.UUID
	clientID uuid.UUID
	staff    *auth.Session
	owner    *auth.Session
}

func newFixture(t *testing.T, maxRevisions int) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		usage:    &fakeUsage{allocated: map[string]int{"graphic": 1}, used: map[string]int{}},
		files:    &fakeFiles{},
		notifier: &fakeNotifier{},
		feed:     &fakeFeed{},
		tenant:   uuid.New(),
		clientID: uuid.New(),
	}
	f.staff = &auth.Session{UserID: uuid.New(), TenantID: f.tenant, Role: models.RoleStaff, Name: "Dana"}
	f.owner = &auth.Session{UserID: uuid.New(), TenantID: f.tenant, Role: models.RoleClient, ClientID: &f.clientID, Name: "Ola"}
	f.svc = NewService(Deps{
		Store:    f.store,
		Usage:    f.usage,
		Policy:   fixedPolicy(maxRevisions),
		Files:    f.files,
		Notifier: f.notifier,
		Feed:     f.feed,
	})
	return f
}

func (f *fixture) post(status models.PostStatus) *models.Post {
	return f.store.put(models.Post{
		TenantID: f.tenant, ClientID: f.clientID, Title: "Launch banner",
		Status: status, Priority: models.PriorityMedium, CreatedByType: models.ActorAgency,
	})
}

func TestCreateStartsInDraft(t *testing.T) {
	f := newFixture(t, 2)
	p, err := f.svc.Create(context.Background(), f.staff, CreatePostParams{ClientID: f.clientID, Title: " Banner "})
	require.NoError(t, err)
	assert.Equal(t, models.PostDraft, p.Status)
	assert.Equal(t, models.PriorityMedium, p.Priority)
	assert.Equal(t, "Banner", p.Title)
	assert.Equal(t, models.ActorAgency, p.CreatedByType)
	assert.Contains(t, f.feed.tables, realtime.TableDeliverablePosts)
}

func TestClientRequestsConsumePackage(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	params := CreatePostParams{ClientID: f.clientID, Title: "Story", DeliverableType: "graphic"}

	p, err := f.svc.Create(ctx, f.owner, params)
	require.NoError(t, err)
	assert.Equal(t, models.ActorClient, p.CreatedByType)
	assert.Equal(t, 1, f.usage.used["graphic"])

	_, err = f.svc.Create(ctx, f.owner, params)
	assert.ErrorIs(t, err, ErrPackageExhausted)

	// unlisted types are not metered
	_, err = f.svc.Create(ctx, f.owner, CreatePostParams{ClientID: f.clientID, Title: "Reel", DeliverableType: "video"})
	require.NoError(t, err)

	// agency-created work never consumes
	_, err = f.svc.Create(ctx, f.staff, params)
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, f.staff, p.ID, models.PostCancelled, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, f.usage.used["graphic"])
}

func TestCreateRejectsForeignClient(t *testing.T) {
	f := newFixture(t, 2)
	_, err := f.svc.Create(context.Background(), f.owner, CreatePostParams{ClientID: uuid.New(), Title: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionFollowsTable(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostDraft)

	_, err := f.svc.Transition(ctx, f.staff, p.ID, models.PostClientReview, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	for _, to := range []models.PostStatus{models.PostInProgress, models.PostInternalReview, models.PostClientReview} {
		p, err = f.svc.Transition(ctx, f.staff, p.ID, to, 0)
		require.NoError(t, err)
		assert.Equal(t, to, p.Status)
	}
	assert.Equal(t, []string{models.NotifyReviewRequested}, f.notifier.kinds)

	// review decisions go through Approve and RequestRevision
	_, err = f.svc.Transition(ctx, f.staff, p.ID, models.PostApproved, 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, f.staff, p.ID, "shipped", 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTerminalPostsRejectEverything(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	for _, status := range []models.PostStatus{models.PostDelivered, models.PostCancelled} {
		p := f.post(status)
		_, err := f.svc.Transition(ctx, f.staff, p.ID, models.PostInProgress, 0)
		assert.ErrorIs(t, err, ErrTerminalState)
		_, err = f.svc.Approve(ctx, f.owner, p.ID, "", 0)
		assert.ErrorIs(t, err, ErrTerminalState)
		_, err = f.svc.RequestRevision(ctx, f.owner, p.ID, "fix", 0)
		assert.ErrorIs(t, err, ErrTerminalState)
		_, err = f.svc.UploadFile(ctx, f.staff, p.ID, FileUpload{Filename: "a.png", Body: strings.NewReader("x")}, 0)
		assert.ErrorIs(t, err, ErrTerminalState)
	}
	assert.Empty(t, f.files.put)
}

func TestApprove(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, f.owner, f.post(models.PostInProgress).ID, "", 0)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	p := f.post(models.PostClientReview)
	approved, err := f.svc.Approve(ctx, f.owner, p.ID, "looks great", 0)
	require.NoError(t, err)
	assert.Equal(t, models.PostApproved, approved.Status)

	detail, err := f.svc.Detail(ctx, f.owner, p.ID)
	require.NoError(t, err)
	require.Len(t, detail.History, 1)
	assert.Equal(t, models.ApprovalActionApproved, detail.History[0].Action)
	assert.Equal(t, models.ActorClient, detail.History[0].ActorType)
	assert.Contains(t, f.notifier.kinds, models.NotifyPostApproved)
}

func TestRequestRevisionCountsRoundsAndBilling(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostClientReview)

	_, err := f.svc.RequestRevision(ctx, f.owner, p.ID, "   ", 0)
	assert.ErrorIs(t, err, ErrFeedbackRequired)

	for round := 1; round <= 4; round++ {
		res, err := f.svc.RequestRevision(ctx, f.owner, p.ID, "make the logo bigger", 0)
		require.NoError(t, err, "round %d", round)
		assert.Equal(t, round, res.RevisionCount)
		assert.Equal(t, 2, res.MaxRevisions)
		assert.Equal(t, round > 2, res.IsBillable, "round %d", round)
		assert.Equal(t, models.PostRevision, res.Post.Status)
		assert.True(t, res.Comment.IsRevisionRequest)

		_, err = f.svc.Transition(ctx, f.staff, p.ID, models.PostClientReview, 0)
		require.NoError(t, err)
	}

	detail, err := f.svc.Detail(ctx, f.staff, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, detail.Post.RevisionCount)
	assert.Len(t, detail.Comments, 4)
	require.Len(t, detail.History, 4)
	assert.Equal(t, 3, detail.History[2].RevisionNumber)
	assert.True(t, detail.History[2].IsBillable)
	assert.False(t, detail.History[1].IsBillable)
}

func TestStaleLockVersionConflicts(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostClientReview)

	_, err := f.svc.Approve(ctx, f.owner, p.ID, "", p.LockVersion)
	require.NoError(t, err)

	p2 := f.post(models.PostClientReview)
	_, err = f.svc.RequestRevision(ctx, f.owner, p2.ID, "again", p2.LockVersion+5)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReactToggles(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostDelivered)

	res, err := f.svc.React(ctx, f.owner, p.ID, "heart")
	require.NoError(t, err)
	assert.True(t, res.Active)

	res, err = f.svc.React(ctx, f.staff, p.ID, "heart")
	require.NoError(t, err)
	assert.True(t, res.Active)

	res, err = f.svc.React(ctx, f.owner, p.ID, "heart")
	require.NoError(t, err)
	assert.False(t, res.Active)

	reactions, err := f.store.Reactions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, f.staff.UserID, reactions[0].ActorID)

	_, err = f.svc.React(ctx, f.owner, p.ID, "thumbsdown")
	assert.ErrorIs(t, err, ErrInvalidReaction)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostInProgress)

	_, err := f.svc.AddComment(ctx, f.staff, p.ID, " ", false)
	assert.ErrorIs(t, err, ErrEmptyComment)

	c, err := f.svc.AddComment(ctx, f.staff, p.ID, "first draft attached", false)
	require.NoError(t, err)
	assert.False(t, c.IsRevisionRequest)
	assert.Contains(t, f.notifier.kinds, models.NotifyNewComment)

	got, err := f.svc.Get(ctx, f.staff, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostInProgress, got.Status)

	// a revision-request comment follows the revision rules
	_, err = f.svc.AddComment(ctx, f.owner, p.ID, "change it", true)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	review := f.post(models.PostClientReview)
	c, err = f.svc.AddComment(ctx, f.owner, review.ID, "change it", true)
	require.NoError(t, err)
	assert.True(t, c.IsRevisionRequest)
	got, err = f.svc.Get(ctx, f.owner, review.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostRevision, got.Status)
	assert.Equal(t, 1, got.RevisionCount)
}

func TestUploadFileNumbersVersions(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostInProgress)

	for want := 1; want <= 3; want++ {
		v, err := f.svc.UploadFile(ctx, f.staff, p.ID, FileUpload{Filename: "hero.png", Size: 1, Body: strings.NewReader("x")}, 0)
		require.NoError(t, err)
		assert.Equal(t, want, v.VersionNumber)
		assert.Equal(t, "image/png", v.ContentType)
	}

	_, err := f.svc.UploadFile(ctx, f.staff, p.ID, FileUpload{Filename: "hero.png", Body: strings.NewReader("x")}, 2)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	v, err := f.svc.UploadFile(ctx, f.staff, p.ID, FileUpload{Filename: "hero.png", Body: strings.NewReader("x")}, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, v.VersionNumber)

	got, err := f.svc.Get(ctx, f.staff, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostInProgress, got.Status)
	assert.Equal(t, 4, got.VersionCount)

	url, err := f.svc.DownloadURL(ctx, f.owner, p.ID, 2)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://signed.example/"))

	_, err = f.svc.DownloadURL(ctx, f.owner, p.ID, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOtherClientsPostsAreHidden(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	p := f.post(models.PostClientReview)
	otherClient := uuid.New()
	stranger := &auth.Session{UserID: uuid.New(), TenantID: f.tenant, Role: models.RoleClient, ClientID: &otherClient}

	_, err := f.svc.Get(ctx, stranger, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Approve(ctx, stranger, p.ID, "", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.List(ctx, stranger, f.clientID, ListFilter{})
	assert.ErrorIs(t, err, ErrNotFound)

	otherTenant := &auth.Session{UserID: uuid.New(), TenantID: uuid.New(), Role: models.RoleAdmin}
	_, err = f.svc.Get(ctx, otherTenant, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	f.post(models.PostClientReview)
	f.post(models.PostDraft)

	all, err := f.svc.List(ctx, f.owner, f.clientID, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.svc.List(ctx, f.owner, f.clientID, ListFilter{Status: models.PostClientReview})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
