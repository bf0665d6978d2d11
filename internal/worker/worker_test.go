package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-portal/backend/config"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/queue"
)

type fakeSender struct {
	sent []Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeLogs struct {
	created []models.EmailLog
	status  map[uuid.UUID]string
	reason  map[uuid.UUID]string
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{status: map[uuid.UUID]string{}, reason: map[uuid.UUID]string{}}
}

func (f *fakeLogs) Create(_ context.Context, el *models.EmailLog) error {
	el.ID = uuid.New()
	el.Status = models.EmailLogStatusPending
	f.created = append(f.created, *el)
	f.status[el.ID] = el.Status
	return nil
}

func (f *fakeLogs) MarkSent(_ context.Context, id uuid.UUID, _ time.Time) error {
	f.status[id] = models.EmailLogStatusSent
	return nil
}

func (f *fakeLogs) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	f.status[id] = models.EmailLogStatusFailed
	f.reason[id] = reason
	return nil
}

func invitePayload(resend bool) queue.InviteEmailPayload {
	return queue.InviteEmailPayload{
		SubUserID:      uuid.New(),
		ClientID:       uuid.New(),
		ClientName:     "Acme",
		RecipientEmail: "jo@acme.test",
		RecipientName:  "Jo",
		Role:           "approver",
		InviteURL:      "http://portal.test/invite/abc",
		Resend:         resend,
	}
}

func TestInviteMessage(t *testing.T) {
	msg, err := InviteMessage(invitePayload(false))
	require.NoError(t, err)
	assert.Equal(t, "jo@acme.test", msg.To)
	assert.Equal(t, "You're invited to the Acme client portal", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Jo,")
	assert.Contains(t, msg.Body, "as an approver.")
	assert.Contains(t, msg.Body, "http://portal.test/invite/abc")

	p := invitePayload(true)
	p.RecipientName = ""
	p.Role = "billing_manager"
	msg, err = InviteMessage(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg.Subject, "Reminder: "))
	assert.Contains(t, msg.Body, "Hi there,")
	assert.Contains(t, msg.Body, "This is a reminder that you have been invited")
	assert.Contains(t, msg.Body, "as a billing manager.")
}

func TestCompose(t *testing.T) {
	raw := string(compose(config.EmailConfig{FromAddress: "noreply@portal.test", FromName: "Portal"},
		Message{To: "jo@acme.test", ToName: "Jo", Subject: "Hello", Body: "line one\nline two"}))
	assert.Contains(t, raw, "From: \"Portal\" <noreply@portal.test>\r\n")
	assert.Contains(t, raw, "To: \"Jo\" <jo@acme.test>\r\n")
	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestEmailProcessor_Invite(t *testing.T) {
	sender := &fakeSender{}
	logs := newFakeLogs()
	p := NewEmailProcessor(sender, logs, nil)

	payload := invitePayload(true)
	job, err := queue.NewJob(queue.QueueEmails, queue.JobTypeInviteEmail, payload)
	require.NoError(t, err)
	require.NoError(t, p.Process(context.Background(), job))

	require.Len(t, sender.sent, 1)
	require.Len(t, logs.created, 1)
	entry := logs.created[0]
	assert.Equal(t, models.EmailTypeInviteResend, entry.EmailType)
	assert.Equal(t, payload.SubUserID, *entry.SubUserID)
	assert.Equal(t, models.EmailLogStatusSent, logs.status[entry.ID])
}

func TestEmailProcessor_SendFailureMarksLog(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	logs := newFakeLogs()
	p := NewEmailProcessor(sender, logs, nil)

	job, err := queue.NewJob(queue.QueueEmails, queue.JobTypeNotificationEmail, queue.NotificationEmailPayload{
		ClientID: uuid.New(), RecipientEmail: "ops@acme.test", Subject: "Post approved", Body: "done",
	})
	require.NoError(t, err)
	require.Error(t, p.Process(context.Background(), job))

	require.Len(t, logs.created, 1)
	id := logs.created[0].ID
	assert.Equal(t, models.EmailLogStatusFailed, logs.status[id])
	assert.Equal(t, "connection refused", logs.reason[id])
}

func TestEmailProcessor_UnknownType(t *testing.T) {
	p := NewEmailProcessor(&fakeSender{}, newFakeLogs(), nil)
	err := p.Process(context.Background(), &queue.Job{ID: "x", Type: "bogus", Payload: []byte(`{}`)})
	assert.Error(t, err)
}

type fakeSource struct {
	retried []queue.Job
}

func (f *fakeSource) Dequeue(context.Context, ...string) (*queue.Job, error) { return nil, nil }

func (f *fakeSource) Retry(_ context.Context, job *queue.Job) error {
	job.Attempt++
	f.retried = append(f.retried, *job)
	return nil
}

type processorFunc func(ctx context.Context, job *queue.Job) error

func (f processorFunc) Process(ctx context.Context, job *queue.Job) error { return f(ctx, job) }

func TestRunnerRetriesFailedJob(t *testing.T) {
	src := &fakeSource{}
	r := NewRunner(src, processorFunc(func(context.Context, *queue.Job) error {
		return errors.New("boom")
	}), nil)
	r.backoff = 0

	ok := r.handle(context.Background(), &queue.Job{ID: "j1", Type: queue.JobTypeInviteEmail})
	assert.False(t, ok)
	require.Len(t, src.retried, 1)
	assert.Equal(t, 1, src.retried[0].Attempt)

	r.processor = processorFunc(func(context.Context, *queue.Job) error { return nil })
	assert.True(t, r.handle(context.Background(), &queue.Job{ID: "j2"}))
	assert.Len(t, src.retried, 1)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	r := NewRunner(&fakeSource{}, processorFunc(func(context.Context, *queue.Job) error { return nil }), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

type fakeResetter struct {
	ids []uuid.UUID
	at  time.Time
}

func (f *fakeResetter) ResetCycles(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	f.at = now
	return f.ids, nil
}

type fakeFeed struct {
	changes []realtime.Change
}

func (f *fakeFeed) Publish(_ context.Context, table string, clientID, rowID uuid.UUID) {
	f.changes = append(f.changes, realtime.Change{Table: table, ClientID: clientID, RowID: rowID})
}

func TestScheduler(t *testing.T) {
	_, err := NewScheduler("not a cron", &fakeResetter{}, &fakeFeed{}, nil)
	assert.Error(t, err)

	resetter := &fakeResetter{ids: []uuid.UUID{uuid.New(), uuid.New()}}
	feed := &fakeFeed{}
	s, err := NewScheduler("0 0 1 * *", resetter, feed, nil)
	require.NoError(t, err)
	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	n, err := s.ResetCycles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, fixed, resetter.at)
	require.Len(t, feed.changes, 2)
	assert.Equal(t, realtime.TablePackageItems, feed.changes[0].Table)
	assert.Equal(t, resetter.ids[1], feed.changes[1].ClientID)
}
