package deliverables

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/storage"
)

// Usage meters client-requested deliverables against the package.
type Usage interface {
	Consume(ctx context.Context, clientID uuid.UUID, deliverableType string) (metered bool, err error)
	Release(ctx context.Context, clientID uuid.UUID, deliverableType string, since time.Time) error
}

// RevisionPolicy returns the included revision rounds for a client.
type RevisionPolicy interface {
	MaxRevisions(ctx context.Context, clientID uuid.UUID) (int, error)
}

// FileStore keeps uploaded deliverable files.
type FileStore interface {
	PutDeliverable(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	DeleteDeliverable(ctx context.Context, key string) error
	DeliverableDownloadURL(ctx context.Context, key string) (string, error)
}

// Notifier records client-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Deps are the collaborators of Service.
type Deps struct {
	Store    Store
	Usage    Usage
	Policy   RevisionPolicy
	Files    FileStore
	Notifier Notifier
	Feed     ChangePublisher
	Logger   *zap.Logger
}

// Service applies the deliverable workflow rules on behalf of a session.
type Service struct {
	store    Store
	usage    Usage
	policy   RevisionPolicy
	files    FileStore
	notifier Notifier
	feed     ChangePublisher
	logger   *zap.Logger
}

// NewService creates a deliverables service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Service{
		store:    d.Store,
		usage:    d.Usage,
		policy:   d.Policy,
		files:    d.Files,
		notifier: d.Notifier,
		feed:     d.Feed,
		logger:   d.Logger,
	}
}

// CreatePostParams describes a new post.
type CreatePostParams struct {
	ClientID        uuid.UUID
	Title           string
	Description     string
	DeliverableType string
	Priority        models.Priority
	DueDate         *time.Time
}

// RevisionResult reports the outcome of a revision request.
type RevisionResult struct {
	Post          *models.Post    `json:"post"`
	Comment       *models.Comment `json:"comment"`
	RevisionCount int             `json:"revision_count"`
	MaxRevisions  int             `json:"max_revisions"`
	IsBillable    bool            `json:"is_billable"`
}

// ReactionResult reports whether the caller's reaction is set after a toggle.
type ReactionResult struct {
	ReactionType models.ReactionType `json:"reaction_type"`
	Active       bool                `json:"active"`
}

// FileUpload is an incoming deliverable file.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// load fetches a post and hides posts of clients the session may not see.
func (s *Service) load(ctx context.Context, sess *auth.Session, id uuid.UUID) (*models.Post, error) {
	p, err := s.store.Get(ctx, sess.TenantID, id)
	if err != nil {
		return nil, err
	}
	if !sess.CanAccessClient(p.TenantID, p.ClientID) {
		return nil, ErrNotFound
	}
	return p, nil
}

func pickLock(requested, current int) int {
	if requested > 0 {
		return requested
	}
	return current
}

func (s *Service) publish(ctx context.Context, table string, clientID, rowID uuid.UUID) {
	if s.feed != nil {
		s.feed.Publish(ctx, table, clientID, rowID)
	}
}

func (s *Service) notify(ctx context.Context, p *models.Post, kind, title, body string) {
	if s.notifier == nil {
		return
	}
	postID := p.ID
	n := &models.Notification{ClientID: p.ClientID, Kind: kind, Title: title, Body: body, PostID: &postID}
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.logger.Warn("notify client", zap.String("post_id", p.ID.String()), zap.String("kind", kind), zap.Error(err))
	}
}

// Create opens a post in draft. Requests from the client side consume package usage for metered types.
func (s *Service) Create(ctx context.Context, sess *auth.Session, p CreatePostParams) (*models.Post, error) {
	if !sess.CanAccessClient(sess.TenantID, p.ClientID) {
		return nil, ErrNotFound
	}
	actor := sess.Actor()
	if p.Priority == "" {
		p.Priority = models.PriorityMedium
	}
	post := &models.Post{
		TenantID:        sess.TenantID,
		ClientID:        p.ClientID,
		Title:           strings.TrimSpace(p.Title),
		Description:     p.Description,
		DeliverableType: strings.TrimSpace(p.DeliverableType),
		Status:          models.PostDraft,
		Priority:        p.Priority,
		DueDate:         p.DueDate,
		CreatedBy:       actor.ID,
		CreatedByType:   actor.Type,
	}

	metered := false
	if !sess.IsAgency() && post.DeliverableType != "" && s.usage != nil {
		var err error
		metered, err = s.usage.Consume(ctx, p.ClientID, post.DeliverableType)
		if err != nil {
			return nil, err
		}
	}
	if err := s.store.Create(ctx, post); err != nil {
		if metered {
			if rerr := s.usage.Release(ctx, p.ClientID, post.DeliverableType, time.Now()); rerr != nil {
				s.logger.Error("release package unit", zap.String("client_id", p.ClientID.String()), zap.Error(rerr))
			}
		}
		return nil, err
	}
	s.publish(ctx, realtime.TableDeliverablePosts, post.ClientID, post.ID)
	if metered {
		s.publish(ctx, realtime.TablePackageItems, post.ClientID, uuid.Nil)
	}
	return post, nil
}

// Get returns one post.
func (s *Service) Get(ctx context.Context, sess *auth.Session, id uuid.UUID) (*models.Post, error) {
	return s.load(ctx, sess, id)
}

// List returns a client's posts.
func (s *Service) List(ctx context.Context, sess *auth.Session, clientID uuid.UUID, f ListFilter) ([]models.Post, error) {
	if !sess.CanAccessClient(sess.TenantID, clientID) {
		return nil, ErrNotFound
	}
	return s.store.List(ctx, sess.TenantID, clientID, f)
}

// Detail returns a post with versions, comments, reactions and review history.
func (s *Service) Detail(ctx context.Context, sess *auth.Session, id uuid.UUID) (*models.PostDetail, error) {
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	d := &models.PostDetail{Post: p}
	if d.Versions, err = s.store.Versions(ctx, id); err != nil {
		return nil, fmt.Errorf("versions: %w", err)
	}
	if d.Comments, err = s.store.Comments(ctx, id); err != nil {
		return nil, fmt.Errorf("comments: %w", err)
	}
	if d.Reactions, err = s.store.Reactions(ctx, id); err != nil {
		return nil, fmt.Errorf("reactions: %w", err)
	}
	if d.History, err = s.store.History(ctx, id); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return d, nil
}

// Transition performs an agency-driven status move. Approval and revision requests have their own operations.
func (s *Service) Transition(ctx context.Context, sess *auth.Session, id uuid.UUID, to models.PostStatus, lockVersion int) (*models.Post, error) {
	if _, ok := models.ParsePostStatus(string(to)); !ok {
		return nil, ErrInvalidStatus
	}
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, ErrTerminalState
	}
	if to == models.PostApproved || to == models.PostRevision || !CanTransition(p.Status, to) {
		return nil, ErrInvalidTransition
	}
	updated, err := s.store.SetStatus(ctx, id, p.Status, pickLock(lockVersion, p.LockVersion), to)
	if err != nil {
		return nil, err
	}

	switch to {
	case models.PostClientReview:
		s.notify(ctx, updated, models.NotifyReviewRequested, "Ready for your review", updated.Title)
	case models.PostDelivered:
		s.notify(ctx, updated, models.NotifyPostDelivered, "Deliverable delivered", updated.Title)
	case models.PostCancelled:
		if updated.CreatedByType != models.ActorAgency && updated.DeliverableType != "" && s.usage != nil {
			if err := s.usage.Release(ctx, updated.ClientID, updated.DeliverableType, updated.CreatedAt); err != nil {
				s.logger.Error("release package unit", zap.String("post_id", id.String()), zap.Error(err))
			} else {
				s.publish(ctx, realtime.TablePackageItems, updated.ClientID, uuid.Nil)
			}
		}
	}
	s.publish(ctx, realtime.TableDeliverablePosts, updated.ClientID, updated.ID)
	return updated, nil
}

func reviewable(p *models.Post) error {
	if p.Status.Terminal() {
		return ErrTerminalState
	}
	if p.Status != models.PostClientReview {
		return ErrInvalidTransition
	}
	return nil
}

// Approve accepts a post that is in client review.
func (s *Service) Approve(ctx context.Context, sess *auth.Session, id uuid.UUID, note string, lockVersion int) (*models.Post, error) {
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := reviewable(p); err != nil {
		return nil, err
	}
	actor := sess.Actor()
	a := &models.Approval{
		ActorID: actor.ID, ActorType: actor.Type, ActorName: actor.Name,
		Action: models.ApprovalActionApproved, Note: strings.TrimSpace(note),
	}
	updated, err := s.store.Approve(ctx, id, pickLock(lockVersion, p.LockVersion), a)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated, models.NotifyPostApproved, "Deliverable approved", updated.Title)
	s.publish(ctx, realtime.TableDeliverablePosts, updated.ClientID, updated.ID)
	return updated, nil
}

// RequestRevision sends a post in client review back with feedback and counts the round.
func (s *Service) RequestRevision(ctx context.Context, sess *auth.Session, id uuid.UUID, feedback string, lockVersion int) (*RevisionResult, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, ErrFeedbackRequired
	}
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if err := reviewable(p); err != nil {
		return nil, err
	}
	maxRevisions, err := s.policy.MaxRevisions(ctx, p.ClientID)
	if err != nil {
		return nil, fmt.Errorf("max revisions: %w", err)
	}

	actor := sess.Actor()
	c := &models.Comment{
		AuthorID: actor.ID, AuthorType: actor.Type, AuthorName: actor.Name,
		Content: feedback, IsRevisionRequest: true,
	}
	a := &models.Approval{
		ActorID: actor.ID, ActorType: actor.Type, ActorName: actor.Name,
		Action: models.ApprovalActionRevisionRequested, Note: feedback,
	}
	updated, err := s.store.RequestRevision(ctx, id, pickLock(lockVersion, p.LockVersion), maxRevisions, c, a)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, models.NotifyRevisionRequested, "Revision requested", updated.Title)
	s.publish(ctx, realtime.TableDeliverablePosts, updated.ClientID, updated.ID)
	s.publish(ctx, realtime.TablePostComments, updated.ClientID, c.ID)
	return &RevisionResult{
		Post:          updated,
		Comment:       c,
		RevisionCount: updated.RevisionCount,
		MaxRevisions:  maxRevisions,
		IsBillable:    a.IsBillable,
	}, nil
}

// React toggles the caller's reaction on a post. Allowed in every status.
func (s *Service) React(ctx context.Context, sess *auth.Session, id uuid.UUID, reactionType string) (*ReactionResult, error) {
	rt, ok := models.ParseReactionType(reactionType)
	if !ok {
		return nil, ErrInvalidReaction
	}
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	actor := sess.Actor()
	active, err := s.store.ToggleReaction(ctx, &models.Reaction{
		PostID: id, ActorID: actor.ID, ActorType: actor.Type, ActorName: actor.Name, ReactionType: rt,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, realtime.TablePostReactions, p.ClientID, id)
	return &ReactionResult{ReactionType: rt, Active: active}, nil
}

// AddComment posts a comment without touching status. A revision-request comment is a revision request.
func (s *Service) AddComment(ctx context.Context, sess *auth.Session, id uuid.UUID, content string, isRevisionRequest bool) (*models.Comment, error) {
	if isRevisionRequest {
		res, err := s.RequestRevision(ctx, sess, id, content, 0)
		if err != nil {
			return nil, err
		}
		return res.Comment, nil
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyComment
	}
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	actor := sess.Actor()
	c := &models.Comment{PostID: id, AuthorID: actor.ID, AuthorType: actor.Type, AuthorName: actor.Name, Content: content}
	if err := s.store.AddComment(ctx, c); err != nil {
		return nil, err
	}
	if actor.Type == models.ActorAgency {
		s.notify(ctx, p, models.NotifyNewComment, "New comment on "+p.Title, content)
	}
	s.publish(ctx, realtime.TablePostComments, p.ClientID, c.ID)
	return c, nil
}

// UploadFile stores a new file version. versionNumber 0 takes the next number; any other value must equal it.
func (s *Service) UploadFile(ctx context.Context, sess *auth.Session, id uuid.UUID, f FileUpload, versionNumber int) (*models.PostVersion, error) {
	p, err := s.load(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, ErrTerminalState
	}
	if versionNumber > 0 && versionNumber != p.VersionCount+1 {
		return nil, ErrVersionMismatch
	}
	if f.ContentType == "" {
		f.ContentType = storage.ContentTypeForFilename(f.Filename)
	}
	key := storage.DeliverableKey(p.ClientID, p.ID, uuid.New(), f.Filename)
	url, err := s.files.PutDeliverable(ctx, key, f.ContentType, f.Body, f.Size)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}
	v := &models.PostVersion{
		PostID:      id,
		FileKey:     key,
		FileURL:     url,
		FileName:    f.Filename,
		ContentType: f.ContentType,
		FileSize:    f.Size,
		UploadedBy:  sess.UserID,
	}
	if _, err := s.store.AddVersion(ctx, v, versionNumber); err != nil {
		if derr := s.files.DeleteDeliverable(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Warn("remove orphaned upload", zap.String("key", key), zap.Error(derr))
		}
		return nil, err
	}
	s.publish(ctx, realtime.TablePostVersions, p.ClientID, v.ID)
	return v, nil
}

// DownloadURL returns a presigned URL for one file version.
func (s *Service) DownloadURL(ctx context.Context, sess *auth.Session, id uuid.UUID, versionNumber int) (string, error) {
	if _, err := s.load(ctx, sess, id); err != nil {
		return "", err
	}
	v, err := s.store.Version(ctx, id, versionNumber)
	if err != nil {
		return "", err
	}
	return s.files.DeliverableDownloadURL(ctx, v.FileKey)
}
