// Package subusers manages the secondary logins of a client account: invites, roles,
// per-user permission overrides and activity.
package subusers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-portal/backend/internal/auth"
	"github.com/aura-portal/backend/internal/models"
	"github.com/aura-portal/backend/internal/permissions"
	"github.com/aura-portal/backend/internal/realtime"
	"github.com/aura-portal/backend/pkg/queue"
	"github.com/aura-portal/backend/pkg/utils"
)

var (
	ErrNotFound          = errors.New("sub-user not found")
	ErrEmailTaken        = errors.New("a team member with this email already exists")
	ErrInvalidRole       = errors.New("unknown role")
	ErrInvalidStatus     = errors.New("unknown status")
	ErrInvalidPermission = errors.New("unknown permission key")
	ErrInviteInvalid     = errors.New("invite link is invalid or already used")
	ErrInviteExpired     = errors.New("invite link has expired")
	ErrNotInvited        = errors.New("sub-user has already accepted the invite")
	ErrNameRequired      = errors.New("name is required")
	ErrWeakPassword      = errors.New("password must be at least 8 characters")
)

const inviteTokenBytes = 32

// Store persists sub-users.
type Store interface {
	Create(ctx context.Context, su *models.SubUser) error
	Get(ctx context.Context, clientID, id uuid.UUID) (*models.SubUser, error)
	List(ctx context.Context, clientID uuid.UUID) ([]models.SubUser, error)
	EmailInUse(ctx context.Context, clientID uuid.UUID, email string, exclude uuid.UUID) (bool, error)
	Update(ctx context.Context, su *models.SubUser) error
	Delete(ctx context.Context, clientID, id uuid.UUID) error
	RotateInvite(ctx context.Context, clientID, id uuid.UUID, token string, expiresAt, at time.Time) (*models.SubUser, error)
	GetByInviteToken(ctx context.Context, token string) (*models.SubUser, error)
	// Accept creates or reuses the member's login and activates the entry atomically.
	Accept(ctx context.Context, id, tenantID uuid.UUID, passwordHash string) (*models.SubUser, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubUser, error)
	Touch(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// InviteMailer queues invitation emails.
type InviteMailer interface {
	EnqueueInviteEmail(ctx context.Context, p queue.InviteEmailPayload) error
}

// ChangePublisher announces row changes on the realtime feed.
type ChangePublisher interface {
	Publish(ctx context.Context, table string, clientID, rowID uuid.UUID)
}

// Config holds invite settings.
type Config struct {
	TenantID  uuid.UUID
	InviteTTL time.Duration
	AppURL    string
}

// Service applies the sub-user rules.
type Service struct {
	store  Store
	mailer InviteMailer
	feed   ChangePublisher
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a sub-users service.
func NewService(store Store, mailer InviteMailer, feed ChangePublisher, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		mailer: mailer,
		feed:   feed,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateParams describes a new team member.
type CreateParams struct {
	Name        string
	Email       string
	Phone       string
	Role        string
	Permissions map[string]bool
}

// Patch changes independent fields; nil fields are left alone.
// A non-nil empty Permissions map clears every override.
type Patch struct {
	Role        *string
	Status      *string
	Permissions map[string]bool
}

func validateOverrides(m map[string]bool) error {
	for k := range m {
		if !permissions.ValidKey(k) {
			return fmt.Errorf("%w: %s", ErrInvalidPermission, k)
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, clientID, id uuid.UUID) {
	if s.feed != nil {
		s.feed.Publish(ctx, realtime.TableSubUsers, clientID, id)
	}
}

func (s *Service) inviteURL(token string) string {
	return strings.TrimRight(s.cfg.AppURL, "/") + "/invite/" + token
}

func (s *Service) sendInvite(ctx context.Context, client *models.Client, su *models.SubUser, resend bool) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.EnqueueInviteEmail(ctx, queue.InviteEmailPayload{
		SubUserID:      su.ID,
		ClientID:       client.ID,
		ClientName:     client.Name,
		RecipientEmail: su.Email,
		RecipientName:  su.Name,
		Role:           string(su.Role),
		InviteURL:      s.inviteURL(su.InviteToken),
		Resend:         resend,
	})
	if err != nil {
		s.logger.Warn("enqueue invite email", zap.String("sub_user_id", su.ID.String()), zap.Error(err))
	}
}

// List returns the client's team.
func (s *Service) List(ctx context.Context, clientID uuid.UUID) ([]models.SubUser, error) {
	return s.store.List(ctx, clientID)
}

// Create invites a new team member. Duplicate emails among non-inactive members are rejected before any write.
func (s *Service) Create(ctx context.Context, sess *auth.Session, client *models.Client, p CreateParams) (*models.SubUser, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	role, ok := models.ParseSubUserRole(p.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if err := validateOverrides(p.Permissions); err != nil {
		return nil, err
	}
	email := utils.NormalizeEmail(p.Email)
	taken, err := s.store.EmailInUse(ctx, client.ID, email, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}
	token, err := utils.NewToken(inviteTokenBytes)
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.cfg.InviteTTL)
	invitedBy := sess.UserID
	su := &models.SubUser{
		ClientID:        client.ID,
		Name:            name,
		Email:           email,
		Phone:           strings.TrimSpace(p.Phone),
		Role:            role,
		Status:          models.SubUserInvited,
		Permissions:     p.Permissions,
		InvitedBy:       &invitedBy,
		InviteToken:     token,
		InviteExpiresAt: &expires,
	}
	if err := s.store.Create(ctx, su); err != nil {
		return nil, err
	}
	s.sendInvite(ctx, client, su, false)
	s.publish(ctx, client.ID, su.ID)
	return su, nil
}

// Update applies a patch. Reactivating a member re-checks email uniqueness.
func (s *Service) Update(ctx context.Context, clientID, id uuid.UUID, p Patch) (*models.SubUser, error) {
	su, err := s.store.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if p.Role != nil {
		role, ok := models.ParseSubUserRole(*p.Role)
		if !ok {
			return nil, ErrInvalidRole
		}
		su.Role = role
	}
	if p.Status != nil {
		status, ok := models.ParseSubUserStatus(*p.Status)
		if !ok {
			return nil, ErrInvalidStatus
		}
		if su.Status == models.SubUserInactive && status != models.SubUserInactive {
			taken, err := s.store.EmailInUse(ctx, clientID, su.Email, su.ID)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
		su.Status = status
	}
	if p.Permissions != nil {
		if err := validateOverrides(p.Permissions); err != nil {
			return nil, err
		}
		su.Permissions = p.Permissions
	}
	if err := s.store.Update(ctx, su); err != nil {
		return nil, err
	}
	s.publish(ctx, clientID, su.ID)
	return su, nil
}

// Remove deletes a team member.
func (s *Service) Remove(ctx context.Context, clientID, id uuid.UUID) error {
	if err := s.store.Delete(ctx, clientID, id); err != nil {
		return err
	}
	s.publish(ctx, clientID, id)
	return nil
}

// ResendInvite issues a fresh invite link to a member who has not accepted yet.
func (s *Service) ResendInvite(ctx context.Context, client *models.Client, id uuid.UUID) (*models.SubUser, error) {
	token, err := utils.NewToken(inviteTokenBytes)
	if err != nil {
		return nil, err
	}
	now := s.now()
	su, err := s.store.RotateInvite(ctx, client.ID, id, token, now.Add(s.cfg.InviteTTL), now)
	if err != nil {
		return nil, err
	}
	s.sendInvite(ctx, client, su, true)
	s.publish(ctx, client.ID, su.ID)
	return su, nil
}

// AcceptInvite creates the member's login and activates the membership. A member re-invited after being
// deactivated keeps their login and gets the new password.
func (s *Service) AcceptInvite(ctx context.Context, token, password string) (*models.SubUser, error) {
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	su, err := s.store.GetByInviteToken(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInviteInvalid
	}
	if err != nil {
		return nil, err
	}
	if su.Status != models.SubUserInvited {
		return nil, ErrInviteInvalid
	}
	if su.InviteExpiresAt != nil && s.now().After(*su.InviteExpiresAt) {
		return nil, ErrInviteExpired
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	active, err := s.store.Accept(ctx, su.ID, s.cfg.TenantID, hash)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, su.ClientID, su.ID)
	return active, nil
}

// GetByUserID returns the membership behind a sub-user login.
func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.SubUser, error) {
	return s.store.GetByUserID(ctx, userID)
}

// Touch records activity of a sub-user login.
func (s *Service) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.store.Touch(ctx, userID, at)
}
