package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tables reported on the feed.
const (
	TableDeliverablePosts = "deliverable_posts"
	TablePostComments     = "post_comments"
	TablePostReactions    = "post_reactions"
	TablePostVersions     = "post_versions"
	TableSubUsers         = "client_sub_users"
	TableNotifications    = "notifications"
	TableMessages         = "messages"
	TablePackageItems     = "package_items"
	TableWallet           = "client_wallets"
	TableBrandAssets      = "brand_assets"
)

// Change says a row of Table belonging to ClientID changed. Listeners refetch; no row data travels.
type Change struct {
	Table    string    `json:"table"`
	ClientID uuid.UUID `json:"client_id"`
	RowID    uuid.UUID `json:"row_id,omitempty"`
	At       time.Time `json:"at"`
}

// Listener receives every change seen by this instance.
type Listener func(Change)

// Transport carries changes between instances.
type Transport interface {
	PublishChange(ctx context.Context, ch Change) error
	SubscribeChanges(ctx context.Context, handler func(Change)) error
}

// Feed fans changes out to local listeners. With a transport, local publishes take the round trip
// through it so every instance (this one included) dispatches exactly once.
type Feed struct {
	transport Transport
	logger    *zap.Logger

	mu        sync.RWMutex
	listeners []Listener
}

// NewFeed creates a feed. transport may be nil for single-instance use and tests.
func NewFeed(transport Transport, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{transport: transport, logger: logger}
}

// Subscribe registers a listener.
func (f *Feed) Subscribe(l Listener) {
	f.mu.Lock()
	f.listeners = append(f.listeners, l)
	f.mu.Unlock()
}

// Start subscribes to the transport. Call once per process.
func (f *Feed) Start(ctx context.Context) error {
	if f.transport == nil {
		return nil
	}
	return f.transport.SubscribeChanges(ctx, f.dispatch)
}

// Publish announces a change. Failures are logged; callers never fail a write because of the feed.
func (f *Feed) Publish(ctx context.Context, table string, clientID, rowID uuid.UUID) {
	ch := Change{Table: table, ClientID: clientID, RowID: rowID, At: time.Now().UTC()}
	if f.transport == nil {
		f.dispatch(ch)
		return
	}
	if err := f.transport.PublishChange(context.WithoutCancel(ctx), ch); err != nil {
		f.logger.Warn("publish change failed, dispatching locally",
			zap.String("table", table), zap.String("client_id", clientID.String()), zap.Error(err))
		f.dispatch(ch)
	}
}

func (f *Feed) dispatch(ch Change) {
	f.mu.RLock()
	listeners := append([]Listener(nil), f.listeners...)
	f.mu.RUnlock()
	for _, l := range listeners {
		l(ch)
	}
}
