package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndudnik/pairchat-server/internal/store"
)

// Presencer persists online status and fans presence changes out to every
// other live session. Persistence failures are logged and the broadcast
// proceeds anyway: presence is best-effort, not transactional with storage.
type Presencer struct {
	registry *Registry
	users    store.UserStore
	log      *zerolog.Logger
}

// NewPresencer constructs a presence broadcaster.
func NewPresencer(registry *Registry, users store.UserStore, logger *zerolog.Logger) *Presencer {
	return &Presencer{
		registry: registry,
		users:    users,
		log:      logger,
	}
}

// Online records userID as online and announces it to all other sessions.
// Called after the session has been admitted; the subject never receives
// its own presence event.
func (p *Presencer) Online(ctx context.Context, userID int64) {
	now := time.Now()
	if err := p.users.SetPresence(ctx, userID, true, now); err != nil {
		p.log.Warn().Err(err).Int64("user_id", userID).Msg("persist online status")
	}

	event := &Event{
		Kind:     EventUserOnline,
		Presence: &Presence{UserID: userID, IsOnline: true},
	}
	p.broadcast(userID, event)
}

// Offline records userID as offline and announces it with the last-seen
// timestamp to all remaining sessions.
func (p *Presencer) Offline(ctx context.Context, userID int64) {
	now := time.Now()
	if err := p.users.SetPresence(ctx, userID, false, now); err != nil {
		p.log.Warn().Err(err).Int64("user_id", userID).Msg("persist offline status")
	}

	event := &Event{
		Kind:     EventUserOffline,
		Presence: &Presence{UserID: userID, IsOnline: false, LastSeen: &now},
	}
	p.broadcast(userID, event)
}

func (p *Presencer) broadcast(excludeUserID int64, event *Event) {
	for _, session := range p.registry.Snapshot(excludeUserID) {
		if !session.Deliver(event) {
			p.log.Debug().Int64("user_id", session.UserID).Msg("dropped presence event")
		}
	}
}
