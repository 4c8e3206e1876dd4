// Package livefeed pushes session snapshots to connected dashboards. After
// any successful mutation the feed reloads the full current result set for
// each affected identity and delivers it whole; subscribers replace their
// view instead of patching diffs, so a dropped update is corrected by the
// next one.
package livefeed

import (
	"context"
	"time"

	"coachdesk/pkg/logger"
	"coachdesk/pkg/model"
)

// SnapshotLoader produces the full current result set for one identity.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, identityID string, role model.Role) ([]*model.Session, error)
}

// Subscriber is one connected watcher. Updates holds full snapshots; the
// channel is buffered and a subscriber that falls behind misses updates
// rather than blocking the feed.
type Subscriber struct {
	IdentityID string
	Role       model.Role
	Updates    chan []*model.Session
}

type Feed struct {
	loader          SnapshotLoader
	log             *logger.Logger
	snapshotTimeout time.Duration

	register   chan *Subscriber
	unregister chan *Subscriber
	dirty      chan string

	subscribers map[string]map[*Subscriber]bool
}

func NewFeed(log *logger.Logger, snapshotTimeout time.Duration) *Feed {
	return &Feed{
		log:             log,
		snapshotTimeout: snapshotTimeout,
		register:        make(chan *Subscriber),
		unregister:      make(chan *Subscriber),
		dirty:           make(chan string, 64),
		subscribers:     make(map[string]map[*Subscriber]bool),
	}
}

// SetLoader must be called before Run. It exists because the feed and the
// service that loads snapshots reference each other at wiring time.
func (f *Feed) SetLoader(loader SnapshotLoader) {
	f.loader = loader
}

// Run owns the subscriber map; all mutation happens on this goroutine.
func (f *Feed) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			f.closeAll()
			return

		case sub := <-f.register:
			if f.subscribers[sub.IdentityID] == nil {
				f.subscribers[sub.IdentityID] = make(map[*Subscriber]bool)
			}
			f.subscribers[sub.IdentityID][sub] = true
			f.push(ctx, sub)

		case sub := <-f.unregister:
			if subs, ok := f.subscribers[sub.IdentityID]; ok {
				if subs[sub] {
					delete(subs, sub)
					close(sub.Updates)
				}
				if len(subs) == 0 {
					delete(f.subscribers, sub.IdentityID)
				}
			}

		case identityID := <-f.dirty:
			for sub := range f.subscribers[identityID] {
				f.push(ctx, sub)
			}
		}
	}
}

// Subscribe registers a watcher and returns it; the first update on
// Updates is the initial snapshot.
func (f *Feed) Subscribe(identityID string, role model.Role) *Subscriber {
	sub := &Subscriber{
		IdentityID: identityID,
		Role:       role,
		Updates:    make(chan []*model.Session, 4),
	}
	f.register <- sub
	return sub
}

func (f *Feed) Unsubscribe(sub *Subscriber) {
	f.unregister <- sub
}

// Notify marks identities dirty after a mutation. Non-blocking: if the dirty
// queue is full the update is dropped and the next mutation repairs the view.
func (f *Feed) Notify(identityIDs ...string) {
	for _, id := range identityIDs {
		select {
		case f.dirty <- id:
		default:
			f.log.Warn("live feed dirty queue full, dropping update", "identity_id", id)
		}
	}
}

func (f *Feed) push(ctx context.Context, sub *Subscriber) {
	loadCtx, cancel := context.WithTimeout(ctx, f.snapshotTimeout)
	defer cancel()

	sessions, err := f.loader.LoadSnapshot(loadCtx, sub.IdentityID, sub.Role)
	if err != nil {
		f.log.Error("failed to load live feed snapshot",
			"identity_id", sub.IdentityID,
			"error", err)
		return
	}

	select {
	case sub.Updates <- sessions:
	default:
		f.log.Warn("live feed subscriber too slow, dropping snapshot",
			"identity_id", sub.IdentityID)
	}
}

func (f *Feed) closeAll() {
	for _, subs := range f.subscribers {
		for sub := range subs {
			close(sub.Updates)
		}
	}
	f.subscribers = make(map[string]map[*Subscriber]bool)
}
