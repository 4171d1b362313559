package history

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetflow/internal/events"
	"git.home.luguber.info/inful/assetflow/internal/logfields"
)

// Journal copies run lifecycle events from a bus into a Store.
type Journal struct {
	store  *Store
	ch     <-chan events.RunEvent
	unsub  func()
	logger *slog.Logger
}

// NewJournal subscribes to bus immediately so no event published after this
// call is missed.
func NewJournal(store *Store, bus *events.Bus, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	ch, unsub := events.Subscribe[events.RunEvent](bus, 64)
	return &Journal{store: store, ch: ch, unsub: unsub, logger: logger}
}

// Run writes events until ctx is canceled or the bus is closed. Events
// already queued when ctx is canceled are still written.
func (j *Journal) Run(ctx context.Context) {
	defer j.unsub()
	for {
		select {
		case <-ctx.Done():
			j.drain(context.WithoutCancel(ctx))
			return
		case evt, ok := <-j.ch:
			if !ok {
				return
			}
			j.write(ctx, evt)
		}
	}
}

func (j *Journal) drain(ctx context.Context) {
	for {
		select {
		case evt, ok := <-j.ch:
			if !ok {
				return
			}
			j.write(ctx, evt)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, evt events.RunEvent) {
	if err := j.store.Append(ctx, evt); err != nil {
		j.logger.Warn("Failed to record run event",
			logfields.RunID(evt.RunIdentifier()),
			logfields.Error(err))
	}
}
