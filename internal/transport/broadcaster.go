// Package transport carries console I/O between the command engine
// and its clients. The broadcaster fans command output out to every
// attached client, so a TCP console, the local console, and the
// WebSocket bridge all observe the same stream, the way a shared
// serial console would.
package transport

import (
	"io"
	"sync"

	"github.com/lithammer/shortuuid/v4"
	"go.uber.org/zap"
)

// Broadcaster is an io.Writer that copies every write to all attached
// writers. Writers that fail are detached on the spot, so one dead
// client never wedges the stream for the rest.
type Broadcaster struct {
	mu     sync.Mutex
	sinks  map[string]io.Writer
	logger *zap.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		sinks:  make(map[string]io.Writer),
		logger: logger,
	}
}

// Attach subscribes a writer and returns its subscriber id.
func (b *Broadcaster) Attach(w io.Writer) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var id string
	for {
		id = shortuuid.New()
		if _, ok := b.sinks[id]; !ok {
			b.sinks[id] = w
			break
		}
	}
	b.logger.Debug("console sink attached", zap.String("id", id))
	return id
}

// Detach unsubscribes a writer. Unknown ids are ignored.
func (b *Broadcaster) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sinks[id]; ok {
		delete(b.sinks, id)
		b.logger.Debug("console sink detached", zap.String("id", id))
	}
}

// Count returns the number of attached writers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sinks)
}

// Write copies p to every attached writer. A writer returning an
// error is detached. The broadcaster itself never fails: the return
// is always len(p), nil.
func (b *Broadcaster) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var dead []string
	for id, w := range b.sinks {
		if _, err := w.Write(p); err != nil {
			dead = append(dead, id)
			b.logger.Debug("console sink dropped",
				zap.String("id", id), zap.Error(err))
		}
	}
	for _, id := range dead {
		delete(b.sinks, id)
	}
	return len(p), nil
}
