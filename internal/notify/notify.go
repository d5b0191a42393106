// Package notify hands energy-changed events from the tick engine to
// whatever transport the surrounding service runs. Delivery and fan-out are
// the transport's problem; this package only tracks who is connected and
// buffers updates until the transport drains them.
package notify

import (
	"sync"

	"github.com/starveil/engine/internal/queue"
)

// EnergyUpdate is emitted once per connected player after each global tick.
type EnergyUpdate struct {
	PlayerID  uint  `json:"playerId"`
	Energy    int64 `json:"energy"`
	MaxEnergy int64 `json:"maxEnergy"`
}

// subscriberBuffer is how many updates a slow subscriber can lag before
// newer updates overwrite delivery (the channel send is dropped).
const subscriberBuffer = 8

// pendingLimit bounds the undelivered buffer. The scheduler pushes one
// update per connected player per tick; if the transport stops flushing,
// the oldest readings are shed first since they are already stale.
const pendingLimit = 4096

// Notifier tracks connected players and buffers their energy updates.
type Notifier struct {
	mu      sync.RWMutex
	subs    map[uint]chan EnergyUpdate
	pending *queue.Queue[EnergyUpdate]
}

// New creates an empty notifier.
func New() *Notifier {
	return &Notifier{
		subs:    make(map[uint]chan EnergyUpdate),
		pending: queue.NewBounded[EnergyUpdate](pendingLimit),
	}
}

// Subscribe registers a player's live connection and returns the channel the
// transport should forward from. Re-subscribing replaces the old channel.
func (n *Notifier) Subscribe(playerID uint) <-chan EnergyUpdate {
	n.mu.Lock()
	defer n.mu.Unlock()
	if old, ok := n.subs[playerID]; ok {
		close(old)
	}
	ch := make(chan EnergyUpdate, subscriberBuffer)
	n.subs[playerID] = ch
	return ch
}

// Unsubscribe drops a player's connection.
func (n *Notifier) Unsubscribe(playerID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ch, ok := n.subs[playerID]; ok {
		close(ch)
		delete(n.subs, playerID)
	}
}

// Connected returns the ids of all currently subscribed players.
func (n *Notifier) Connected() []uint {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]uint, 0, len(n.subs))
	for id := range n.subs {
		ids = append(ids, id)
	}
	return ids
}

// Push buffers an update for delivery on the next Flush.
func (n *Notifier) Push(u EnergyUpdate) {
	n.pending.Push(u)
}

// Flush delivers every buffered update to its player's channel, if
// subscribed. Updates for players without a live connection are discarded; a
// full subscriber channel drops the update rather than blocking the engine.
func (n *Notifier) Flush() {
	updates := n.pending.Drain()
	if len(updates) == 0 {
		return
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, u := range updates {
		ch, ok := n.subs[u.PlayerID]
		if !ok {
			continue
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Pending returns how many updates await the next Flush.
func (n *Notifier) Pending() int {
	return n.pending.Len()
}
