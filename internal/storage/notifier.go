package storage

import "sync"

const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

const (
	TableEntities     = "entities"
	TableTransactions = "transactions"
)

// Change describes one store mutation. Seq increases monotonically with
// every emitted change; consumers that reload on notification record the
// sequence they loaded at and discard results that are no longer current,
// closing the stale-reload race a late response could otherwise cause.
type Change struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
	Seq   uint64 `json:"seq"`
}

// Notifier fans out change notifications to in-process subscribers.
type Notifier struct {
	mu     sync.Mutex
	seq    uint64
	nextID int
	subs   map[int]func(Change)
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]func(Change))}
}

// Subscribe registers a callback and returns its unsubscribe function.
// Callbacks run synchronously on the mutating goroutine; subscribers that do
// real work should hand off to their own goroutine.
func (n *Notifier) Subscribe(fn func(Change)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Notify assigns the next sequence number and delivers the change to every
// subscriber. Returns the change with its sequence filled in.
func (n *Notifier) Notify(table, op, id string) Change {
	n.mu.Lock()
	n.seq++
	c := Change{Table: table, Op: op, ID: id, Seq: n.seq}
	fns := make([]func(Change), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
	return c
}

// Seq returns the sequence number of the most recent change.
func (n *Notifier) Seq() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq
}

// Advance bumps the sequence for a change that originated outside this
// process (consumed from the bus) and fans it out locally.
func (n *Notifier) Advance(c Change) Change {
	return n.Notify(c.Table, c.Op, c.ID)
}
