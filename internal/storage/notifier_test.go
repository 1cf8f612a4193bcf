package storage

import "testing"

func TestNotifierSequenceIsMonotonic(t *testing.T) {
	n := NewNotifier()
	c1 := n.Notify(TableTransactions, OpInsert, "a")
	c2 := n.Notify(TableTransactions, OpUpdate, "a")
	if c1.Seq != 1 || c2.Seq != 2 {
		t.Fatalf("seqs = %d, %d", c1.Seq, c2.Seq)
	}
	if n.Seq() != 2 {
		t.Fatalf("Seq() = %d, want 2", n.Seq())
	}
}

func TestNotifierUnsubscribe(t *testing.T) {
	n := NewNotifier()
	var a, b int
	unsubA := n.Subscribe(func(Change) { a++ })
	n.Subscribe(func(Change) { b++ })

	n.Notify(TableEntities, OpInsert, "x")
	unsubA()
	n.Notify(TableEntities, OpDelete, "x")

	if a != 1 || b != 2 {
		t.Fatalf("a=%d b=%d, want 1 and 2", a, b)
	}
}

func TestNotifierAdvanceForRemoteChanges(t *testing.T) {
	n := NewNotifier()
	n.Notify(TableTransactions, OpInsert, "local")

	// A change consumed from the bus gets a fresh local sequence number.
	c := n.Advance(Change{Table: TableTransactions, Op: OpUpdate, ID: "remote", Seq: 99})
	if c.Seq != 2 {
		t.Fatalf("advanced seq = %d, want locally assigned 2", c.Seq)
	}
}
