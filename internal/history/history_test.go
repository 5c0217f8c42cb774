package history

import (
	"errors"
	"fmt"
	"testing"
)

// counterCmd mutates a shared int so tests can observe apply/rollback.
type counterCmd struct {
	target  *int
	from    int
	to      int
	undoErr error
	redoErr error
}

func (c *counterCmd) Undo() error {
	if c.undoErr != nil {
		return c.undoErr
	}
	*c.target = c.from
	return nil
}

func (c *counterCmd) Redo() error {
	if c.redoErr != nil {
		return c.redoErr
	}
	*c.target = c.to
	return nil
}

func push(l *Log, target *int, from, to int) {
	*target = to
	l.Push(NewRecord(KindAnnotationUpdate, "doc_test", &counterCmd{target: target, from: from, to: to}))
}

func TestUndoRedoRoundTrip(t *testing.T) {
	l := NewLog(0)
	state := 0

	const n = 7
	for i := 0; i < n; i++ {
		push(l, &state, i, i+1)
	}
	if state != n {
		t.Fatalf("state = %d, want %d", state, n)
	}

	for i := 0; i < n; i++ {
		if err := l.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if state != 0 {
		t.Errorf("state after %d undos = %d, want 0", n, state)
	}
	if l.CanUndo() {
		t.Error("CanUndo should be false at the bottom of the log")
	}

	// Further undos are no-ops.
	if err := l.Undo(); err != nil {
		t.Errorf("undo past bottom: %v", err)
	}
	if state != 0 {
		t.Errorf("no-op undo changed state to %d", state)
	}

	for i := 0; i < n; i++ {
		if err := l.Redo(); err != nil {
			t.Fatalf("redo %d: %v", i, err)
		}
	}
	if state != n {
		t.Errorf("state after redos = %d, want %d", state, n)
	}
	if l.CanRedo() {
		t.Error("CanRedo should be false at the top of the log")
	}
}

func TestPushAfterUndoDiscardsRedoBranch(t *testing.T) {
	l := NewLog(0)
	state := 0

	for i := 0; i < 5; i++ {
		push(l, &state, i, i+1)
	}

	const m = 3
	for i := 0; i < m; i++ {
		if err := l.Undo(); err != nil {
			t.Fatal(err)
		}
	}

	lengthBefore := l.Len()
	push(l, &state, 2, 99)

	// history.length after push = (length_before - M) + 1
	if want := lengthBefore - m + 1; l.Len() != want {
		t.Errorf("Len = %d, want %d", l.Len(), want)
	}
	if l.CanRedo() {
		t.Error("redo branch should have been discarded")
	}
	if err := l.Undo(); err != nil {
		t.Fatal(err)
	}
	if state != 2 {
		t.Errorf("undo of new record gave %d, want 2", state)
	}
}

func TestCapEvictsOldest(t *testing.T) {
	l := NewLog(50)
	state := 0

	for i := 0; i < 60; i++ {
		push(l, &state, i, i+1)
	}
	if l.Len() != 50 {
		t.Fatalf("Len = %d, want 50", l.Len())
	}

	// Only the newest 50 records survive; undoing all of them lands on
	// the state the evicted records left behind.
	for l.CanUndo() {
		if err := l.Undo(); err != nil {
			t.Fatal(err)
		}
	}
	if state != 10 {
		t.Errorf("state = %d, want 10", state)
	}
}

func TestUndoFailureLeavesCursor(t *testing.T) {
	l := NewLog(0)
	state := 0

	push(l, &state, 0, 1)
	boom := errors.New("boom")
	state = 2
	l.Push(NewRecord(KindAnnotationUpdate, "doc_test", &counterCmd{target: &state, from: 1, to: 2, undoErr: boom}))

	err := l.Undo()
	if !errors.Is(err, ErrUndoFailed) {
		t.Fatalf("err = %v, want ErrUndoFailed", err)
	}
	// Cursor unchanged: the failing record is still the next undo, and
	// the earlier record is untouched.
	if !l.CanUndo() {
		t.Error("cursor moved despite failure")
	}
	if state != 2 {
		t.Errorf("state = %d, want 2", state)
	}

	// Redo at the top stays a no-op after the failed undo.
	if l.CanRedo() {
		t.Error("CanRedo should be false")
	}
}

func TestRedoFailureLeavesCursor(t *testing.T) {
	l := NewLog(0)
	state := 1
	l.Push(NewRecord(KindAnnotationUpdate, "doc_test", &counterCmd{target: &state, from: 0, to: 1, redoErr: errors.New("boom")}))

	if err := l.Undo(); err != nil {
		t.Fatal(err)
	}
	err := l.Redo()
	if !errors.Is(err, ErrRedoFailed) {
		t.Fatalf("err = %v, want ErrRedoFailed", err)
	}
	if !l.CanRedo() {
		t.Error("cursor moved despite redo failure")
	}
}

func TestClear(t *testing.T) {
	l := NewLog(0)
	state := 0
	push(l, &state, 0, 1)
	l.Clear()
	if l.Len() != 0 || l.CanUndo() || l.CanRedo() {
		t.Error("clear did not reset the log")
	}
}

func TestDropDocument(t *testing.T) {
	l := NewLog(0)
	state := 0

	for i := 0; i < 4; i++ {
		docID := "doc_a"
		if i%2 == 1 {
			docID = "doc_b"
		}
		state = i + 1
		l.Push(NewRecord(KindAnnotationUpdate, docID, &counterCmd{target: &state, from: i, to: i + 1}))
	}

	l.DropDocument("doc_a")
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
	// The remaining records are doc_b's and still undoable in order.
	if err := l.Undo(); err != nil {
		t.Fatal(err)
	}
	if state != 3 {
		t.Errorf("state = %d, want 3", state)
	}
	if err := l.Undo(); err != nil {
		t.Fatal(err)
	}
	if state != 1 {
		t.Errorf("state = %d, want 1", state)
	}
	if l.CanUndo() {
		t.Error("log should be exhausted")
	}
}

func TestRecordMetadata(t *testing.T) {
	r := NewRecord(KindPageRotate, "doc_x", &counterCmd{target: new(int)})
	if r.Kind != KindPageRotate || r.DocumentID != "doc_x" {
		t.Errorf("record metadata: %+v", r)
	}
	if r.ID == "" || r.Timestamp == 0 {
		t.Errorf("missing synthetic ID or timestamp: %+v", r)
	}
	if fmt.Sprintf("%.4s", r.ID) != "txn_" {
		t.Errorf("record ID %q does not carry the txn prefix", r.ID)
	}
}
