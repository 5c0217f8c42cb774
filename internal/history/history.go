// Package history implements the undo/redo transaction log. Every mutating
// operation in the editor is wrapped as exactly one Record whose command
// object holds owned copies of the before/after state, so a record never
// observes state mutated after its creation.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pagemark/pagemark/backend-go/internal/typeid"
)

// DefaultLimit caps the log length; pushing beyond it evicts the oldest
// record.
const DefaultLimit = 50

var (
	ErrUndoFailed = errors.New("undo failed")
	ErrRedoFailed = errors.New("redo failed")
)

// Kind tags what a record changed.
type Kind string

const (
	KindAnnotationAdd    Kind = "annotation.add"
	KindAnnotationRemove Kind = "annotation.remove"
	KindAnnotationUpdate Kind = "annotation.update"
	KindPageInsert       Kind = "page.insert"
	KindPageDelete       Kind = "page.delete"
	KindPagePaste        Kind = "page.paste"
	KindPageRotate       Kind = "page.rotate"
)

// Command applies or rolls back one recorded mutation. Implementations
// hold owned copies of whatever they need; they must not capture mutable
// variables that change after the record is created.
type Command interface {
	Undo() error
	Redo() error
}

// Record is one undoable unit. Immutable once pushed; only the log's
// cursor moves.
type Record struct {
	ID         string
	Kind       Kind
	DocumentID string
	Timestamp  int64

	cmd Command
}

// NewRecord builds a record around a self-sufficient command object.
func NewRecord(kind Kind, documentID string, cmd Command) *Record {
	return &Record{
		ID:         typeid.NewTransactionID(),
		Kind:       kind,
		DocumentID: documentID,
		Timestamp:  time.Now().UnixMilli(),
		cmd:        cmd,
	}
}

// Log is an ordered sequence of records plus a cursor pointing at the
// last applied record. It is confined to the single event-loop goroutine
// that drives editing; pushes and cursor moves are atomic relative to all
// other log reads in the same tick.
type Log struct {
	records []*Record
	current int // index of the last applied record, -1 when none
	limit   int
}

// NewLog creates an empty log. A non-positive limit means DefaultLimit.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Log{current: -1, limit: limit}
}

// Push appends a record for an already-applied mutation. Records after
// the cursor (previously undone) are discarded: there is no redo
// branching. When the cap is exceeded the oldest record is evicted and
// the cursor shifts down by one.
func (l *Log) Push(r *Record) {
	l.records = append(l.records[:l.current+1], r)
	l.current = len(l.records) - 1

	if len(l.records) > l.limit {
		l.records = append(l.records[:0], l.records[1:]...)
		l.current--
	}
}

// Undo rolls back the record at the cursor. A failure is logged and the
// cursor stays put, so the cursor always points at a successfully applied
// record. No-op when there is nothing to undo.
func (l *Log) Undo() error {
	if !l.CanUndo() {
		return nil
	}
	r := l.records[l.current]
	if err := r.cmd.Undo(); err != nil {
		slog.Error("undo failed", "record", r.ID, "kind", r.Kind, "error", err)
		return fmt.Errorf("%w: record %s: %v", ErrUndoFailed, r.ID, err)
	}
	l.current--
	return nil
}

// Redo reapplies the record after the cursor. Same failure contract as
// Undo. No-op when there is nothing to redo.
func (l *Log) Redo() error {
	if !l.CanRedo() {
		return nil
	}
	r := l.records[l.current+1]
	if err := r.cmd.Redo(); err != nil {
		slog.Error("redo failed", "record", r.ID, "kind", r.Kind, "error", err)
		return fmt.Errorf("%w: record %s: %v", ErrRedoFailed, r.ID, err)
	}
	l.current++
	return nil
}

// CanUndo reports whether a record is available to undo.
func (l *Log) CanUndo() bool {
	return l.current >= 0
}

// CanRedo reports whether a previously undone record is available.
func (l *Log) CanRedo() bool {
	return l.current < len(l.records)-1
}

// Len returns the number of records held.
func (l *Log) Len() int {
	return len(l.records)
}

// Clear resets the log to empty.
func (l *Log) Clear() {
	l.records = nil
	l.current = -1
}

// DropDocument removes all records belonging to a closed document,
// adjusting the cursor so it keeps pointing at the same logical record.
func (l *Log) DropDocument(documentID string) {
	kept := l.records[:0]
	cursor := l.current
	for i, r := range l.records {
		if r.DocumentID == documentID {
			if i <= l.current {
				cursor--
			}
			continue
		}
		kept = append(kept, r)
	}
	l.records = kept
	l.current = cursor
}
