// Package session bridges webview connections to the editing core. All
// editing runs on the hub goroutine, so every mutation of resident state
// is serialized no matter how many sockets or HTTP handlers request one.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pagemark/pagemark/backend-go/internal/editor"
)

type room struct {
	documentID string
	clients    map[string]*Client // clientID -> client
}

type inboundMessage struct {
	sender *Client
	msg    *Message
}

type task struct {
	fn   func() error
	done chan error
}

// ErrHubStopped is returned by Do after the hub has shut down.
var ErrHubStopped = errors.New("session hub stopped")

// Hub owns the rooms and the editing event loop. Rooms and the editor
// are touched only from Run's goroutine; sockets and HTTP handlers talk
// to it through channels.
type Hub struct {
	editor     *editor.Editor
	rooms      map[string]*room // documentID -> room
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	tasks      chan task
	quit       chan struct{}
	stopped    chan struct{}
}

func NewHub(ed *editor.Editor) *Hub {
	return &Hub{
		editor:     ed,
		rooms:      make(map[string]*room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage, 64),
		tasks:      make(chan task),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case in := <-h.inbound:
			h.handleMessage(in.sender, in.msg)
		case t := <-h.tasks:
			t.done <- t.fn()
		case <-h.quit:
			return
		}
	}
}

// Stop shuts the event loop down and waits for it to drain.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.stopped
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Do runs fn on the hub goroutine and returns its error. HTTP handlers
// use it for editor calls so they never race the socket traffic.
func (h *Hub) Do(fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}
	select {
	case h.tasks <- t:
		return <-t.done
	case <-h.quit:
		return ErrHubStopped
	}
}

func (h *Hub) addClient(client *Client) {
	r, ok := h.rooms[client.DocumentID]
	if !ok {
		r = &room{documentID: client.DocumentID, clients: make(map[string]*Client)}
		h.rooms[client.DocumentID] = r
	}
	r.clients[client.ClientID] = client

	welcome, _ := json.Marshal(WelcomePayload{
		ClientID:   client.ClientID,
		DocumentID: client.DocumentID,
	})
	client.Send(&Message{Type: TypeWelcome, Payload: welcome})

	if state, err := h.stateMessage(client.DocumentID); err == nil {
		client.Send(state)
	}

	slog.Info("client joined", "client", client.ClientID, "document", client.DocumentID)
}

func (h *Hub) removeClient(client *Client) {
	r, ok := h.rooms[client.DocumentID]
	if !ok {
		return
	}
	delete(r.clients, client.ClientID)
	close(client.send)
	if len(r.clients) == 0 {
		delete(h.rooms, client.DocumentID)
	}
	slog.Info("client left", "client", client.ClientID, "document", client.DocumentID)
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	// Requests that occupy the document engine get a busy bracket so the
	// frontend can show a working indicator.
	switch msg.Type {
	case TypeAnnotAdd, TypeAnnotUpdate, TypeAnnotRemove, TypeSearch:
		h.broadcastBusy(msg.DocumentID, true)
		defer h.broadcastBusy(msg.DocumentID, false)
	}

	var err error
	switch msg.Type {
	case TypeDocSync:
		err = h.handleDocSync(sender)
	case TypeAnnotAdd:
		err = h.handleAnnotAdd(msg)
	case TypeAnnotUpdate:
		err = h.handleAnnotUpdate(msg)
	case TypeAnnotRemove:
		err = h.handleAnnotRemove(msg)
	case TypePageInsert:
		err = h.handlePageInsert(msg)
	case TypePageDelete:
		err = h.handlePageDelete(msg)
	case TypePagePaste:
		err = h.handlePagePaste(msg)
	case TypePageRotate:
		err = h.handlePageRotate(msg)
	case TypeHistoryUndo:
		err = h.editor.Undo()
	case TypeHistoryRedo:
		err = h.editor.Redo()
	case TypeSearch:
		err = h.handleSearch(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		return
	}

	if err != nil {
		slog.Warn("request rejected", "type", msg.Type, "client", sender.ClientID, "error", err)
		h.sendError(sender, msg.Type, err)
		return
	}

	// Queries answer the sender directly; everything else changed state.
	switch msg.Type {
	case TypeDocSync, TypeSearch:
	default:
		h.broadcastState(msg.DocumentID)
	}
}

func (h *Hub) handleDocSync(sender *Client) error {
	state, err := h.stateMessage(sender.DocumentID)
	if err != nil {
		return err
	}
	sender.Send(state)
	return nil
}

func (h *Hub) handleAnnotAdd(msg *Message) error {
	var p AnnotAddPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	if p.Annotation == nil {
		return errors.New("missing annotation")
	}
	return h.editor.AddAnnotation(context.Background(), msg.DocumentID, p.Annotation)
}

func (h *Hub) handleAnnotUpdate(msg *Message) error {
	var p AnnotUpdatePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.ApplyAnnotationUpdate(context.Background(), msg.DocumentID, p.ID, p.Update)
}

func (h *Hub) handleAnnotRemove(msg *Message) error {
	var p AnnotRemovePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.RemoveAnnotation(context.Background(), msg.DocumentID, p.ID)
}

func (h *Hub) handlePageInsert(msg *Message) error {
	var p PageInsertPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.InsertPage(msg.DocumentID, p.Index, p.Page)
}

func (h *Hub) handlePageDelete(msg *Message) error {
	var p PageDeletePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.DeletePage(msg.DocumentID, p.Index)
}

func (h *Hub) handlePagePaste(msg *Message) error {
	var p PagePastePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.PastePage(msg.DocumentID, p.Index, p.Page, p.Annotations)
}

func (h *Hub) handlePageRotate(msg *Message) error {
	var p PageRotatePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return h.editor.RotatePage(msg.DocumentID, p.Index, p.ByDegrees)
}

func (h *Hub) handleSearch(sender *Client, msg *Message) error {
	var p SearchPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	matches, err := h.editor.Search(context.Background(), msg.DocumentID, p.PageIndex, p.Query)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(SearchResultPayload{
		PageIndex: p.PageIndex,
		Query:     p.Query,
		Matches:   matches,
	})
	if err != nil {
		return err
	}
	sender.Send(&Message{Type: TypeSearchResult, DocumentID: msg.DocumentID, Payload: payload})
	return nil
}

func (h *Hub) stateMessage(documentID string) (*Message, error) {
	doc, err := h.editor.Document(documentID)
	if err != nil {
		return nil, err
	}
	annots, err := h.editor.Annotations(documentID)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(DocStatePayload{
		ID:          doc.ID,
		Name:        doc.Name,
		Pages:       doc.Pages,
		Annotations: annots,
		CanUndo:     h.editor.CanUndo(),
		CanRedo:     h.editor.CanRedo(),
	})
	if err != nil {
		return nil, err
	}
	return &Message{Type: TypeDocState, DocumentID: documentID, Payload: payload}, nil
}

func (h *Hub) broadcastState(documentID string) {
	r, ok := h.rooms[documentID]
	if !ok {
		return
	}
	state, err := h.stateMessage(documentID)
	if err != nil {
		slog.Error("build document state", "document", documentID, "error", err)
		return
	}
	for _, c := range r.clients {
		c.Send(state)
	}
}

func (h *Hub) broadcastBusy(documentID string, busy bool) {
	r, ok := h.rooms[documentID]
	if !ok {
		return
	}
	payload, _ := json.Marshal(BusyPayload{Busy: busy})
	msg := &Message{Type: TypeDocBusy, DocumentID: documentID, Payload: payload}
	for _, c := range r.clients {
		c.Send(msg)
	}
}

func (h *Hub) sendError(sender *Client, requestType string, err error) {
	payload, _ := json.Marshal(ErrorPayload{RequestType: requestType, Reason: err.Error()})
	sender.Send(&Message{Type: TypeError, Payload: payload})
}
