// Package engine runs the external document-processing engine as a
// worker subprocess and exposes it through the document.Engine
// interface. One worker is started per loaded document; the protocol is
// newline-delimited JSON over the worker's stdin/stdout.
package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
)

// Protocol size cap; a rendered page at high scale is the largest frame.
const maxFrameSize = 64 << 20

var ErrWorkerExited = errors.New("engine worker exited")

type request struct {
	Op         string                 `json:"op"`
	Data       []byte                 `json:"data,omitempty"`
	PageIndex  int                    `json:"pageIndex,omitempty"`
	Scale      float64                `json:"scale,omitempty"`
	Query      string                 `json:"query,omitempty"`
	Ref        string                 `json:"ref,omitempty"`
	Annotation *annotation.Annotation `json:"annotation,omitempty"`
}

type response struct {
	OK          bool                     `json:"ok"`
	Error       string                   `json:"error,omitempty"`
	PageCount   int                      `json:"pageCount,omitempty"`
	Page        *document.Page           `json:"page,omitempty"`
	Matches     []document.Match         `json:"matches,omitempty"`
	Ref         string                   `json:"ref,omitempty"`
	Annotations []*annotation.Annotation `json:"annotations,omitempty"`
	PNG         []byte                   `json:"png,omitempty"`
	Data        []byte                   `json:"data,omitempty"`
}

// Worker talks to one engine subprocess. Calls are strictly
// request/response; the mutex keeps concurrent callers from interleaving
// frames.
type Worker struct {
	path string
	args []string
	env  []string // nil inherits the parent environment

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	scanner *bufio.Scanner
}

// NewWorker prepares a worker around the engine binary at path. The
// process starts on the first Load call.
func NewWorker(path string, args ...string) *Worker {
	return &Worker{path: path, args: args}
}

// Factory returns a document.Engine factory spawning one worker per
// document.
func Factory(path string, args ...string) func() document.Engine {
	return func() document.Engine {
		return NewWorker(path, args...)
	}
}

func (w *Worker) startLocked() error {
	cmd := exec.Command(w.path, w.args...)
	cmd.Env = w.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	w.cmd = cmd
	w.stdin = stdin
	w.scanner = scanner
	slog.Debug("engine worker started", "path", w.path, "pid", cmd.Process.Pid)
	return nil
}

func (w *Worker) call(ctx context.Context, req *request) (*response, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cmd == nil {
		if err := w.startLocked(); err != nil {
			return nil, err
		}
	}

	frame, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	frame = append(frame, '\n')
	if _, err := w.stdin.Write(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWorkerExited, err)
	}

	type result struct {
		resp *response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		if !w.scanner.Scan() {
			err := w.scanner.Err()
			if err == nil {
				err = io.EOF
			}
			ch <- result{nil, fmt.Errorf("%w: %v", ErrWorkerExited, err)}
			return
		}
		var resp response
		if err := json.Unmarshal(w.scanner.Bytes(), &resp); err != nil {
			ch <- result{nil, fmt.Errorf("decode engine response: %w", err)}
			return
		}
		ch <- result{&resp, nil}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if !r.resp.OK {
			return nil, fmt.Errorf("engine: %s", r.resp.Error)
		}
		return r.resp, nil
	case <-ctx.Done():
		// The protocol has no cancellation; killing the worker is the
		// only way to unblock the reader.
		w.cmd.Process.Kill()
		return nil, ctx.Err()
	}
}

func (w *Worker) Load(ctx context.Context, data []byte) (int, error) {
	resp, err := w.call(ctx, &request{Op: "load", Data: data})
	if err != nil {
		return 0, err
	}
	return resp.PageCount, nil
}

func (w *Worker) ParsePage(ctx context.Context, index int) (document.Page, error) {
	resp, err := w.call(ctx, &request{Op: "parsePage", PageIndex: index})
	if err != nil {
		return document.Page{}, err
	}
	if resp.Page == nil {
		return document.Page{}, errors.New("engine: parsePage returned no page")
	}
	return *resp.Page, nil
}

func (w *Worker) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	resp, err := w.call(ctx, &request{Op: "renderPage", PageIndex: index, Scale: scale})
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(resp.PNG))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}

func (w *Worker) Search(ctx context.Context, index int, query string) ([]document.Match, error) {
	resp, err := w.call(ctx, &request{Op: "search", PageIndex: index, Query: query})
	if err != nil {
		return nil, err
	}
	return resp.Matches, nil
}

func (w *Worker) WriteOverlayObject(ctx context.Context, a *annotation.Annotation) (string, error) {
	resp, err := w.call(ctx, &request{Op: "writeObject", Annotation: a})
	if err != nil {
		return "", err
	}
	return resp.Ref, nil
}

func (w *Worker) DeleteOverlayObject(ctx context.Context, ref string) error {
	_, err := w.call(ctx, &request{Op: "deleteObject", Ref: ref})
	return err
}

func (w *Worker) LoadOverlayObjects(ctx context.Context, index int) ([]*annotation.Annotation, error) {
	resp, err := w.call(ctx, &request{Op: "loadObjects", PageIndex: index})
	if err != nil {
		return nil, err
	}
	return resp.Annotations, nil
}

func (w *Worker) Serialize(ctx context.Context) ([]byte, error) {
	resp, err := w.call(ctx, &request{Op: "serialize"})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Close shuts the worker process down.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cmd == nil {
		return nil
	}
	w.stdin.Close()
	err := w.cmd.Wait()
	w.cmd = nil
	return err
}

var _ document.Engine = (*Worker)(nil)
