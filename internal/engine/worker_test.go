package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
)

// TestHelperProcess implements a fake engine worker over stdio. It is
// not a real test; worker tests re-exec the test binary with this as
// the entry point.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("ENGINE_WORKER_HELPER") != "1" {
		return
	}
	defer os.Exit(0)

	out := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	refs := 0
	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			out.Encode(response{Error: err.Error()})
			continue
		}

		switch req.Op {
		case "load":
			out.Encode(response{OK: true, PageCount: 2})
		case "parsePage":
			if req.PageIndex < 0 || req.PageIndex >= 2 {
				out.Encode(response{Error: fmt.Sprintf("no page %d", req.PageIndex)})
				continue
			}
			out.Encode(response{OK: true, Page: &document.Page{Width: 612, Height: 792}})
		case "search":
			out.Encode(response{OK: true, Matches: []document.Match{{PageIndex: req.PageIndex}}})
		case "writeObject":
			refs++
			out.Encode(response{OK: true, Ref: fmt.Sprintf("obj-%d", refs)})
		case "deleteObject":
			out.Encode(response{OK: true})
		case "loadObjects":
			out.Encode(response{OK: true, Annotations: []*annotation.Annotation{
				{Type: annotation.TypeText, EngineRef: "obj-existing"},
			}})
		case "serialize":
			out.Encode(response{OK: true, Data: []byte("serialized-document")})
		default:
			out.Encode(response{Error: "unknown op " + req.Op})
		}
	}
}

func helperWorker(t *testing.T) *Worker {
	t.Helper()
	w := NewWorker(os.Args[0], "-test.run=TestHelperProcess")
	w.env = append(os.Environ(), "ENGINE_WORKER_HELPER=1")
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWorkerRoundTrip(t *testing.T) {
	w := helperWorker(t)
	ctx := context.Background()

	pages, err := w.Load(ctx, []byte("%PDF-1.7"))
	if err != nil {
		t.Fatal(err)
	}
	if pages != 2 {
		t.Errorf("pages = %d, want 2", pages)
	}

	page, err := w.ParsePage(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if page.Width != 612 || page.Height != 792 {
		t.Errorf("page = %+v", page)
	}

	ref, err := w.WriteOverlayObject(ctx, &annotation.Annotation{Type: annotation.TypeText})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "obj-1" {
		t.Errorf("ref = %q", ref)
	}

	annots, err := w.LoadOverlayObjects(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(annots) != 1 || annots[0].EngineRef != "obj-existing" {
		t.Errorf("annots = %+v", annots)
	}

	data, err := w.Serialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "serialized-document" {
		t.Errorf("data = %q", data)
	}
}

func TestWorkerEngineErrorSurfaces(t *testing.T) {
	w := helperWorker(t)
	ctx := context.Background()

	if _, err := w.Load(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := w.ParsePage(ctx, 99); err == nil {
		t.Error("out-of-range page should fail")
	}
	// The worker survives a rejected request.
	if _, err := w.ParsePage(ctx, 1); err != nil {
		t.Errorf("worker unusable after error: %v", err)
	}
}

func TestWorkerContextCancelKillsProcess(t *testing.T) {
	w := NewWorker(os.Args[0], "-test.run=TestHelperProcess")
	// Without the env flag the helper exits immediately and never
	// answers, so the call blocks until the context fires.
	t.Cleanup(func() { w.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.Load(ctx, nil)
		done <- err
	}()
	cancel()

	if err := <-done; err == nil {
		t.Error("cancelled call should fail")
	}
}
