package editor

import (
	"context"
	"fmt"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/history"
)

// fakeEngine is an in-memory stand-in for the external document engine.
type fakeEngine struct {
	pages   []document.Page
	overlay map[int][]*annotation.Annotation // parsed objects per page
	objects map[string]*annotation.Annotation
	nextRef int
}

func newFakeEngine(pages ...document.Page) *fakeEngine {
	return &fakeEngine{
		pages:   pages,
		overlay: make(map[int][]*annotation.Annotation),
		objects: make(map[string]*annotation.Annotation),
	}
}

func (f *fakeEngine) Load(ctx context.Context, data []byte) (int, error) {
	return len(f.pages), nil
}

func (f *fakeEngine) ParsePage(ctx context.Context, index int) (document.Page, error) {
	if index < 0 || index >= len(f.pages) {
		return document.Page{}, fmt.Errorf("no page %d", index)
	}
	return f.pages[index], nil
}

func (f *fakeEngine) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (f *fakeEngine) Search(ctx context.Context, index int, query string) ([]document.Match, error) {
	return nil, nil
}

func (f *fakeEngine) WriteOverlayObject(ctx context.Context, a *annotation.Annotation) (string, error) {
	ref := a.EngineRef
	if ref == "" {
		f.nextRef++
		ref = fmt.Sprintf("obj-%d", f.nextRef)
	}
	clone := a.Clone()
	clone.EngineRef = ref
	f.objects[ref] = clone
	return ref, nil
}

func (f *fakeEngine) DeleteOverlayObject(ctx context.Context, ref string) error {
	if _, ok := f.objects[ref]; !ok {
		return fmt.Errorf("no object %s", ref)
	}
	delete(f.objects, ref)
	return nil
}

func (f *fakeEngine) LoadOverlayObjects(ctx context.Context, index int) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	for _, a := range f.overlay[index] {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (f *fakeEngine) Serialize(ctx context.Context) ([]byte, error) {
	return []byte(fmt.Sprintf("doc with %d objects", len(f.objects))), nil
}

// fakeFileStore records saves.
type fakeFileStore struct {
	saved map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{saved: make(map[string][]byte)}
}

func (f *fakeFileStore) Save(ctx context.Context, name string, data []byte) error {
	f.saved[name] = data
	return nil
}

func (f *fakeFileStore) Read(ctx context.Context, path string) ([]byte, error) {
	return []byte("raw"), nil
}

func newTestEditor(eng *fakeEngine) (*Editor, *fakeFileStore) {
	files := newFakeFileStore()
	ed := New(func() document.Engine { return eng }, files, history.NewLog(0))
	return ed, files
}

func openTestDoc(t *testing.T, ed *Editor) *document.Document {
	t.Helper()
	doc, err := ed.Open(context.Background(), document.File{Name: "test.pdf", Data: []byte("raw")})
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func annotIDs(t *testing.T, ed *Editor, docID string) []string {
	t.Helper()
	all, err := ed.Annotations(docID)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, a := range all {
		out = append(out, a.ID)
	}
	return out
}

func TestOpenParsesPagesAndOverlayObjects(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792}, document.Page{Width: 612, Height: 792})
	eng.overlay[1] = []*annotation.Annotation{
		{Type: annotation.TypeHighlight, X: 10, Y: 20, Width: 100, Height: 12, EngineRef: "obj-h1"},
	}

	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)

	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}
	all, _ := ed.Annotations(doc.ID)
	if len(all) != 1 {
		t.Fatalf("annotations = %d, want 1", len(all))
	}
	if all[0].PageIndex != 1 || all[0].EngineRef != "obj-h1" {
		t.Errorf("parsed annotation = %+v", all[0])
	}
	if all[0].ID == "" {
		t.Error("parsed annotation should get a fresh ID")
	}
}

func TestReloadDoesNotDuplicate(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	eng.overlay[0] = []*annotation.Annotation{
		{Type: annotation.TypeText, X: 10, Y: 20, EngineRef: "obj-t1"},
	}

	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)

	if err := ed.ReloadAnnotations(context.Background(), doc.ID); err != nil {
		t.Fatal(err)
	}
	all, _ := ed.Annotations(doc.ID)
	if len(all) != 1 {
		t.Errorf("annotations after reload = %d, want 1", len(all))
	}
}

func TestAddRemoveUndoScenario(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	a := &annotation.Annotation{ID: "annot_a", Type: annotation.TypeText, X: 1, Y: 1}
	b := &annotation.Annotation{ID: "annot_b", Type: annotation.TypeText, X: 2, Y: 2}

	if err := ed.AddAnnotation(ctx, doc.ID, a); err != nil {
		t.Fatal(err)
	}
	if err := ed.AddAnnotation(ctx, doc.ID, b); err != nil {
		t.Fatal(err)
	}
	if err := ed.RemoveAnnotation(ctx, doc.ID, "annot_a"); err != nil {
		t.Fatal(err)
	}

	if !ed.CanUndo() {
		t.Fatal("CanUndo should be true")
	}
	if diff := cmp.Diff([]string{"annot_b"}, annotIDs(t, ed, doc.ID)); diff != "" {
		t.Fatalf("after removeA (-want +got):\n%s", diff)
	}

	// Undo the remove: A is resident again.
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"annot_b", "annot_a"}, annotIDs(t, ed, doc.ID)); diff != "" {
		t.Fatalf("after undo remove (-want +got):\n%s", diff)
	}

	// Undo addB, then addA: empty set.
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := annotIDs(t, ed, doc.ID); len(got) != 0 {
		t.Fatalf("after all undos = %v, want empty", got)
	}
	if ed.CanUndo() {
		t.Error("CanUndo should be false")
	}

	// A further undo is a no-op.
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := annotIDs(t, ed, doc.ID); len(got) != 0 {
		t.Fatalf("no-op undo changed state: %v", got)
	}

	// Redo everything: B, then A added back, then A removed again.
	for i := 0; i < 3; i++ {
		if err := ed.Redo(); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"annot_b"}, annotIDs(t, ed, doc.ID)); diff != "" {
		t.Fatalf("after redos (-want +got):\n%s", diff)
	}
}

func TestApplyAnnotationUpdateUndoRestoresBefore(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	a := &annotation.Annotation{
		ID: "annot_a", Type: annotation.TypeShape, X: 10, Y: 10, Width: 40, Height: 20,
		Shape: &annotation.ShapeStyle{Kind: annotation.ShapeRectangle, Stroke: "#ff0000"},
	}
	if err := ed.AddAnnotation(ctx, doc.ID, a); err != nil {
		t.Fatal(err)
	}

	x, w := 99.0, 80.0
	if err := ed.ApplyAnnotationUpdate(ctx, doc.ID, "annot_a", Update{X: &x, Width: &w}); err != nil {
		t.Fatal(err)
	}

	got, _ := ed.Annotations(doc.ID)
	if got[0].X != 99 || got[0].Width != 80 {
		t.Fatalf("update not applied: %+v", got[0])
	}
	if got[0].Y != 10 || got[0].Shape.Stroke != "#ff0000" {
		t.Errorf("partial update touched unrelated fields: %+v", got[0])
	}

	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	got, _ = ed.Annotations(doc.ID)
	if got[0].X != 10 || got[0].Width != 40 {
		t.Errorf("undo did not restore before snapshot: %+v", got[0])
	}

	if err := ed.Redo(); err != nil {
		t.Fatal(err)
	}
	got, _ = ed.Annotations(doc.ID)
	if got[0].X != 99 || got[0].Width != 80 {
		t.Errorf("redo did not restore after snapshot: %+v", got[0])
	}
}

func TestRecordsHoldOwnedCopies(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	a := &annotation.Annotation{ID: "annot_a", Type: annotation.TypeText, X: 10, Y: 10}
	if err := ed.AddAnnotation(ctx, doc.ID, a); err != nil {
		t.Fatal(err)
	}
	x1 := 50.0
	if err := ed.ApplyAnnotationUpdate(ctx, doc.ID, "annot_a", Update{X: &x1}); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's annotation after the fact must not leak into
	// the recorded snapshots.
	a.X = 12345

	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	got, _ := ed.Annotations(doc.ID)
	if got[0].X != 10 {
		t.Errorf("undo restored %v, want the captured 10", got[0].X)
	}
}

func TestPageRotateUndo(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)

	if err := ed.RotatePage(doc.ID, 0, 90); err != nil {
		t.Fatal(err)
	}
	if doc.Pages[0].Rotation != 90 {
		t.Fatalf("rotation = %v, want 90", doc.Pages[0].Rotation)
	}
	if err := ed.RotatePage(doc.ID, 0, 90); err != nil {
		t.Fatal(err)
	}
	if doc.Pages[0].Rotation != 180 {
		t.Fatalf("rotation = %v, want 180", doc.Pages[0].Rotation)
	}

	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if doc.Pages[0].Rotation != 90 {
		t.Errorf("rotation after undo = %v, want 90", doc.Pages[0].Rotation)
	}
}

func TestDeletePageRemovesAndRestoresAnnotations(t *testing.T) {
	eng := newFakeEngine(
		document.Page{Width: 612, Height: 792},
		document.Page{Width: 612, Height: 792},
		document.Page{Width: 612, Height: 792},
	)
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	mid := &annotation.Annotation{ID: "annot_mid", Type: annotation.TypeText, PageIndex: 1}
	last := &annotation.Annotation{ID: "annot_last", Type: annotation.TypeText, PageIndex: 2}
	if err := ed.AddAnnotation(ctx, doc.ID, mid); err != nil {
		t.Fatal(err)
	}
	if err := ed.AddAnnotation(ctx, doc.ID, last); err != nil {
		t.Fatal(err)
	}

	if err := ed.DeletePage(doc.ID, 1); err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}
	all, _ := ed.Annotations(doc.ID)
	if len(all) != 1 || all[0].ID != "annot_last" || all[0].PageIndex != 1 {
		t.Fatalf("after delete: %+v", all)
	}

	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 3 {
		t.Fatalf("pages after undo = %d, want 3", len(doc.Pages))
	}
	all, _ = ed.Annotations(doc.ID)
	byID := make(map[string]int)
	for _, a := range all {
		byID[a.ID] = a.PageIndex
	}
	if byID["annot_mid"] != 1 || byID["annot_last"] != 2 {
		t.Errorf("page indices after undo: %v", byID)
	}
}

func TestPastePageCopiesAnnotations(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	src := &annotation.Annotation{ID: "annot_src", Type: annotation.TypeText, PageIndex: 0}
	if err := ed.AddAnnotation(ctx, doc.ID, src); err != nil {
		t.Fatal(err)
	}

	if err := ed.PastePage(doc.ID, 1, doc.Pages[0], []*annotation.Annotation{src}); err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(doc.Pages))
	}
	all, _ := ed.Annotations(doc.ID)
	if len(all) != 2 {
		t.Fatalf("annotations = %d, want 2", len(all))
	}
	var pasted *annotation.Annotation
	for _, a := range all {
		if a.ID != "annot_src" {
			pasted = a
		}
	}
	if pasted == nil || pasted.PageIndex != 1 {
		t.Fatalf("pasted copy = %+v", pasted)
	}
	if pasted.EngineRef != "" {
		t.Error("pasted copy must not alias the source's engine object")
	}
}

func TestCloseDropsHistory(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	if err := ed.AddAnnotation(ctx, doc.ID, &annotation.Annotation{ID: "annot_a", Type: annotation.TypeText}); err != nil {
		t.Fatal(err)
	}
	if !ed.CanUndo() {
		t.Fatal("CanUndo should be true")
	}

	ed.Close(doc.ID)
	if ed.CanUndo() {
		t.Error("closing the document should drop its history records")
	}
	if _, err := ed.Annotations(doc.ID); err != ErrDocumentNotFound {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestSaveSerializesThroughEngine(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, files := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	if err := ed.AddAnnotation(ctx, doc.ID, &annotation.Annotation{ID: "annot_a", Type: annotation.TypeText}); err != nil {
		t.Fatal(err)
	}
	if err := ed.Save(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	if string(files.saved["test.pdf"]) != "doc with 1 objects" {
		t.Errorf("saved %q", files.saved["test.pdf"])
	}
}

func TestAnnotationAtReturnsTopmost(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	under := &annotation.Annotation{ID: "annot_under", Type: annotation.TypeShape, X: 0, Y: 0, Width: 100, Height: 100}
	over := &annotation.Annotation{ID: "annot_over", Type: annotation.TypeShape, X: 40, Y: 40, Width: 20, Height: 20}
	if err := ed.AddAnnotation(ctx, doc.ID, under); err != nil {
		t.Fatal(err)
	}
	if err := ed.AddAnnotation(ctx, doc.ID, over); err != nil {
		t.Fatal(err)
	}

	got, err := ed.AnnotationAt(doc.ID, 0, 50, 50)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != "annot_over" {
		t.Errorf("hit = %+v, want annot_over", got)
	}

	got, _ = ed.AnnotationAt(doc.ID, 0, 10, 10)
	if got == nil || got.ID != "annot_under" {
		t.Errorf("hit = %+v, want annot_under", got)
	}

	got, _ = ed.AnnotationAt(doc.ID, 1, 50, 50)
	if got != nil {
		t.Errorf("wrong page hit = %+v", got)
	}
}

func TestPushAfterUndoDiscardsRedo(t *testing.T) {
	eng := newFakeEngine(document.Page{Width: 612, Height: 792})
	ed, _ := newTestEditor(eng)
	doc := openTestDoc(t, ed)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := &annotation.Annotation{ID: fmt.Sprintf("annot_%d", i), Type: annotation.TypeText}
		if err := ed.AddAnnotation(ctx, doc.ID, a); err != nil {
			t.Fatal(err)
		}
	}
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if err := ed.Undo(); err != nil {
		t.Fatal(err)
	}
	if !ed.CanRedo() {
		t.Fatal("CanRedo should be true")
	}

	if err := ed.AddAnnotation(ctx, doc.ID, &annotation.Annotation{ID: "annot_new", Type: annotation.TypeText}); err != nil {
		t.Fatal(err)
	}
	if ed.CanRedo() {
		t.Error("pushing after undos must discard the redo branch")
	}
	if diff := cmp.Diff([]string{"annot_0", "annot_new"}, annotIDs(t, ed, doc.ID)); diff != "" {
		t.Errorf("resident IDs (-want +got):\n%s", diff)
	}
}
