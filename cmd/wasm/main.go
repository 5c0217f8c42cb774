//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/editor"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
	"github.com/pagemark/pagemark/backend-go/internal/history"
	"github.com/pagemark/pagemark/backend-go/internal/manipulate"
	"github.com/pagemark/pagemark/backend-go/internal/viewport"
)

var (
	ed   *editor.Editor
	vp   *viewport.Controller
	drag *manipulate.Controller

	// The wasm build hosts one document at a time.
	docID string
)

func main() {
	ed = editor.New(newJSEngine, jsFileStore{}, history.NewLog(0))
	vp = viewport.NewController()
	drag = manipulate.NewController()

	core := js.Global().Get("Object").New()

	// --- Document lifecycle ---
	core.Set("openDocument", js.FuncOf(openDocument))
	core.Set("closeDocument", js.FuncOf(closeDocument))
	core.Set("saveDocument", js.FuncOf(saveDocument))
	core.Set("reloadAnnotations", js.FuncOf(reloadAnnotations))

	// --- Annotation mutations ---
	core.Set("addAnnotation", js.FuncOf(addAnnotation))
	core.Set("updateAnnotation", js.FuncOf(updateAnnotation))
	core.Set("removeAnnotation", js.FuncOf(removeAnnotation))

	// --- Page mutations ---
	core.Set("insertPage", js.FuncOf(insertPage))
	core.Set("deletePage", js.FuncOf(deletePage))
	core.Set("pastePage", js.FuncOf(pastePage))
	core.Set("rotatePage", js.FuncOf(rotatePage))

	// --- History ---
	core.Set("undo", js.FuncOf(undo))
	core.Set("redo", js.FuncOf(redo))
	core.Set("canUndo", js.FuncOf(canUndo))
	core.Set("canRedo", js.FuncOf(canRedo))

	// --- Viewport ---
	core.Set("setContainerSize", js.FuncOf(setContainerSize))
	core.Set("setPageMetadata", js.FuncOf(setPageMetadata))
	core.Set("setViewMode", js.FuncOf(setViewMode))
	core.Set("setFitMode", js.FuncOf(setFitMode))
	core.Set("zoomTo", js.FuncOf(zoomTo))
	core.Set("scrollTo", js.FuncOf(scrollTo))
	core.Set("getViewState", js.FuncOf(getViewState))

	// --- Direct manipulation ---
	core.Set("handleAt", js.FuncOf(handleAt))
	core.Set("beginDrag", js.FuncOf(beginDrag))
	core.Set("updateDrag", js.FuncOf(updateDrag))
	core.Set("endDrag", js.FuncOf(endDrag))
	core.Set("cancelDrag", js.FuncOf(cancelDrag))

	// --- Queries ---
	core.Set("getAnnotations", js.FuncOf(getAnnotations))
	core.Set("annotationAt", js.FuncOf(annotationAt))
	core.Set("search", js.FuncOf(search))

	// Register on global scope
	js.Global().Set("pagemarkCore", core)

	// Signal that WASM is ready
	js.Global().Set("pagemarkWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

// jsFileStore hands file IO to the shell process, which owns the
// native open/save dialogs.
type jsFileStore struct{}

func (jsFileStore) Read(ctx context.Context, path string) ([]byte, error) {
	v := js.Global().Get("pagemarkShell").Call("readFile", path)
	return fromUint8Array(v), nil
}

func (jsFileStore) Save(ctx context.Context, name string, data []byte) error {
	js.Global().Get("pagemarkShell").Call("saveFile", name, toUint8Array(data))
	return nil
}

func fail(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

func failMsg(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// asJSON returns v to JS as a JSON string.
func asJSON(v interface{}) interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return fail(err)
	}
	return js.ValueOf(string(data))
}

// --- Document lifecycle ---

func openDocument(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("openDocument(name, bytes)")
	}

	file := document.File{
		Name: args[0].String(),
		Data: fromUint8Array(args[1]),
	}
	doc, err := ed.Open(context.Background(), file)
	if err != nil {
		return fail(err)
	}
	docID = doc.ID

	return asJSON(map[string]interface{}{
		"id":    doc.ID,
		"name":  doc.Name,
		"pages": doc.Pages,
	})
}

func closeDocument(this js.Value, args []js.Value) interface{} {
	if docID != "" {
		ed.Close(docID)
		docID = ""
	}
	return ok()
}

func saveDocument(this js.Value, args []js.Value) interface{} {
	if err := ed.Save(context.Background(), docID); err != nil {
		return fail(err)
	}
	return ok()
}

func reloadAnnotations(this js.Value, args []js.Value) interface{} {
	if err := ed.ReloadAnnotations(context.Background(), docID); err != nil {
		return fail(err)
	}
	return ok()
}

// --- Annotation mutations ---

func addAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("addAnnotation(annotationJson)")
	}
	var a annotation.Annotation
	if err := json.Unmarshal([]byte(args[0].String()), &a); err != nil {
		return fail(err)
	}
	if err := ed.AddAnnotation(context.Background(), docID, &a); err != nil {
		return fail(err)
	}
	return asJSON(&a)
}

func updateAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("updateAnnotation(id, updateJson)")
	}
	var u editor.Update
	if err := json.Unmarshal([]byte(args[1].String()), &u); err != nil {
		return fail(err)
	}
	if err := ed.ApplyAnnotationUpdate(context.Background(), docID, args[0].String(), u); err != nil {
		return fail(err)
	}
	return ok()
}

func removeAnnotation(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("removeAnnotation(id)")
	}
	if err := ed.RemoveAnnotation(context.Background(), docID, args[0].String()); err != nil {
		return fail(err)
	}
	return ok()
}

// --- Page mutations ---

func insertPage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("insertPage(index, pageJson)")
	}
	var page document.Page
	if err := json.Unmarshal([]byte(args[1].String()), &page); err != nil {
		return fail(err)
	}
	if err := ed.InsertPage(docID, args[0].Int(), page); err != nil {
		return fail(err)
	}
	return ok()
}

func deletePage(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("deletePage(index)")
	}
	if err := ed.DeletePage(docID, args[0].Int()); err != nil {
		return fail(err)
	}
	return ok()
}

func pastePage(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return failMsg("pastePage(index, pageJson, annotationsJson)")
	}
	var page document.Page
	if err := json.Unmarshal([]byte(args[1].String()), &page); err != nil {
		return fail(err)
	}
	var annots []*annotation.Annotation
	if err := json.Unmarshal([]byte(args[2].String()), &annots); err != nil {
		return fail(err)
	}
	if err := ed.PastePage(docID, args[0].Int(), page, annots); err != nil {
		return fail(err)
	}
	return ok()
}

func rotatePage(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("rotatePage(index, byDegrees)")
	}
	if err := ed.RotatePage(docID, args[0].Int(), args[1].Float()); err != nil {
		return fail(err)
	}
	return ok()
}

// --- History ---

func undo(this js.Value, args []js.Value) interface{} {
	if err := ed.Undo(); err != nil {
		return fail(err)
	}
	return ok()
}

func redo(this js.Value, args []js.Value) interface{} {
	if err := ed.Redo(); err != nil {
		return fail(err)
	}
	return ok()
}

func canUndo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.CanUndo())
}

func canRedo(this js.Value, args []js.Value) interface{} {
	return js.ValueOf(ed.CanRedo())
}

// --- Viewport ---

func setContainerSize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("setContainerSize(width, height)")
	}
	vp.SetContainerSize(args[0].Float(), args[1].Float())
	return viewState()
}

func setPageMetadata(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return failMsg("setPageMetadata(width, height, rotation, pageCount)")
	}
	vp.SetPageMetadata(args[0].Float(), args[1].Float(), args[2].Float(), args[3].Int())
	return viewState()
}

func setViewMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("setViewMode(mode)")
	}
	vp.SetMode(viewport.Mode(args[0].String()))
	return viewState()
}

func setFitMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("setFitMode(mode, fit)")
	}
	vp.SetFit(viewport.Mode(args[0].String()), viewport.FitMode(args[1].String()))
	return viewState()
}

func zoomTo(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return failMsg("zoomTo(level[, anchorX, anchorY])")
	}
	var anchor *geom.Point
	if len(args) >= 3 {
		anchor = &geom.Point{X: args[1].Float(), Y: args[2].Float()}
	}
	vp.ZoomTo(args[0].Float(), anchor)
	return viewState()
}

func scrollTo(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("scrollTo(x, y)")
	}
	vp.Scroll(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return viewState()
}

func getViewState(this js.Value, args []js.Value) interface{} {
	return viewState()
}

func viewState() interface{} {
	mode := vp.Mode()
	state := vp.State(mode)
	return asJSON(map[string]interface{}{
		"mode":          mode,
		"zoom":          state.Zoom,
		"fit":           state.Fit,
		"scroll":        state.Scroll,
		"effectiveZoom": state.EffectiveScale(),
	})
}

// --- Direct manipulation ---

func parseGeometryView(geomJSON, viewJSON js.Value) (manipulate.Geometry, geom.View, error) {
	var g manipulate.Geometry
	if err := json.Unmarshal([]byte(geomJSON.String()), &g); err != nil {
		return g, geom.View{}, fmt.Errorf("geometry: %w", err)
	}
	var v geom.View
	if err := json.Unmarshal([]byte(viewJSON.String()), &v); err != nil {
		return g, v, fmt.Errorf("view: %w", err)
	}
	return g, v, nil
}

func handleAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 4 {
		return failMsg("handleAt(geomJson, viewJson, x, y)")
	}
	g, v, err := parseGeometryView(args[0], args[1])
	if err != nil {
		return fail(err)
	}
	h, hit := manipulate.HandleAt(g, v, geom.Point{X: args[2].Float(), Y: args[3].Float()})
	if !hit {
		return js.Null()
	}
	return js.ValueOf(string(h))
}

func beginDrag(this js.Value, args []js.Value) interface{} {
	if len(args) < 5 {
		return failMsg("beginDrag(handle, x, y, geomJson, viewJson[, compact])")
	}
	g, v, err := parseGeometryView(args[3], args[4])
	if err != nil {
		return fail(err)
	}
	opts := manipulate.Options{}
	if len(args) >= 6 {
		opts.Compact = args[5].Bool()
	}
	screen := geom.Point{X: args[1].Float(), Y: args[2].Float()}
	if err := drag.Begin(manipulate.Handle(args[0].String()), screen, g, v, opts); err != nil {
		return fail(err)
	}
	return ok()
}

func updateDrag(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("updateDrag(x, y)")
	}
	g, accepted := drag.Update(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return asJSON(map[string]interface{}{"geometry": g, "accepted": accepted})
}

func endDrag(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("endDrag(x, y)")
	}
	g, moved := drag.End(geom.Point{X: args[0].Float(), Y: args[1].Float()})
	return asJSON(map[string]interface{}{"geometry": g, "moved": moved})
}

func cancelDrag(this js.Value, args []js.Value) interface{} {
	drag.Cancel()
	return ok()
}

// --- Queries ---

func getAnnotations(this js.Value, args []js.Value) interface{} {
	annots, err := ed.Annotations(docID)
	if err != nil {
		return fail(err)
	}
	return asJSON(annots)
}

func annotationAt(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return failMsg("annotationAt(pageIndex, x, y)")
	}
	a, err := ed.AnnotationAt(docID, args[0].Int(), args[1].Float(), args[2].Float())
	if err != nil {
		return fail(err)
	}
	if a == nil {
		return js.Null()
	}
	return asJSON(a)
}

func search(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return failMsg("search(pageIndex, query)")
	}
	matches, err := ed.Search(context.Background(), docID, args[0].Int(), args[1].String())
	if err != nil {
		return fail(err)
	}
	return asJSON(matches)
}
