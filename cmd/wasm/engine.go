//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"syscall/js"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
)

// jsEngine delegates the document.Engine interface to the webview's PDF
// engine, registered on the global scope as pagemarkPdfEngine before the
// wasm module starts. Payloads cross the boundary as JSON strings and
// Uint8Arrays.
type jsEngine struct {
	obj js.Value
}

func newJSEngine() document.Engine {
	return &jsEngine{obj: js.Global().Get("pagemarkPdfEngine")}
}

// call invokes a method on the JS engine object, converting a thrown JS
// exception into an error.
func (e *jsEngine) call(method string, args ...interface{}) (result js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf engine %s: %v", method, r)
		}
	}()
	return e.obj.Call(method, args...), nil
}

func toUint8Array(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

func fromUint8Array(v js.Value) []byte {
	data := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(data, v)
	return data
}

func (e *jsEngine) Load(ctx context.Context, data []byte) (int, error) {
	v, err := e.call("load", toUint8Array(data))
	if err != nil {
		return 0, err
	}
	return v.Int(), nil
}

func (e *jsEngine) ParsePage(ctx context.Context, index int) (document.Page, error) {
	v, err := e.call("parsePage", index)
	if err != nil {
		return document.Page{}, err
	}
	var page document.Page
	if err := json.Unmarshal([]byte(v.String()), &page); err != nil {
		return document.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

func (e *jsEngine) RenderPage(ctx context.Context, index int, scale float64) (image.Image, error) {
	v, err := e.call("renderPage", index, scale)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(fromUint8Array(v)))
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}

func (e *jsEngine) Search(ctx context.Context, index int, query string) ([]document.Match, error) {
	v, err := e.call("search", index, query)
	if err != nil {
		return nil, err
	}
	var matches []document.Match
	if err := json.Unmarshal([]byte(v.String()), &matches); err != nil {
		return nil, fmt.Errorf("decode matches: %w", err)
	}
	return matches, nil
}

func (e *jsEngine) WriteOverlayObject(ctx context.Context, a *annotation.Annotation) (string, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	v, err := e.call("writeObject", string(payload))
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (e *jsEngine) DeleteOverlayObject(ctx context.Context, ref string) error {
	_, err := e.call("deleteObject", ref)
	return err
}

func (e *jsEngine) LoadOverlayObjects(ctx context.Context, index int) ([]*annotation.Annotation, error) {
	v, err := e.call("loadObjects", index)
	if err != nil {
		return nil, err
	}
	var annots []*annotation.Annotation
	if err := json.Unmarshal([]byte(v.String()), &annots); err != nil {
		return nil, fmt.Errorf("decode overlay objects: %w", err)
	}
	return annots, nil
}

func (e *jsEngine) Serialize(ctx context.Context) ([]byte, error) {
	v, err := e.call("serialize")
	if err != nil {
		return nil, err
	}
	return fromUint8Array(v), nil
}
