package editor

import (
	"context"
	"fmt"

	"github.com/pagemark/pagemark/backend-go/internal/annotation"
	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/geom"
)

// The command objects below are the interpreted form of each record: they
// hold owned copies of before/after data and a dispatch direction, never
// closures over mutable variables. Undo and Redo run on the editing event
// loop with no caller context, so engine calls use a background context.

// existenceCmd adds or removes a single annotation. added=true means the
// recorded mutation was an add (undo removes, redo re-adds).
type existenceCmd struct {
	set    *annotation.Set
	engine document.Engine
	annot  *annotation.Annotation
	added  bool
}

func (c *existenceCmd) Undo() error {
	if c.added {
		return c.remove()
	}
	return c.add()
}

func (c *existenceCmd) Redo() error {
	if c.added {
		return c.add()
	}
	return c.remove()
}

func (c *existenceCmd) add() error {
	a := c.annot.Clone()
	ref, err := c.engine.WriteOverlayObject(context.Background(), a)
	if err != nil {
		return fmt.Errorf("write overlay object: %w", err)
	}
	a.EngineRef = ref
	c.annot.EngineRef = ref // later undo/redo cycles target the new handle
	c.set.Add(a)
	return nil
}

func (c *existenceCmd) remove() error {
	if c.annot.EngineRef != "" {
		if err := c.engine.DeleteOverlayObject(context.Background(), c.annot.EngineRef); err != nil {
			return fmt.Errorf("delete overlay object: %w", err)
		}
	}
	c.set.Remove(c.annot.ID)
	return nil
}

// updateCmd swaps an annotation between its before and after snapshots.
type updateCmd struct {
	set    *annotation.Set
	engine document.Engine
	before *annotation.Annotation
	after  *annotation.Annotation
}

func (c *updateCmd) Undo() error { return c.restore(c.before) }
func (c *updateCmd) Redo() error { return c.restore(c.after) }

func (c *updateCmd) restore(snapshot *annotation.Annotation) error {
	target := c.set.Get(snapshot.ID)
	if target == nil {
		return fmt.Errorf("annotation %s no longer resident", snapshot.ID)
	}
	restored := snapshot.Clone()
	if _, err := c.engine.WriteOverlayObject(context.Background(), restored); err != nil {
		return fmt.Errorf("write overlay object: %w", err)
	}
	*target = *restored
	return nil
}

// pageExistenceCmd inserts or deletes one page together with the
// annotations that lived on it, shifting the page indices of annotations
// on later pages.
type pageExistenceCmd struct {
	doc      *document.Document
	index    int
	page     document.Page
	annots   []*annotation.Annotation // owned copies of the page's annotations
	inserted bool
}

func (c *pageExistenceCmd) Undo() error {
	if c.inserted {
		return c.deletePage()
	}
	return c.insertPage()
}

func (c *pageExistenceCmd) Redo() error {
	if c.inserted {
		return c.insertPage()
	}
	return c.deletePage()
}

func (c *pageExistenceCmd) insertPage() error {
	if c.index < 0 || c.index > len(c.doc.Pages) {
		return fmt.Errorf("page index %d out of range", c.index)
	}
	c.doc.Pages = append(c.doc.Pages, document.Page{})
	copy(c.doc.Pages[c.index+1:], c.doc.Pages[c.index:])
	c.doc.Pages[c.index] = c.page

	for _, a := range c.doc.Annotations.All() {
		if a.PageIndex >= c.index {
			a.PageIndex++
		}
	}
	for _, a := range c.annots {
		restored := a.Clone()
		restored.PageIndex = c.index
		c.doc.Annotations.Add(restored)
	}
	return nil
}

func (c *pageExistenceCmd) deletePage() error {
	if c.index < 0 || c.index >= len(c.doc.Pages) {
		return fmt.Errorf("page index %d out of range", c.index)
	}
	c.doc.Pages = append(c.doc.Pages[:c.index], c.doc.Pages[c.index+1:]...)

	for _, a := range c.doc.Annotations.All() {
		switch {
		case a.PageIndex == c.index:
			c.doc.Annotations.Remove(a.ID)
		case a.PageIndex > c.index:
			a.PageIndex--
		}
	}
	return nil
}

// rotatePageCmd swaps a page between two rotations.
type rotatePageCmd struct {
	doc    *document.Document
	index  int
	before float64
	after  float64
}

func (c *rotatePageCmd) Undo() error { return c.set(c.before) }
func (c *rotatePageCmd) Redo() error { return c.set(c.after) }

func (c *rotatePageCmd) set(rotation float64) error {
	if c.index < 0 || c.index >= len(c.doc.Pages) {
		return fmt.Errorf("page index %d out of range", c.index)
	}
	c.doc.Pages[c.index].Rotation = geom.NormalizeDegrees(rotation)
	return nil
}
