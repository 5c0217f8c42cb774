// Package library is the document-library surface: opening files from
// disk, saving them back, the recent-files list, and view preferences.
package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"

	"github.com/pagemark/pagemark/backend-go/internal/document"
	"github.com/pagemark/pagemark/backend-go/internal/editor"
	"github.com/pagemark/pagemark/backend-go/internal/settings"
)

var ErrFileMissing = errors.New("file no longer exists")

// Dispatcher runs a closure on the editing event loop.
type Dispatcher interface {
	Do(fn func() error) error
}

type Service struct {
	editor   *editor.Editor
	dispatch Dispatcher
	files    document.FileStore
	settings *settings.Store
}

func NewService(ed *editor.Editor, dispatch Dispatcher, files document.FileStore, st *settings.Store) *Service {
	return &Service{editor: ed, dispatch: dispatch, files: files, settings: st}
}

// Open reads a file from disk and opens it in the editor. Missing files
// are dropped from the recent list on the way out.
func (s *Service) Open(ctx context.Context, path string) (*document.Document, error) {
	data, err := s.files.Read(ctx, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if ferr := s.settings.Forget(ctx, path); ferr != nil {
				slog.Warn("forget recent file", "path", path, "error", ferr)
			}
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	file := document.File{
		Name: filepath.Base(path),
		Path: path,
		Data: data,
	}

	var doc *document.Document
	if err := s.dispatch.Do(func() error {
		var err error
		doc, err = s.editor.Open(ctx, file)
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.settings.Touch(ctx, path, file.Name); err != nil {
		slog.Warn("record recent file", "path", path, "error", err)
	}
	return doc, nil
}

// Save writes a document back through the editor's file store.
func (s *Service) Save(ctx context.Context, docID string) error {
	return s.dispatch.Do(func() error {
		return s.editor.Save(ctx, docID)
	})
}

// Close drops a document and its history.
func (s *Service) Close(docID string) error {
	return s.dispatch.Do(func() error {
		s.editor.Close(docID)
		return nil
	})
}

// Recent returns the recent-files list, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]settings.RecentFile, error) {
	return s.settings.Recent(ctx, limit)
}

// Preference reads one stored view preference.
func (s *Service) Preference(ctx context.Context, key string) (string, error) {
	return s.settings.Preference(ctx, key)
}

// SetPreference stores one view preference.
func (s *Service) SetPreference(ctx context.Context, key, value string) error {
	return s.settings.SetPreference(ctx, key, value)
}
