package settings

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecentFilesOrderedByLastOpen(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Touch(ctx, "/docs/a.pdf", "a.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := s.Touch(ctx, "/docs/b.pdf", "b.pdf"); err != nil {
		t.Fatal(err)
	}
	// Re-opening a moves it back to the head.
	if err := s.Touch(ctx, "/docs/a.pdf", "a.pdf"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("recent = %d entries, want 2", len(got))
	}
	if got[0].Path != "/docs/a.pdf" || got[1].Path != "/docs/b.pdf" {
		t.Errorf("order = [%s, %s]", got[0].Path, got[1].Path)
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"/1", "/2", "/3"} {
		if err := s.Touch(ctx, p, p); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("recent = %d entries, want 2", len(got))
	}
}

func TestForget(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Touch(ctx, "/docs/a.pdf", "a.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := s.Forget(ctx, "/docs/a.pdf"); err != nil {
		t.Fatal(err)
	}
	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("recent after forget = %v", got)
	}
}

func TestPreferenceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Preference(ctx, "view.mode"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	if err := s.SetPreference(ctx, "view.mode", "continuous"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetPreference(ctx, "view.mode", "paged"); err != nil {
		t.Fatal(err)
	}

	got, err := s.Preference(ctx, "view.mode")
	if err != nil {
		t.Fatal(err)
	}
	if got != "paged" {
		t.Errorf("value = %q, want paged", got)
	}
}
