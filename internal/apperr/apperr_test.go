package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByKind(t *testing.T) {
	err := Newf(NotFound, "task.Load", "task %d not found", 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want not_found, got %v", err)
	}
	if errors.Is(err, ErrForbidden) {
		t.Fatal("kinds must not cross-match")
	}
	wrapped := fmt.Errorf("outer: %w", err)
	if KindOf(wrapped) != NotFound {
		t.Fatalf("KindOf through wrap: %v", KindOf(wrapped))
	}
	if got := err.Error(); got != "task.Load: task 7 not found" {
		t.Fatalf("message %q", got)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := New(Conflict, "grading.Grade", "answer-count mismatch")
	if KindOf(Wrap(Storage, "outer", inner)) != Conflict {
		t.Fatal("Wrap must not override an existing kind")
	}
	raw := errors.New("disk full")
	w := Wrap(Storage, "store.Create", raw)
	if KindOf(w) != Storage || !errors.Is(w, raw) {
		t.Fatalf("wrap of plain error: %v", w)
	}
	if Wrap(Storage, "x", nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		InvalidArgument: http.StatusBadRequest,
		Conflict:        http.StatusBadRequest,
		Unauthorized:    http.StatusUnauthorized,
		Forbidden:       http.StatusForbidden,
		NotFound:        http.StatusNotFound,
		Storage:         http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := HTTPStatus(New(k, "op", "")); got != want {
			t.Fatalf("%s: want %d got %d", k, want, got)
		}
	}
	if HTTPStatus(errors.New("plain")) != http.StatusInternalServerError {
		t.Fatal("unclassified errors are 500")
	}
}
