package gameerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWithMessageKeepsIdentity(t *testing.T) {
	base := Precondition("Role already taken")
	specific := base.WithMessage("Role %q is already taken by %s", "decoder", "Ada")

	if !errors.Is(specific, base) {
		t.Fatal("expected specific error to match its sentinel")
	}
	if specific.Error() != `Role "decoder" is already taken by Ada` {
		t.Errorf("unexpected message: %s", specific.Error())
	}
	if base.Error() != "Role already taken" {
		t.Errorf("sentinel message mutated: %s", base.Error())
	}
}

func TestCodeOfAndMessage(t *testing.T) {
	notFound := NotFound("Room not found")
	wrapped := fmt.Errorf("join: %w", notFound)

	if got := CodeOf(wrapped); got != CodeNotFound {
		t.Errorf("expected %s, got %s", CodeNotFound, got)
	}
	if got := Message(wrapped); got != "Room not found" {
		t.Errorf("expected message to unwrap, got %q", got)
	}

	plain := errors.New("disk on fire")
	if got := CodeOf(plain); got != CodeInternal {
		t.Errorf("expected internal for plain error, got %s", got)
	}
	if got := Message(plain); got != "Server error" {
		t.Errorf("plain errors must not leak, got %q", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeNotFound:     http.StatusNotFound,
		CodePrecondition: http.StatusConflict,
		CodeInvalid:      http.StatusBadRequest,
		CodeInternal:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestDistinctKeysDoNotMatch(t *testing.T) {
	if errors.Is(NotFound("Room not found"), NotFound("Choice not found")) {
		t.Error("different keys must not match")
	}
}
