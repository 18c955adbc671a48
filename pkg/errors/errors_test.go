package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid query", ErrInvalidQuery, http.StatusBadRequest},
		{"wrapped invalid query", fmt.Errorf("parsing: %w", ErrInvalidQuery), http.StatusBadRequest},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"index unavailable", ErrIndexUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"app error", New(ErrInvalidInput, http.StatusUnprocessableEntity, "bad join"), http.StatusUnprocessableEntity},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidQuery, http.StatusBadRequest, "join %q", "XOR")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatal("expected AppError to unwrap to ErrInvalidQuery")
	}
	if err.Error() != `invalid query: join "XOR"` {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
