package views

import (
	"github.com/desertthunder/igloo/internal/query"
	"github.com/desertthunder/igloo/internal/services"
)

// State is what a data-loading view renders. Exactly one of its statuses applies.
type State[T any] struct {
	Status query.Status
	Data   T
	Err    error
}

// Pending returns a loading state.
func Pending[T any]() State[T] {
	return State[T]{Status: query.StatusPending}
}

// Success returns a loaded state.
func Success[T any](data T) State[T] {
	return State[T]{Status: query.StatusSuccess, Data: data}
}

// Failure returns an error state.
func Failure[T any](err error) State[T] {
	return State[T]{Status: query.StatusError, Err: err}
}

// FromResult builds a state from a fetch result.
func FromResult[T any](data T, err error) State[T] {
	if err != nil {
		return Failure[T](err)
	}
	return Success(data)
}

// FromAny converts untyped loader data, treating a type mismatch as pending.
func FromAny[T any](data any, err error) State[T] {
	if err != nil {
		return Failure[T](err)
	}
	v, ok := data.(T)
	if !ok {
		return Pending[T]()
	}
	return Success(v)
}

func (s State[T]) IsPending() bool { return s.Status == query.StatusPending }
func (s State[T]) IsError() bool   { return s.Status == query.StatusError }
func (s State[T]) IsSuccess() bool { return s.Status == query.StatusSuccess }

// Message is the user-facing error text, empty unless the state is an error.
func (s State[T]) Message() string {
	if !s.IsError() {
		return ""
	}
	return services.ErrorMessage(s.Err)
}

// IsEmpty reports a successful list with no items, which views render with a distinct message.
func IsEmpty[E any](s State[[]E]) bool {
	return s.IsSuccess() && len(s.Data) == 0
}

// Empty-state messages, shared by every frontend.
const (
	EmptyLibrary    = "No movies in the library yet."
	EmptyLatest     = "No movies added yet."
	EmptyNowPlaying = "Nothing in progress."
	EmptyHome       = "Nothing in progress and no movies added yet."
	EmptyHistory    = "Nothing watched yet."
	EmptyUsers      = "No users."
)
