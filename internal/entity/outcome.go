package entity

// Outcome is the loading/error/data triple handed to presentation callers so
// they can render partial or failed states without the engine doing any
// rendering itself.
type Outcome[T any] struct {
	Loading bool
	Data    T
	Err     error
}

// LoadingOutcome marks data that is still being computed.
func LoadingOutcome[T any]() Outcome[T] { return Outcome[T]{Loading: true} }

// ReadyOutcome wraps computed data.
func ReadyOutcome[T any](data T) Outcome[T] { return Outcome[T]{Data: data} }

// FailedOutcome wraps a computation failure.
func FailedOutcome[T any](err error) Outcome[T] { return Outcome[T]{Err: err} }
