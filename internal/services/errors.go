package services

// Typed errors the handler boundary maps to HTTP statuses. A malformed
// model response is deliberately NOT represented here: format failures are
// absorbed by fallback synthesis inside the planner and never propagate.

// InputError covers malformed or missing request data (400).
type InputError struct{ Message string }

func (e *InputError) Error() string { return e.Message }

// NotFoundError covers unknown plans, coordinates without a quiz, or a
// missing source document (404).
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// ConnectivityError covers an unreachable generation endpoint or a failed
// probe (503).
type ConnectivityError struct {
	Message string
	Err     error
}

func (e *ConnectivityError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// PersistenceError covers storage read/write failures (500).
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *PersistenceError) Unwrap() error { return e.Err }
