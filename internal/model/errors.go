package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrDetectorMissing is returned when a session is started without a detector.
	ErrDetectorMissing = errors.New("detector missing")
	// ErrAlreadyStarted is returned when a session is started more than once.
	ErrAlreadyStarted = errors.New("already started")
	// ErrNotStarted is returned when a session is joined before being started.
	ErrNotStarted = errors.New("not started")
	// ErrNotFinished is returned when a session verdict is read before the session finished.
	ErrNotFinished = errors.New("not finished")

	// ErrConnection is returned when a remote session could not be opened or authenticated.
	ErrConnection = errors.New("connection failed")
	// ErrDetector is returned when a detector could not classify a command output.
	ErrDetector = errors.New("detector failed")
	// ErrAmbiguousOutput is returned by two-marker detectors when no marker is present.
	ErrAmbiguousOutput = errors.New("ambiguous output")
	// ErrTimeout is returned when a session did not finish before the join deadline.
	ErrTimeout = errors.New("timed out")
)
