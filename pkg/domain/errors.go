package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidSessionID is returned when a store cannot hold a session under the given ID.
var ErrInvalidSessionID = errors.New("invalid session id")

// ErrModelUnconfigured marks a stage that runs without a model capability.
// It is a degrade trigger, not a failure.
var ErrModelUnconfigured = errors.New("model not configured")

// ErrModelUnavailable is returned by guarded models while their breaker is open.
var ErrModelUnavailable = errors.New("model temporarily unavailable")

// ErrMalformedOutput is returned when a model reply lacks the expected structured payload.
var ErrMalformedOutput = errors.New("malformed model output")

// ErrTemplateNotFound is returned when no prompt template exists for a stage.
var ErrTemplateNotFound = errors.New("prompt template not found")

// ErrMissingPrerequisite marks a stage that ran without state an earlier stage should have produced.
var ErrMissingPrerequisite = errors.New("missing prerequisite")
