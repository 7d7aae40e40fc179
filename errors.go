package reachctl

import (
	"errors"
	"fmt"
)

// Error classes returned by orchestration operations
var (
	// ErrConfigLoad indicates the settings file could not be read; defaults are used
	ErrConfigLoad = errors.New("config load warning")

	// ErrSupervisorStopFailed indicates the native backend did not become inactive
	ErrSupervisorStopFailed = errors.New("supervisor stop failed")

	// ErrSupervisorStartFailed indicates the native backend did not become active
	ErrSupervisorStartFailed = errors.New("supervisor start failed")

	// ErrImageBuildFailed indicates the image build returned an error
	ErrImageBuildFailed = errors.New("image build failed")

	// ErrContainerStartFailed indicates the container could not be created or started
	ErrContainerStartFailed = errors.New("container start failed")

	// ErrHealthCheckTimeout indicates the health budget was exhausted without a 2xx
	ErrHealthCheckTimeout = errors.New("health check timeout")

	// ErrContainerUnhealthy indicates the container runtime reported the service unhealthy
	ErrContainerUnhealthy = errors.New("container unhealthy")

	// ErrTargetNotFound indicates the container does not exist
	ErrTargetNotFound = errors.New("target not found")

	// ErrConflictingOwners indicates both backends were active at once
	ErrConflictingOwners = errors.New("both backends active")
)

// Step names a single step of a transition
type Step string

// Transition steps
const (
	StepStopNative     Step = "stop-native"
	StepStartNative    Step = "start-native"
	StepEnsureImage    Step = "ensure-image"
	StepStartContainer Step = "start-container"
	StepStopContainer  Step = "stop-container"
	StepHealth         Step = "health"
	StepLogs           Step = "logs"
)

// TransitionError records the step and backend a failure happened on
type TransitionError struct {
	// Step is the step that failed
	Step Step
	// Backend is the backend the step acted on
	Backend Backend
	// Err is the classified error, usually wrapping one of the Err* sentinels
	Err error
}

// Error returns a formatted error message
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Step, e.Backend, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransitionError) Unwrap() error {
	return e.Err
}

func stepError(step Step, b Backend, class error, cause error) error {
	if cause == nil {
		return &TransitionError{Step: step, Backend: b, Err: class}
	}
	return &TransitionError{Step: step, Backend: b, Err: fmt.Errorf("%w: %w", class, cause)}
}

// Classify returns the sentinel class of err, or nil if err is not classified
func Classify(err error) error {
	for _, class := range []error{
		ErrSupervisorStopFailed,
		ErrSupervisorStartFailed,
		ErrImageBuildFailed,
		ErrContainerStartFailed,
		ErrHealthCheckTimeout,
		ErrContainerUnhealthy,
		ErrTargetNotFound,
		ErrConflictingOwners,
		ErrConfigLoad,
	} {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}
