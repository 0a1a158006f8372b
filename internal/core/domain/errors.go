package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy. Adapters translate engine-specific failures into these so
// the rest of the system (and the HTTP layer's status mapping) only ever
// checks against sentinels with errors.Is.
var (
	// ErrUnknownExperiment: the name is not in the registry.
	ErrUnknownExperiment = errors.New("unknown experiment")

	// ErrBuildFailed: the image build exited non-zero.
	ErrBuildFailed = errors.New("build failed")

	// ErrRunFailed: the image is missing or the runtime rejected the config.
	ErrRunFailed = errors.New("run failed")

	// ErrNotFound: no such container on remove/logs/inspect.
	ErrNotFound = errors.New("container not found")

	// ErrArtifactsNotFound: the experiment's results directory does not exist.
	ErrArtifactsNotFound = errors.New("artifacts not found")

	// ErrRuntimeUnavailable: the container engine is unreachable. Fatal for
	// the request, not for the process.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")
)

// BuildError carries the runtime's failure detail alongside ErrBuildFailed.
type BuildError struct {
	Detail string
	Code   int
}

func (e *BuildError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("build failed (exit %d): %s", e.Code, e.Detail)
	}
	return "build failed: " + e.Detail
}

func (e *BuildError) Unwrap() error { return ErrBuildFailed }
