package ports

import (
	"context"
	"io"

	"github.com/dkaya/expbench/internal/core/domain"
)

// RunOptions describes a container to start. The experiment's source
// directory is bind-mounted into the container rather than baked into the
// image, so code changes do not require a rebuild.
type RunOptions struct {
	Image       string
	Name        string
	Cmd         []string
	SourceDir   string // mounted read/write at the container workdir
	MemoryBytes int64  // 0 means unlimited
}

// ContainerRuntime wraps the container engine's primitives. This interface
// lets the core swap Docker for Podman or a mock without touching the
// business logic. Every operation honors the caller's context for
// cancellation; none imposes a timeout of its own.
type ContainerRuntime interface {
	// Build produces an image from dir using the named build file and tags
	// it. The returned stream carries plain-text build output; it ends with
	// io.EOF on success or an error wrapping domain.ErrBuildFailed after all
	// captured output has been delivered.
	Build(ctx context.Context, dir, dockerfile, tag string) (io.ReadCloser, error)

	// Run creates and starts a container, returning its id.
	Run(ctx context.Context, opts RunOptions) (string, error)

	// StopAndRemove force-removes the container and returns the name it was
	// removed under. Removing an absent container is domain.ErrNotFound.
	StopAndRemove(ctx context.Context, nameOrID string) (string, error)

	// TailLogs follows the container's combined output as a single ordered
	// byte stream until the container stops or the context is cancelled.
	// Multiplexing across subscribers is the log hub's job, not the
	// adapter's.
	TailLogs(ctx context.Context, nameOrID string) (io.ReadCloser, error)

	// Inspect reports the container's current state.
	Inspect(ctx context.Context, nameOrID string) (domain.ContainerState, error)
}
