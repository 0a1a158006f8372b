package ports

import (
	"context"
	"io"

	"github.com/dkaya/expbench/internal/core/domain"
)

// SourceFetcher materializes an experiment's source tree from its declared
// repository URL.
type SourceFetcher interface {
	Fetch(ctx context.Context, url, dir string) error
}

// Registry resolves experiment declarations loaded at startup.
type Registry interface {
	// Resolve returns the declaration or domain.ErrUnknownExperiment.
	Resolve(name string) (domain.Experiment, error)
	// List preserves declaration order.
	List() []domain.Experiment
	// Dir is the experiment's source directory on disk.
	Dir(name string) string
}

// Lifecycle orchestrates build/run/remove per experiment.
type Lifecycle interface {
	Build(ctx context.Context, name string) (io.ReadCloser, error)
	Run(ctx context.Context, name string) (string, error)
	Remove(ctx context.Context, name string) (string, error)
	Status(ctx context.Context, name string) (domain.ContainerState, error)
	Fetch(ctx context.Context, name string) error
}

// LogStreamer fans a container's log stream out to many subscribers.
type LogStreamer interface {
	// Subscribe returns a channel of log chunks and a cancel function the
	// caller must invoke when done. The channel is closed when the
	// underlying stream ends.
	Subscribe(ctx context.Context, containerID string) (<-chan []byte, func(), error)
}

// ArtifactPackager archives an experiment's results directory.
type ArtifactPackager interface {
	// Pack streams a fresh ZIP of the experiment's artifacts. The caller
	// must close the stream.
	Pack(name string) (io.ReadCloser, error)
}
