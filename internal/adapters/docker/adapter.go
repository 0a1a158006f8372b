package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

const containerWorkdir = "/app"

// Adapter implements ports.ContainerRuntime using the Docker SDK.
type Adapter struct {
	cli *client.Client
}

// NewAdapter creates a new Docker adapter instance.
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// Ping checks that the daemon is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	if _, err := a.cli.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRuntimeUnavailable, err)
	}
	return nil
}

// Build tars the experiment directory as the build context and streams the
// daemon's build output as plain text. The JSON message stream is decoded
// line by line; a failing build delivers everything captured so far and then
// terminates the stream with a BuildError.
func (a *Adapter) Build(ctx context.Context, dir, dockerfile, tag string) (io.ReadCloser, error) {
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}

	resp, err := a.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{tag},
		Dockerfile: dockerfile,
		Remove:     true,
	})
	if err != nil {
		buildCtx.Close()
		return nil, mapErr(err)
	}

	pr, pw := io.Pipe()
	go func() {
		defer resp.Body.Close()
		defer buildCtx.Close()
		pw.CloseWithError(decodeBuildStream(resp.Body, pw))
	}()
	return pr, nil
}

// buildMessage is the daemon's per-line build event.
type buildMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// decodeBuildStream turns the JSON build event stream into plain text on w.
// Returns nil on a successful build, a *domain.BuildError on failure.
//
// A write failure means the client dropped the connection, never that the
// build is over: the daemon stream is drained to completion regardless, so
// closing resp.Body afterwards cannot cancel an in-flight build.
func decodeBuildStream(r io.Reader, w io.Writer) error {
	dec := json.NewDecoder(r)
	var werr error
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return werr
			}
			return fmt.Errorf("decode build output: %w", err)
		}
		if msg.Error != "" {
			if werr == nil {
				io.WriteString(w, "build failed: "+msg.Error+"\n")
			}
			return &domain.BuildError{Detail: msg.Error, Code: msg.ErrorDetail.Code}
		}
		if msg.Stream != "" && werr == nil {
			if _, err := io.WriteString(w, msg.Stream); err != nil {
				werr = err
			}
		}
	}
}

// Run creates and starts a container with the experiment source mounted
// read/write at the workdir.
func (a *Adapter) Run(ctx context.Context, opts ports.RunOptions) (string, error) {
	resp, err := a.cli.ContainerCreate(ctx,
		&container.Config{
			Image:      opts.Image,
			Cmd:        opts.Cmd,
			WorkingDir: containerWorkdir,
		},
		&container.HostConfig{
			Binds: []string{opts.SourceDir + ":" + containerWorkdir},
			Resources: container.Resources{
				Memory: opts.MemoryBytes,
			},
		},
		nil, nil, opts.Name)
	if err != nil {
		return "", mapRunErr(err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", mapRunErr(err)
	}
	return resp.ID, nil
}

// StopAndRemove force-removes the container and reports the name it held.
func (a *Adapter) StopAndRemove(ctx context.Context, nameOrID string) (string, error) {
	insp, err := a.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return "", mapErr(err)
	}
	if err := a.cli.ContainerRemove(ctx, insp.ID, types.ContainerRemoveOptions{Force: true}); err != nil {
		return "", mapErr(err)
	}
	return strings.TrimPrefix(insp.Name, "/"), nil
}

// TailLogs follows the container's combined output. Containers started by
// this system have no TTY, so the daemon multiplexes stdout/stderr; the
// stream is demuxed here into a single ordered text stream.
func (a *Adapter) TailLogs(ctx context.Context, nameOrID string) (io.ReadCloser, error) {
	insp, err := a.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return nil, mapErr(err)
	}

	rc, err := a.cli.ContainerLogs(ctx, insp.ID, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return nil, mapErr(err)
	}
	if insp.Config != nil && insp.Config.Tty {
		return rc, nil
	}

	pr, pw := io.Pipe()
	go func() {
		defer rc.Close()
		_, err := stdcopy.StdCopy(pw, pw, rc)
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// Inspect reports the container's current state.
func (a *Adapter) Inspect(ctx context.Context, nameOrID string) (domain.ContainerState, error) {
	insp, err := a.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return domain.ContainerState{}, mapErr(err)
	}
	state := domain.ContainerState{ID: shortID(insp.ID)}
	if insp.State != nil {
		state.Status = insp.State.Status
	}
	return state, nil
}

func mapErr(err error) error {
	switch {
	case errdefs.IsNotFound(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%w: %v", domain.ErrRuntimeUnavailable, err)
	default:
		return err
	}
}

// mapRunErr treats a missing image or a rejected config as ErrRunFailed.
func mapRunErr(err error) error {
	switch {
	case errdefs.IsNotFound(err), errdefs.IsConflict(err), errdefs.IsInvalidParameter(err):
		return fmt.Errorf("%w: %v", domain.ErrRunFailed, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%w: %v", domain.ErrRuntimeUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrRunFailed, err)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
