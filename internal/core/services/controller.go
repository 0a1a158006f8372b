package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dkaya/expbench/internal/core/domain"
	"github.com/dkaya/expbench/internal/core/ports"
)

// ImageTag derives the image tag for an experiment name.
func ImageTag(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

// ContainerName derives the canonical container name for an experiment.
// Keeping this a pure function of the name (no in-memory table) is what lets
// remove and log lookups work across process restarts.
func ContainerName(name string) string {
	return strings.ReplaceAll(name, "_", "-") + "-container"
}

// Controller orchestrates the experiment lifecycle against the container
// runtime. It is the sole writer of the ContainerHandle table and enforces
// at most one active container per experiment name.
type Controller struct {
	registry ports.Registry
	runtime  ports.ContainerRuntime
	fetcher  ports.SourceFetcher

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handles map[string]domain.ContainerHandle

	// hostArch is swappable in tests; reads the architecture at call time so
	// a relocated binary keeps behaving correctly.
	hostArch func() string
}

func NewController(registry ports.Registry, rt ports.ContainerRuntime, fetcher ports.SourceFetcher) *Controller {
	return &Controller{
		registry: registry,
		runtime:  rt,
		fetcher:  fetcher,
		locks:    make(map[string]*sync.Mutex),
		handles:  make(map[string]domain.ContainerHandle),
		hostArch: func() string { return runtime.GOARCH },
	}
}

// nameLock returns the per-experiment mutex, creating it on first use.
// Unrelated experiments never contend with each other.
func (c *Controller) nameLock(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[name]
	if !ok {
		l = &sync.Mutex{}
		c.locks[name] = l
	}
	return l
}

// Handle reports the current handle for an experiment, if any.
func (c *Controller) Handle(name string) (domain.ContainerHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[name]
	return h, ok
}

func (c *Controller) setHandle(h domain.ContainerHandle) {
	c.mu.Lock()
	c.handles[h.ExperimentName] = h
	c.mu.Unlock()
}

func (c *Controller) clearHandle(name string) {
	c.mu.Lock()
	delete(c.handles, name)
	c.mu.Unlock()
}

// dockerfileFor picks the build file by host architecture, inspected at call
// time. On arm64 the arm64 variant is mandatory: a missing variant is an
// error rather than a silent fall back to an image that will not run.
func (c *Controller) dockerfileFor(dir string) (string, error) {
	name := "Dockerfile"
	if c.hostArch() == "arm64" {
		name = "Dockerfile.arm64"
	}
	if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("%s not found in %s: %w", name, dir, domain.ErrBuildFailed)
	}
	return name, nil
}

// Build streams the image build for an experiment. The build is detached
// from the request context: a client that stops reading the stream does not
// cancel the build, so there are no half-built images. Concurrent builds for
// the same name are not deduplicated; each request is a fresh build and the
// daemon's own build locking is the bottleneck.
func (c *Controller) Build(ctx context.Context, name string) (io.ReadCloser, error) {
	exp, err := c.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	dir := c.registry.Dir(name)

	if _, err := os.Stat(dir); os.IsNotExist(err) && exp.SourceCode != "" {
		log.Printf("experiment %s: source missing, fetching %s", name, exp.SourceCode)
		if err := c.fetcher.Fetch(ctx, exp.SourceCode, dir); err != nil {
			return nil, fmt.Errorf("fetch source: %w", err)
		}
	}

	dockerfile, err := c.dockerfileFor(dir)
	if err != nil {
		return nil, err
	}
	return c.runtime.Build(context.WithoutCancel(ctx), dir, dockerfile, ImageTag(name))
}

// Run starts a container for the experiment and records its handle. Under
// the per-name lock any container already holding the canonical name is
// force-removed first, so at most one container per experiment exists and a
// stale container from a previous process does not block the new run.
func (c *Controller) Run(ctx context.Context, name string) (string, error) {
	exp, err := c.registry.Resolve(name)
	if err != nil {
		return "", err
	}

	lock := c.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	cname := ContainerName(name)
	if _, err := c.runtime.StopAndRemove(ctx, cname); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("replace existing container: %w", err)
	}
	// The old container is gone either way; its handle must not outlive it
	// if the fresh run below fails.
	c.clearHandle(name)

	id, err := c.runtime.Run(ctx, ports.RunOptions{
		Image:       ImageTag(name),
		Name:        cname,
		Cmd:         strings.Fields(exp.Entrypoint),
		SourceDir:   c.registry.Dir(name),
		MemoryBytes: exp.MemoryBytes,
	})
	if err != nil {
		return "", err
	}

	c.setHandle(domain.ContainerHandle{
		ExperimentName: name,
		ContainerID:    id,
		Status:         domain.StatusRunning,
		CreatedAt:      time.Now(),
	})
	log.Printf("experiment %s: started container %s", name, shortID(id))
	return id, nil
}

// Remove stops and removes the experiment's container, resolved by the
// naming convention rather than the handle table so it also works for
// containers started by a previous process.
func (c *Controller) Remove(ctx context.Context, name string) (string, error) {
	if _, err := c.registry.Resolve(name); err != nil {
		return "", err
	}

	lock := c.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	removed, err := c.runtime.StopAndRemove(ctx, ContainerName(name))
	if err != nil {
		return "", err
	}
	c.clearHandle(name)
	log.Printf("experiment %s: removed container %s", name, removed)
	return removed, nil
}

// Status inspects the experiment's container by canonical name.
func (c *Controller) Status(ctx context.Context, name string) (domain.ContainerState, error) {
	if _, err := c.registry.Resolve(name); err != nil {
		return domain.ContainerState{}, err
	}
	return c.runtime.Inspect(ctx, ContainerName(name))
}

// Fetch clones the experiment's declared source repository into its
// directory.
func (c *Controller) Fetch(ctx context.Context, name string) error {
	exp, err := c.registry.Resolve(name)
	if err != nil {
		return err
	}
	if exp.SourceCode == "" {
		return fmt.Errorf("experiment %q declares no source repository", name)
	}
	return c.fetcher.Fetch(ctx, exp.SourceCode, c.registry.Dir(name))
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
