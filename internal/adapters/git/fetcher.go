package git

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
)

// Fetcher clones experiment source repositories. Implements
// ports.SourceFetcher.
type Fetcher struct{}

func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// Fetch shallow-clones url into dir. Fails if dir already contains a
// checkout; the experiment directory is the working copy, not a cache.
func (f *Fetcher) Fetch(ctx context.Context, url, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create experiment dir: %w", err)
	}
	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:   url,
		Depth: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repo: %w", err)
	}
	return nil
}
