// SPDX-License-Identifier: MPL-2.0

package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// fetchRepo makes dest hold the driver repository at the pinned commit. A
// previous clone is reused and refreshed best-effort; anything unopenable
// is cleared and cloned fresh. When the pinned commit cannot be checked
// out, the worktree stays at the repository head and the run continues
// with a warning, since an unpatched driver usually still builds.
func (p *Provisioner) fetchRepo(ctx context.Context, dest string) error {
	repo, err := git.PlainOpen(dest)
	if err != nil {
		if err := os.RemoveAll(dest); err != nil {
			return fmt.Errorf("clear stale clone %s: %w", dest, err)
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create source cache: %w", err)
		}
		slog.Info("cloning driver repository", "repo", p.cfg.Repo, "dest", dest)
		repo, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL: p.cfg.Repo,
		})
		if err != nil {
			return fmt.Errorf("clone %s: %w", p.cfg.Repo, err)
		}
	} else {
		// Refresh is best-effort; the pinned commit may already be local.
		fetchErr := repo.FetchContext(ctx, &git.FetchOptions{Force: true})
		if fetchErr != nil && !errors.Is(fetchErr, git.NoErrAlreadyUpToDate) {
			slog.Debug("fetch failed, using local clone as-is", "dest", dest, "error", fetchErr)
		}
	}

	if p.cfg.Commit == "" {
		return nil
	}
	if err := checkoutCommit(repo, p.cfg.Commit); err != nil {
		slog.Warn("pinned driver commit unavailable, building repository head instead",
			"commit", p.cfg.Commit, "repo", p.cfg.Repo, "error", err)
	}
	return nil
}

// checkoutCommit moves the worktree to the given commit. Short hashes are
// resolved against the repository.
func checkoutCommit(repo *git.Repository, commit string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(commit))
	if err != nil {
		return fmt.Errorf("resolve commit %s: %w", commit, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", hash, err)
	}
	return nil
}
