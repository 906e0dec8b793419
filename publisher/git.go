package publisher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

const (
	DefaultRemote = "origin"
	DefaultBranch = "main"

	fallbackAuthorName  = "eltwise-perf"
	fallbackAuthorEmail = "eltwise-perf@localhost"
)

// Repository is a cloned dashboard working copy.
type Repository interface {
	// StageAll stages every change in the working tree.
	StageAll() error
	// IsClean reports whether the staged tree matches HEAD.
	IsClean() (bool, error)
	Commit(message string, when time.Time) error
	Push(ctx context.Context) error
}

// Cloner clones the dashboard repository into dir.
type Cloner interface {
	Clone(ctx context.Context, dir string) (Repository, error)
}

// GitConfig holds configuration for the go-git backed cloner.
type GitConfig struct {
	URL         string
	Branch      string
	AuthorName  string
	AuthorEmail string
	// Auth overrides the transport default (ssh-agent for ssh URLs).
	Auth transport.AuthMethod
}

type goGitCloner struct {
	cfg GitConfig
}

var _ Cloner = (*goGitCloner)(nil)

// NewGitCloner returns a Cloner backed by go-git.
func NewGitCloner(cfg GitConfig) Cloner {
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	return &goGitCloner{cfg: cfg}
}

func (c *goGitCloner) Clone(ctx context.Context, dir string) (Repository, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           c.cfg.URL,
		Auth:          c.cfg.Auth,
		RemoteName:    DefaultRemote,
		ReferenceName: plumbing.NewBranchReferenceName(c.cfg.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	return &goGitRepository{repo: repo, worktree: wt, cfg: c.cfg}, nil
}

type goGitRepository struct {
	repo     *git.Repository
	worktree *git.Worktree
	cfg      GitConfig
}

func (r *goGitRepository) StageAll() error {
	return r.worktree.AddWithOptions(&git.AddOptions{All: true})
}

func (r *goGitRepository) IsClean() (bool, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return false, err
	}
	return status.IsClean(), nil
}

func (r *goGitRepository) Commit(message string, when time.Time) error {
	var author *object.Signature
	if r.cfg.AuthorName != "" && r.cfg.AuthorEmail != "" {
		author = &object.Signature{Name: r.cfg.AuthorName, Email: r.cfg.AuthorEmail, When: when}
	}
	_, err := r.worktree.Commit(message, &git.CommitOptions{Author: author})
	if errors.Is(err, git.ErrMissingAuthor) {
		// No identity in the git config either.
		_, err = r.worktree.Commit(message, &git.CommitOptions{
			Author: &object.Signature{Name: fallbackAuthorName, Email: fallbackAuthorEmail, When: when},
		})
	}
	return err
}

func (r *goGitRepository) Push(ctx context.Context) error {
	ref := plumbing.NewBranchReferenceName(r.cfg.Branch)
	err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: DefaultRemote,
		Auth:       r.cfg.Auth,
		RefSpecs:   []config.RefSpec{config.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}
