// Package publisher uploads a result artifact into the dashboard git repository.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

const (
	// DefaultRepoURL is the dashboard repository results are pushed to.
	DefaultRepoURL = "git@github.com:Aswintechie/ttnn-performance-dashboard.git"

	// DefaultTimeout bounds each clone and push.
	DefaultTimeout = 300 * time.Second

	// CommitTimeLayout formats the time in commit messages.
	CommitTimeLayout = "2006-01-02 15:04:05"

	cloneDirPattern = "ttnn-performance-dashboard_upload_*"
)

// Config holds configuration for creating a publisher.
type Config struct {
	RepoURL string
	Branch  string
	Log     log.Logger
	// Cloner defaults to go-git against RepoURL.
	Cloner Cloner
	// TempDir is the parent of the clone directory, os.TempDir() when empty.
	TempDir string
	// Timeout bounds each clone and push, DefaultTimeout when zero.
	Timeout time.Duration
	Now     func() time.Time
}

// Publisher pushes result artifacts to the dashboard repository.
type Publisher struct {
	repoURL string
	cloner  Cloner
	tempDir string
	timeout time.Duration
	log     log.Logger
	now     func() time.Time
}

// New creates a publisher.
func New(cfg Config) (*Publisher, error) {
	if cfg.Cloner == nil {
		if cfg.RepoURL == "" {
			return nil, errors.New("dashboard repository URL is required")
		}
		cfg.Cloner = NewGitCloner(GitConfig{URL: cfg.RepoURL, Branch: cfg.Branch})
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Publisher{
		repoURL: cfg.RepoURL,
		cloner:  cfg.Cloner,
		tempDir: cfg.TempDir,
		timeout: cfg.Timeout,
		log:     cfg.Log,
		now:     cfg.Now,
	}, nil
}

// Upload validates the artifact, clones the dashboard, copies the artifact
// into the daily directory, refreshes the latest results (complete runs
// only) and the index, then commits and pushes. Nothing is pushed on
// failure; the clone is always removed.
func (p *Publisher) Upload(ctx context.Context, artifactPath string) error {
	raw, rs, err := validate(artifactPath)
	if err != nil {
		return err
	}
	p.log.Info("Loaded results", "path", artifactPath, "total", rs.Metadata.TotalTests,
		"successful", rs.Metadata.SuccessfulTests, "failed", rs.Metadata.FailedTests)

	tmp, err := os.MkdirTemp(p.tempDir, cloneDirPattern)
	if err != nil {
		return &RepositoryError{Op: "prepare", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			p.log.Warn("Could not clean up temp directory", "dir", tmp, "error", err)
		}
	}()

	root := filepath.Join(tmp, "dashboard")
	p.log.Info("Cloning dashboard repository", "repo", p.repoURL)
	repo, err := p.clone(ctx, root)
	if err != nil {
		return &RepositoryError{Op: "clone", Err: err}
	}

	d := &dashboard{root: root, log: p.log}
	dailyFile, err := d.copyDaily(artifactPath, rs)
	if err != nil {
		return &RepositoryError{Op: "copy", Err: err}
	}

	if rs.IsComplete() {
		if err := d.updateLatest(raw); err != nil {
			p.log.Warn("Could not update latest results", "error", err)
		}
	} else {
		p.log.Info("Run is incomplete, latest results left unchanged")
	}

	now := p.now()
	if err := d.updateIndex(rs, dailyFile, types.NewTimestamp(now)); err != nil {
		p.log.Warn("Could not update index", "error", err)
	}

	return p.commitAndPush(ctx, repo, now)
}

func (p *Publisher) commitAndPush(ctx context.Context, repo Repository, now time.Time) error {
	if err := repo.StageAll(); err != nil {
		return &GitError{Op: "add", Err: err}
	}
	clean, err := repo.IsClean()
	if err != nil {
		return &GitError{Op: "status", Err: err}
	}
	if clean {
		p.log.Info("No changes to commit")
		return nil
	}

	msg := "Add performance results - " + now.Format(CommitTimeLayout)
	if err := repo.Commit(msg, now); err != nil {
		return &GitError{Op: "commit", Err: err}
	}
	if err := p.push(ctx, repo); err != nil {
		return &GitError{Op: "push", Err: err}
	}
	p.log.Info("Changes pushed to dashboard", "message", msg)
	return nil
}

func (p *Publisher) clone(ctx context.Context, dir string) (Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	repo, err := p.cloner.Clone(ctx, dir)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("clone timed out after %s: %w", p.timeout, err)
	}
	return repo, err
}

func (p *Publisher) push(ctx context.Context, repo Repository) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := repo.Push(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("push timed out after %s: %w", p.timeout, err)
	}
	return err
}

// validate checks that path holds a result set with a metadata object and
// returns the raw bytes alongside the decoded value.
func validate(path string) ([]byte, *types.ResultSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &ValidationError{Path: path, Err: err}
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &ValidationError{Path: path, Err: err}
	}
	meta, ok := doc["metadata"]
	if !ok || len(meta) == 0 || meta[0] != '{' {
		return nil, nil, &ValidationError{Path: path, Err: fmt.Errorf("metadata object is missing")}
	}
	var rs types.ResultSet
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, nil, &ValidationError{Path: path, Err: err}
	}
	return raw, &rs, nil
}
