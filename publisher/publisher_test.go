package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// fakeRemote is a directory standing in for the dashboard remote. Clones copy
// it, pushes copy the working tree back.
type fakeRemote struct {
	dir       string
	cloneErr  error
	pushErr   error
	commits   []string
	cloneDirs []string
}

type fakeRepo struct {
	remote *fakeRemote
	dir    string
}

func (f *fakeRemote) Clone(ctx context.Context, dir string) (Repository, error) {
	if f.cloneErr != nil {
		return nil, f.cloneErr
	}
	f.cloneDirs = append(f.cloneDirs, dir)
	if err := copyTree(f.dir, dir); err != nil {
		return nil, err
	}
	return &fakeRepo{remote: f, dir: dir}, nil
}

func (r *fakeRepo) StageAll() error { return nil }

func (r *fakeRepo) IsClean() (bool, error) {
	a, err := snapshot(r.dir)
	if err != nil {
		return false, err
	}
	b, err := snapshot(r.remote.dir)
	if err != nil {
		return false, err
	}
	if len(a) != len(b) {
		return false, nil
	}
	for k, v := range a {
		if b[k] != v {
			return false, nil
		}
	}
	return true, nil
}

func (r *fakeRepo) Commit(message string, when time.Time) error {
	r.remote.commits = append(r.remote.commits, message)
	return nil
}

func (r *fakeRepo) Push(ctx context.Context) error {
	if r.remote.pushErr != nil {
		return r.remote.pushErr
	}
	return copyTree(r.dir, r.remote.dir)
}

func snapshot(root string) (map[string]string, error) {
	out := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		out[rel] = string(data)
		return nil
	})
	return out, err
}

func copyTree(src, dst string) error {
	files, err := snapshot(src)
	if err != nil {
		return err
	}
	for rel, content := range files {
		target := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return err
		}
	}
	return os.MkdirAll(dst, 0755)
}

var fixedNow = time.Date(2025, 7, 15, 8, 30, 0, 0, time.Local)

func newTestPublisher(t *testing.T, remote *fakeRemote) *Publisher {
	p, err := New(Config{
		Cloner:  remote,
		TempDir: t.TempDir(),
		Log:     log.NewLogger(log.DiscardHandler()),
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return p
}

func writeArtifact(t *testing.T, dir string, total, succ, failed int, revision string) string {
	t.Helper()
	doc := map[string]any{
		"metadata": map[string]any{
			"measurement_date":  "2025-07-14T10:22:33.123456",
			"total_tests":       total,
			"successful_tests":  succ,
			"failed_tests":      failed,
			"failed_test_names": []string{},
			"rerun_mode":        false,
			"git_commit_id":     revision,
		},
		"results": []any{},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(dir, "eltwise_perf_results_20250714_102233_final.json")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func readIndex(t *testing.T, remote *fakeRemote) types.Index {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(remote.dir, filepath.FromSlash(IndexFile)))
	require.NoError(t, err)
	var idx types.Index
	require.NoError(t, json.Unmarshal(data, &idx))
	return idx
}

func TestUpload_CompleteRunUpdatesLatest(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	p := newTestPublisher(t, remote)
	artifact := writeArtifact(t, t.TempDir(), 10, 7, 3, "abc")

	require.NoError(t, p.Upload(context.Background(), artifact))

	daily := filepath.Join(remote.dir, "data", "daily", "2025-07-14_eltwise_perf_results_20250714_102233_final.json")
	assert.FileExists(t, daily)
	original, err := os.ReadFile(artifact)
	require.NoError(t, err)
	copied, err := os.ReadFile(daily)
	require.NoError(t, err)
	assert.Equal(t, original, copied)

	assert.FileExists(t, filepath.Join(remote.dir, filepath.FromSlash(LatestFile)))

	idx := readIndex(t, remote)
	require.Len(t, idx.Files, 1)
	assert.Equal(t, "2025-07-14_eltwise_perf_results_20250714_102233_final.json", idx.Files[0].Filename)
	assert.Equal(t, "data/daily/2025-07-14_eltwise_perf_results_20250714_102233_final.json", idx.Files[0].Path)
	assert.Equal(t, "abc", idx.Files[0].RevisionID)
	assert.Equal(t, 1, idx.TotalMeasurements)

	require.Len(t, remote.commits, 1)
	assert.Equal(t, "Add performance results - 2025-07-15 08:30:00", remote.commits[0])
}

func TestUpload_IncompleteRunLeavesLatest(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	p := newTestPublisher(t, remote)
	artifact := writeArtifact(t, t.TempDir(), 10, 4, 2, "abc")

	require.NoError(t, p.Upload(context.Background(), artifact))

	assert.NoFileExists(t, filepath.Join(remote.dir, filepath.FromSlash(LatestFile)))
	assert.Len(t, readIndex(t, remote).Files, 1)
}

func TestUpload_TwiceKeepsOneIndexEntry(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	p := newTestPublisher(t, remote)
	artifact := writeArtifact(t, t.TempDir(), 10, 7, 3, "abc")

	require.NoError(t, p.Upload(context.Background(), artifact))
	require.NoError(t, p.Upload(context.Background(), artifact))

	idx := readIndex(t, remote)
	assert.Len(t, idx.Files, 1)
	// The second upload changes nothing, so nothing is committed.
	assert.Len(t, remote.commits, 1)
}

func TestUpload_MalformedIndexIsReplaced(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	require.NoError(t, os.MkdirAll(filepath.Join(remote.dir, "data"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(remote.dir, filepath.FromSlash(IndexFile)), []byte("[1,2"), 0644))
	p := newTestPublisher(t, remote)

	require.NoError(t, p.Upload(context.Background(), writeArtifact(t, t.TempDir(), 1, 1, 0, "abc")))
	assert.Len(t, readIndex(t, remote).Files, 1)
}

func TestUpload_Errors(t *testing.T) {
	t.Run("missing artifact", func(t *testing.T) {
		remote := &fakeRemote{dir: t.TempDir()}
		err := newTestPublisher(t, remote).Upload(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
		assert.True(t, IsValidationError(err))
		assert.Empty(t, remote.cloneDirs)
	})

	t.Run("no metadata", func(t *testing.T) {
		remote := &fakeRemote{dir: t.TempDir()}
		path := filepath.Join(t.TempDir(), "r.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"results":[]}`), 0644))
		err := newTestPublisher(t, remote).Upload(context.Background(), path)
		assert.True(t, IsValidationError(err))
	})

	t.Run("clone failure", func(t *testing.T) {
		remote := &fakeRemote{dir: t.TempDir(), cloneErr: errors.New("permission denied (publickey)")}
		err := newTestPublisher(t, remote).Upload(context.Background(), writeArtifact(t, t.TempDir(), 1, 1, 0, "abc"))
		assert.True(t, IsRepositoryError(err))
	})

	t.Run("push failure leaves remote untouched", func(t *testing.T) {
		remote := &fakeRemote{dir: t.TempDir(), pushErr: errors.New("rejected")}
		err := newTestPublisher(t, remote).Upload(context.Background(), writeArtifact(t, t.TempDir(), 1, 1, 0, "abc"))
		assert.True(t, IsGitError(err))
		files, snapErr := snapshot(remote.dir)
		require.NoError(t, snapErr)
		assert.Empty(t, files)
	})
}

func TestUpload_RemovesCloneDirectory(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	p := newTestPublisher(t, remote)

	require.NoError(t, p.Upload(context.Background(), writeArtifact(t, t.TempDir(), 1, 1, 0, "abc")))
	require.Len(t, remote.cloneDirs, 1)
	_, err := os.Stat(filepath.Dir(remote.cloneDirs[0]))
	assert.True(t, os.IsNotExist(err))
}

func TestDailyName(t *testing.T) {
	rs := types.NewResultSet(types.Timestamp{}, false, "")
	assert.Equal(t, "a.json", dailyName("/x/a.json", rs))

	ts, err := types.ParseTimestamp("2025-07-14T10:22:33")
	require.NoError(t, err)
	rs.Metadata.MeasurementDate = ts
	assert.Equal(t, "2025-07-14_a.json", dailyName("/x/a.json", rs))
}

func TestNew_RequiresRepo(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestUpload_KeepsExistingIndexEntries(t *testing.T) {
	remote := &fakeRemote{dir: t.TempDir()}
	require.NoError(t, os.MkdirAll(filepath.Join(remote.dir, "data"), 0755))
	existing := `{
  "last_updated": "2025-07-13T09:00:00",
  "total_measurements": 2,
  "owner": "perf-team",
  "files": [
    {"filename": "2025-07-12_old.json", "path": "data/daily/2025-07-12_old.json",
     "measurement_date": "2025-07-12", "git_commit_id": "r1",
     "total_tests": 5, "successful_tests": 5, "failed_tests": 0},
    {"filename": "2025-07-13_mid.json", "path": "data/daily/2025-07-13_mid.json",
     "measurement_date": "2025-07-13T09:00:00.000000", "git_commit_id": "r2",
     "total_tests": 5, "successful_tests": 4, "failed_tests": 1, "notes": "flaky board"}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(remote.dir, filepath.FromSlash(IndexFile)), []byte(existing), 0644))
	p := newTestPublisher(t, remote)

	require.NoError(t, p.Upload(context.Background(), writeArtifact(t, t.TempDir(), 1, 1, 0, "abc")))

	data, err := os.ReadFile(filepath.Join(remote.dir, filepath.FromSlash(IndexFile)))
	require.NoError(t, err)
	var doc struct {
		Owner             string           `json:"owner"`
		TotalMeasurements int              `json:"total_measurements"`
		Files             []map[string]any `json:"files"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "perf-team", doc.Owner)
	assert.Equal(t, 3, doc.TotalMeasurements)
	require.Len(t, doc.Files, 3)

	// Newest first; the date-only entry keeps its original text.
	assert.Equal(t, "abc", doc.Files[0]["git_commit_id"])
	assert.Equal(t, "r2", doc.Files[1]["git_commit_id"])
	assert.Equal(t, "flaky board", doc.Files[1]["notes"])
	assert.Equal(t, "r1", doc.Files[2]["git_commit_id"])
	assert.Equal(t, "2025-07-12", doc.Files[2]["measurement_date"])
}

// stalledRemote blocks clones or pushes until the context ends.
type stalledRemote struct {
	*fakeRemote
	stallClone bool
	stallPush  bool
}

type stalledRepo struct {
	Repository
	stall bool
}

func (s *stalledRemote) Clone(ctx context.Context, dir string) (Repository, error) {
	if s.stallClone {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	repo, err := s.fakeRemote.Clone(ctx, dir)
	if err != nil {
		return nil, err
	}
	return &stalledRepo{Repository: repo, stall: s.stallPush}, nil
}

func (r *stalledRepo) Push(ctx context.Context) error {
	if r.stall {
		<-ctx.Done()
		return ctx.Err()
	}
	return r.Repository.Push(ctx)
}

func TestUpload_GitOperationsAreBounded(t *testing.T) {
	tests := []struct {
		name    string
		remote  *stalledRemote
		isError func(error) bool
		op      string
	}{
		{
			name:    "clone",
			remote:  &stalledRemote{fakeRemote: &fakeRemote{dir: t.TempDir()}, stallClone: true},
			isError: IsRepositoryError,
			op:      "clone timed out",
		},
		{
			name:    "push",
			remote:  &stalledRemote{fakeRemote: &fakeRemote{dir: t.TempDir()}, stallPush: true},
			isError: IsGitError,
			op:      "push timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(Config{
				Cloner:  tt.remote,
				TempDir: t.TempDir(),
				Timeout: 50 * time.Millisecond,
				Log:     log.NewLogger(log.DiscardHandler()),
				Now:     func() time.Time { return fixedNow },
			})
			require.NoError(t, err)

			artifact := writeArtifact(t, t.TempDir(), 1, 1, 0, "abc")
			done := make(chan error, 1)
			go func() {
				done <- p.Upload(context.Background(), artifact)
			}()
			select {
			case err := <-done:
				require.Error(t, err)
				assert.True(t, tt.isError(err))
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				assert.Contains(t, err.Error(), tt.op)
			case <-time.After(5 * time.Second):
				t.Fatal("upload did not return after the git timeout")
			}
		})
	}
}

func TestNew_DefaultTimeout(t *testing.T) {
	p, err := New(Config{RepoURL: "git@example.com:dash.git", Log: log.NewLogger(log.DiscardHandler())})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, p.timeout)
}
