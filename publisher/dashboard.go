package publisher

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"github.com/Aswintechie/ttnn-performance-dashboard/types"
)

// Dashboard repository layout.
const (
	DailyDir   = "data/daily"
	LatestFile = "data/latest/latest_results.json"
	IndexFile  = "data/index.json"
)

// dashboard mutates a cloned dashboard working copy.
type dashboard struct {
	root string
	log  log.Logger
}

// dailyName returns the name an artifact is stored under in the daily directory.
func dailyName(artifactPath string, rs *types.ResultSet) string {
	base := filepath.Base(artifactPath)
	date := rs.Metadata.MeasurementDate.Date()
	if date == "" {
		return base
	}
	return date + "_" + base
}

// copyDaily copies the artifact byte-for-byte into the daily directory and
// returns the name it was stored under.
func (d *dashboard) copyDaily(artifactPath string, rs *types.ResultSet) (string, error) {
	dir := filepath.Join(d.root, filepath.FromSlash(DailyDir))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", DailyDir, err)
	}
	name := dailyName(artifactPath, rs)
	if err := copyFile(artifactPath, filepath.Join(dir, name)); err != nil {
		return "", err
	}
	d.log.Info("Copied results to dashboard", "file", name)
	return name, nil
}

// updateLatest overwrites the latest results document with the artifact, indented.
func (d *dashboard) updateLatest(raw []byte) error {
	path := filepath.Join(d.root, filepath.FromSlash(LatestFile))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create latest directory: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("failed to format latest results: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", LatestFile, err)
	}
	d.log.Info("Updated latest results")
	return nil
}

// loadIndex reads the index, falling back to an empty one when the file is
// missing, unreadable or not a JSON object. Existing entries are kept as
// written even when their fields are not understood.
func (d *dashboard) loadIndex(now types.Timestamp) *types.Index {
	path := filepath.Join(d.root, filepath.FromSlash(IndexFile))
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.log.Warn("Could not read index, starting a new one", "error", err)
		}
		return types.NewIndex(now)
	}
	var idx types.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		d.log.Warn("Malformed index, starting a new one", "error", err)
		return types.NewIndex(now)
	}
	if idx.Files == nil {
		idx.Files = []types.IndexEntry{}
	}
	return &idx
}

// updateIndex upserts the entry for the copied artifact and rewrites the index.
func (d *dashboard) updateIndex(rs *types.ResultSet, dailyFile string, now types.Timestamp) error {
	idx := d.loadIndex(now)
	entry := types.EntryFor(rs, DailyDir, dailyFile)
	if idx.Upsert(entry, now) {
		d.log.Info("Updated existing index entry", "file", dailyFile)
	} else {
		d.log.Info("Added new index entry", "file", dailyFile)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}
	path := filepath.Join(d.root, filepath.FromSlash(IndexFile))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", IndexFile, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
