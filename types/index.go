package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sort"
)

// IndexEntry describes one uploaded result set in the dashboard index.
//
// Entries decoded from an existing index keep their original bytes and are
// written back unchanged, so fields and date formats this version does not
// understand survive a rewrite. The typed fields are a best-effort view.
type IndexEntry struct {
	Filename        string    `json:"filename"`
	Path            string    `json:"path"`
	MeasurementDate Timestamp `json:"measurement_date"`
	RevisionID      string    `json:"git_commit_id"`
	TotalTests      int       `json:"total_tests"`
	SuccessfulTests int       `json:"successful_tests"`
	FailedTests     int       `json:"failed_tests"`

	// rawDate is the measurement date as written when it did not parse.
	rawDate string
	raw     json.RawMessage
}

// indexEntryFields mirrors IndexEntry for encoding new entries.
type indexEntryFields struct {
	Filename        string    `json:"filename"`
	Path            string    `json:"path"`
	MeasurementDate Timestamp `json:"measurement_date"`
	RevisionID      string    `json:"git_commit_id"`
	TotalTests      int       `json:"total_tests"`
	SuccessfulTests int       `json:"successful_tests"`
	FailedTests     int       `json:"failed_tests"`
}

func (e IndexEntry) MarshalJSON() ([]byte, error) {
	if e.raw != nil {
		return e.raw, nil
	}
	return json.Marshal(indexEntryFields{
		Filename:        e.Filename,
		Path:            e.Path,
		MeasurementDate: e.MeasurementDate,
		RevisionID:      e.RevisionID,
		TotalTests:      e.TotalTests,
		SuccessfulTests: e.SuccessfulTests,
		FailedTests:     e.FailedTests,
	})
}

func (e *IndexEntry) UnmarshalJSON(data []byte) error {
	*e = IndexEntry{raw: append(json.RawMessage(nil), data...)}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		// Not an object; kept verbatim.
		return nil
	}
	decodeField(fields, "filename", &e.Filename)
	decodeField(fields, "path", &e.Path)
	decodeField(fields, "git_commit_id", &e.RevisionID)
	decodeField(fields, "total_tests", &e.TotalTests)
	decodeField(fields, "successful_tests", &e.SuccessfulTests)
	decodeField(fields, "failed_tests", &e.FailedTests)

	var date string
	if decodeField(fields, "measurement_date", &date) && date != "" {
		if ts, err := ParseTimestamp(date); err == nil {
			e.MeasurementDate = ts
		} else {
			e.rawDate = date
		}
	}
	return nil
}

func decodeField(fields map[string]json.RawMessage, key string, v any) bool {
	raw, ok := fields[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// dateKey is the measurement date as text, used when a date did not parse.
func (e IndexEntry) dateKey() string {
	if !e.MeasurementDate.IsZero() {
		return e.MeasurementDate.String()
	}
	return e.rawDate
}

// newerThan orders entries by measurement date, comparing the written text
// when either date could not be parsed.
func (e IndexEntry) newerThan(other IndexEntry) bool {
	if !e.MeasurementDate.IsZero() && !other.MeasurementDate.IsZero() {
		return e.MeasurementDate.After(other.MeasurementDate.Time)
	}
	return e.dateKey() > other.dateKey()
}

// sameMeasurement reports whether two entries describe the same run.
func (e IndexEntry) sameMeasurement(other IndexEntry) bool {
	if e.RevisionID != other.RevisionID {
		return false
	}
	if !e.MeasurementDate.IsZero() && !other.MeasurementDate.IsZero() {
		return e.MeasurementDate.Equal(other.MeasurementDate.Time)
	}
	return e.dateKey() != "" && e.dateKey() == other.dateKey()
}

// Index is the dashboard's catalogue of uploaded result sets, newest first.
type Index struct {
	LastUpdated       Timestamp    `json:"last_updated"`
	TotalMeasurements int          `json:"total_measurements"`
	Files             []IndexEntry `json:"files"`

	// extra holds top-level keys other than the three above.
	extra map[string]json.RawMessage
}

type indexFields struct {
	LastUpdated       Timestamp    `json:"last_updated"`
	TotalMeasurements int          `json:"total_measurements"`
	Files             []IndexEntry `json:"files"`
}

func (idx Index) MarshalJSON() ([]byte, error) {
	files := idx.Files
	if files == nil {
		files = []IndexEntry{}
	}
	if len(idx.extra) == 0 {
		return json.Marshal(indexFields{
			LastUpdated:       idx.LastUpdated,
			TotalMeasurements: idx.TotalMeasurements,
			Files:             files,
		})
	}
	doc := maps.Clone(idx.extra)
	for key, v := range map[string]any{
		"last_updated":       idx.LastUpdated,
		"total_measurements": idx.TotalMeasurements,
		"files":              files,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		doc[key] = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON accepts any JSON object. Only a non-object document or a
// "files" value that is not an array is an error.
func (idx *Index) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("index must be a JSON object: %w", err)
	}
	if doc == nil {
		return errors.New("index must be a JSON object")
	}
	*idx = Index{Files: []IndexEntry{}}
	if raw, ok := doc["files"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &idx.Files); err != nil {
			return fmt.Errorf("index files must be an array: %w", err)
		}
	}
	decodeField(doc, "last_updated", &idx.LastUpdated)
	decodeField(doc, "total_measurements", &idx.TotalMeasurements)

	delete(doc, "files")
	delete(doc, "last_updated")
	delete(doc, "total_measurements")
	if len(doc) > 0 {
		idx.extra = doc
	}
	return nil
}

// NewIndex returns an empty index stamped with now.
func NewIndex(now Timestamp) *Index {
	return &Index{
		LastUpdated: now,
		Files:       []IndexEntry{},
	}
}

// Upsert adds entry, replacing any entry for the same (measurement date,
// revision) pair. Entries are re-sorted by measurement date, newest first,
// and the counters are refreshed. It reports whether an entry was replaced.
func (idx *Index) Upsert(entry IndexEntry, now Timestamp) bool {
	replaced := false
	for i := range idx.Files {
		if idx.Files[i].sameMeasurement(entry) {
			idx.Files[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Files = append(idx.Files, entry)
	}

	sort.SliceStable(idx.Files, func(i, j int) bool {
		return idx.Files[i].newerThan(idx.Files[j])
	})
	idx.TotalMeasurements = len(idx.Files)
	idx.LastUpdated = now
	return replaced
}

// EntryFor builds the index entry for a result set copied to filename under dir.
func EntryFor(rs *ResultSet, dir, filename string) IndexEntry {
	revision := rs.Metadata.RevisionID
	if revision == "" {
		revision = UnknownRevision
	}
	return IndexEntry{
		Filename:        filename,
		Path:            dir + "/" + filename,
		MeasurementDate: rs.Metadata.MeasurementDate,
		RevisionID:      revision,
		TotalTests:      rs.Metadata.TotalTests,
		SuccessfulTests: rs.Metadata.SuccessfulTests,
		FailedTests:     rs.Metadata.FailedTests,
	}
}
