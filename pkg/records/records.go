// Package records defines the per-item metadata captured for each category
// and its durable JSON form.
package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	pserrors "pinscraper/pkg/errors"
	"pinscraper/pkg/statefile"
)

// Unavailable is written in place of any field the page did not provide
const Unavailable = "unavailable"

// MediaKind classifies the media attached to a pin
type MediaKind string

const (
	MediaImage           MediaKind = "image"
	MediaVideo           MediaKind = "video"
	MediaStoryImage      MediaKind = "story-image"
	MediaStoryVideo      MediaKind = "story-video"
	MediaStoryMultiVideo MediaKind = "story-multi-video"
)

// Extension returns the asset file extension for the kind
func (k MediaKind) Extension() string {
	switch k {
	case MediaVideo, MediaStoryVideo, MediaStoryMultiVideo:
		return "mp4"
	default:
		return "jpg"
	}
}

// Tags is an ordered tag list. A nil Tags means the page had no tag section
// and encodes as the Unavailable sentinel.
type Tags []string

func (t Tags) MarshalJSON() ([]byte, error) {
	if t == nil {
		return json.Marshal(Unavailable)
	}
	return json.Marshal([]string(t))
}

func (t *Tags) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != Unavailable {
			return fmt.Errorf("unexpected tag sentinel %q", s)
		}
		*t = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	if list == nil {
		list = []string{}
	}
	*t = list
	return nil
}

// PageRecord is the metadata of one grabbed pin
type PageRecord struct {
	UniqueID      string    `json:"unique_id"`
	Link          string    `json:"link"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PosterName    string    `json:"poster_name"`
	FollowerCount string    `json:"follower_count"`
	Tags          Tags      `json:"tag_list"`
	MediaKind     MediaKind `json:"media_kind"`
	MediaSource   string    `json:"media_source"`
	Downloaded    bool      `json:"downloaded"`
	SaveLocation  string    `json:"save_location"`
}

// CategoryRecord maps item keys ({category}_{n}) to records
type CategoryRecord map[string]PageRecord

// ItemKey returns the key of the n-th item of category
func ItemKey(category string, n int) string {
	return fmt.Sprintf("%s_%d", category, n)
}

// AssetName returns the asset file name stored for key
func AssetName(key string, kind MediaKind) string {
	return key + "." + kind.Extension()
}

// FileName returns the record file name for category
func FileName(category string) string {
	return category + ".json"
}

// Sequence extracts n from a key produced by ItemKey
func Sequence(category, key string) (int, bool) {
	rest, ok := strings.CutPrefix(key, category+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// MaxSequence returns the highest sequence number used in rec
func (rec CategoryRecord) MaxSequence(category string) int {
	max := 0
	for key := range rec {
		if n, ok := Sequence(category, key); ok && n > max {
			max = n
		}
	}
	return max
}

// Keys returns the item keys ordered by sequence
func (rec CategoryRecord) Keys(category string) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := Sequence(category, keys[i])
		b, _ := Sequence(category, keys[j])
		if a != b {
			return a < b
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Merge copies every entry of other into rec, other winning on conflicts
func (rec CategoryRecord) Merge(other CategoryRecord) {
	for k, v := range other {
		rec[k] = v
	}
}

// Retain removes every entry for which keep is false and returns how many
// were removed
func (rec CategoryRecord) Retain(keep func(PageRecord) bool) int {
	n := 0
	for k, v := range rec {
		if !keep(v) {
			delete(rec, k)
			n++
		}
	}
	return n
}

// Write atomically stores rec at path
func Write(path string, rec CategoryRecord) error {
	if rec == nil {
		rec = CategoryRecord{}
	}
	return statefile.Write(path, rec)
}

// Read loads a CategoryRecord from path; a missing file yields an empty record
func Read(path string) (CategoryRecord, error) {
	rec := CategoryRecord{}
	if _, err := statefile.Read(path, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode parses a CategoryRecord from raw JSON
func Decode(data []byte) (CategoryRecord, error) {
	rec := CategoryRecord{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode category record: %w", err)
	}
	return rec, nil
}

// ReadFile is like Read but the file must exist. Undecodable content is a
// CorruptStateError.
func ReadFile(path string) (CategoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := Decode(data)
	if err != nil {
		return nil, &pserrors.CorruptStateError{Path: path, Err: err}
	}
	return rec, nil
}

// LocalPath returns the record path of a Local category under root
func LocalPath(root, category string) string {
	return filepath.Join(root, category, FileName(category))
}
