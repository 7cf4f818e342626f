// Package placement records where each category's data durably lives.
package placement

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"pinscraper/pkg/statefile"
)

// FileName is the registry file name inside a data root
const FileName = "placements.json"

// Kind tags a Placement
type Kind int

const (
	Local Kind = iota
	Remote
)

// Placement is either Local (data under {root}/{category}) or Remote with
// a bucket name.
type Placement struct {
	Kind   Kind
	Bucket string
}

// LocalPlacement returns a Local placement
func LocalPlacement() Placement { return Placement{Kind: Local} }

// RemotePlacement returns a Remote placement in bucket
func RemotePlacement(bucket string) Placement { return Placement{Kind: Remote, Bucket: bucket} }

// IsLocal reports whether p is Local
func (p Placement) IsLocal() bool { return p.Kind == Local }

func (p Placement) String() string {
	if p.Kind == Remote {
		return fmt.Sprintf("remote(%s)", p.Bucket)
	}
	return "local"
}

// SaveLocation renders the display location of a category under p. It is
// informational only; the registry is authoritative.
func (p Placement) SaveLocation(root, remotePrefix, category string) string {
	if p.Kind == Remote {
		return fmt.Sprintf("s3://%s/%s/%s/", p.Bucket, remotePrefix, category)
	}
	return filepath.Join(root, category)
}

// MarshalJSON encodes Local as "local" and Remote as ["remote", bucket]
func (p Placement) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case Local:
		return json.Marshal("local")
	case Remote:
		return json.Marshal([2]string{"remote", p.Bucket})
	default:
		return nil, fmt.Errorf("unknown placement kind %d", p.Kind)
	}
}

// UnmarshalJSON decodes either wire form
func (p *Placement) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "local" {
			return fmt.Errorf("unknown placement %q", tag)
		}
		*p = LocalPlacement()
		return nil
	}
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("placement must be \"local\" or [\"remote\", bucket]: %w", err)
	}
	if len(pair) != 2 || pair[0] != "remote" || pair[1] == "" {
		return fmt.Errorf("malformed remote placement %v", pair)
	}
	*p = RemotePlacement(pair[1])
	return nil
}

// Registry maps category to its current Placement
type Registry map[string]Placement

// Path returns the registry file path for a data root
func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load reads the registry at path. It returns nil, nil when no file exists.
func Load(path string) (Registry, error) {
	var reg Registry
	found, err := statefile.Read(path, &reg)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if reg == nil {
		reg = Registry{}
	}
	return reg, nil
}

// Save atomically writes the registry to path
func (r Registry) Save(path string) error {
	if r == nil {
		r = Registry{}
	}
	if err := statefile.Write(path, r); err != nil {
		return fmt.Errorf("failed to save placement registry: %w", err)
	}
	return nil
}

// Lookup returns the placement of category and whether it has one
func (r Registry) Lookup(category string) (Placement, bool) {
	p, ok := r[category]
	return p, ok
}

// Categories returns registered categories, sorted
func (r Registry) Categories() []string {
	out := make([]string, 0, len(r))
	for c := range r {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy
func (r Registry) Clone() Registry {
	c := make(Registry, len(r))
	for k, v := range r {
		c[k] = v
	}
	return c
}
