// Package offsets loads offset tables describing where fragments live
// inside archives.
//
// An offset table maps archive identifiers to fragment names to compressed
// byte offsets:
//
//	{
//	  "S1A_IW_SLC__1SDV_20200604T022251_20200604T022318_032861_03CE65_7C85": {
//	    "manifest.safe": {"offset_start": 1024, "offset_stop": 9000}
//	  }
//	}
//
// Fragment order is the order in which fragments are declared in the
// table. JSON tables may contain comments and trailing commas; YAML tables
// use the same shape.
package offsets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/rangefetch/internal/fragtype"
)

// Archive is the ordered list of fragments declared for one archive.
type Archive struct {
	ID        string
	Fragments []fragtype.Fragment
}

// Table is a parsed offset table. Archives and their fragments keep their
// declaration order.
type Table struct {
	Archives []Archive
}

// offsetEntry is the per-fragment value in a table.
type offsetEntry struct {
	OffsetStart *int64 `json:"offset_start" yaml:"offset_start"`
	OffsetStop  *int64 `json:"offset_stop" yaml:"offset_stop"`
}

func (e offsetEntry) fragment(archiveID, name string) (fragtype.Fragment, error) {
	if e.OffsetStart == nil || e.OffsetStop == nil {
		return fragtype.Fragment{}, fmt.Errorf("%w: %s/%s: offset_start and offset_stop are required",
			fragtype.ErrConfig, archiveID, name)
	}
	return fragtype.NewFragment(name, archiveID, *e.OffsetStart, *e.OffsetStop)
}

// Load reads and parses the offset table at path.
// Files ending in .yaml or .yml are parsed as YAML, anything else as JSON.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read offset table: %v", fragtype.ErrConfig, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// Parse parses a JSON or YAML table, detecting JSON by a leading '{'.
func Parse(data []byte) (*Table, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("//")) || bytes.HasPrefix(trimmed, []byte("/*")) {
		return ParseJSON(data)
	}
	return ParseYAML(data)
}

// Archive returns the archive with the given id.
func (t *Table) Archive(id string) (Archive, bool) {
	for _, a := range t.Archives {
		if a.ID == id {
			return a, true
		}
	}
	return Archive{}, false
}

// IDs returns the archive identifiers in declaration order.
func (t *Table) IDs() []string {
	ids := make([]string, len(t.Archives))
	for i, a := range t.Archives {
		ids[i] = a.ID
	}
	return ids
}

// FragmentSet returns the fragments of archive id in declaration order.
// An empty id selects the first archive in the table.
func (t *Table) FragmentSet(id string) (fragtype.FragmentSet, error) {
	if len(t.Archives) == 0 {
		return fragtype.FragmentSet{}, fmt.Errorf("%w: offset table lists no archives", fragtype.ErrConfig)
	}
	if id == "" {
		return fragtype.NewFragmentSet(t.Archives[0].Fragments)
	}
	a, ok := t.Archive(id)
	if !ok {
		return fragtype.FragmentSet{}, fmt.Errorf("%w: archive %s not in offset table", fragtype.ErrConfig, id)
	}
	return fragtype.NewFragmentSet(a.Fragments)
}

// FragmentSets returns one set per archive, in declaration order.
func (t *Table) FragmentSets() ([]fragtype.FragmentSet, error) {
	if len(t.Archives) == 0 {
		return nil, fmt.Errorf("%w: offset table lists no archives", fragtype.ErrConfig)
	}
	sets := make([]fragtype.FragmentSet, 0, len(t.Archives))
	for _, a := range t.Archives {
		set, err := fragtype.NewFragmentSet(a.Fragments)
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", a.ID, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// tableBuilder accumulates archives while rejecting duplicates.
type tableBuilder struct {
	table    Table
	archives map[string]bool
	names    map[string]bool
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{archives: make(map[string]bool)}
}

func (b *tableBuilder) startArchive(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty archive id", fragtype.ErrConfig)
	}
	if b.archives[id] {
		return fmt.Errorf("%w: archive %s declared twice", fragtype.ErrConfig, id)
	}
	b.archives[id] = true
	b.names = make(map[string]bool)
	b.table.Archives = append(b.table.Archives, Archive{ID: id})
	return nil
}

func (b *tableBuilder) addFragment(name string, entry offsetEntry) error {
	a := &b.table.Archives[len(b.table.Archives)-1]
	if b.names[name] {
		return fmt.Errorf("%w: %s/%s declared twice", fragtype.ErrConfig, a.ID, name)
	}
	b.names[name] = true
	f, err := entry.fragment(a.ID, name)
	if err != nil {
		return err
	}
	a.Fragments = append(a.Fragments, f)
	return nil
}

func (b *tableBuilder) finish() (*Table, error) {
	if len(b.table.Archives) == 0 {
		return nil, fmt.Errorf("%w: offset table lists no archives", fragtype.ErrConfig)
	}
	for _, a := range b.table.Archives {
		if len(a.Fragments) == 0 {
			return nil, fmt.Errorf("%w: archive %s lists no fragments", fragtype.ErrConfig, a.ID)
		}
	}
	return &b.table, nil
}
