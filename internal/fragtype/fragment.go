package fragtype

import "fmt"

// Fragment identifies one named sub-file and where its compressed bytes
// live inside an archive.
type Fragment struct {
	// Name is the fragment's logical name (e.g., "manifest.safe").
	Name string

	// ArchiveID identifies the archive the fragment is embedded in.
	ArchiveID string

	// Range is the compressed byte range of the fragment.
	Range Range
}

// NewFragment builds a Fragment for name at [start, stop) inside archiveID.
func NewFragment(name, archiveID string, start, stop int64) (Fragment, error) {
	if name == "" {
		return Fragment{}, fmt.Errorf("%w: fragment name is empty", ErrConfig)
	}
	if archiveID == "" {
		return Fragment{}, fmt.Errorf("%w: %s: archive id is empty", ErrConfig, name)
	}
	r, err := NewRange(start, stop)
	if err != nil {
		return Fragment{}, fmt.Errorf("%s/%s: %w", archiveID, name, err)
	}
	return Fragment{Name: name, ArchiveID: archiveID, Range: r}, nil
}

// FragmentSet is an ordered, non-empty list of fragments from one archive.
// The order defines the output concatenation order.
type FragmentSet struct {
	archiveID string
	fragments []Fragment
}

// NewFragmentSet validates fragments and returns them as a set.
// The slice is copied; the caller may reuse it.
func NewFragmentSet(fragments []Fragment) (FragmentSet, error) {
	if len(fragments) == 0 {
		return FragmentSet{}, fmt.Errorf("%w: no fragments listed", ErrConfig)
	}
	archiveID := fragments[0].ArchiveID
	for _, f := range fragments {
		if f.ArchiveID != archiveID {
			return FragmentSet{}, fmt.Errorf("%w: fragment %s belongs to %q, set archive is %q",
				ErrConfig, f.Name, f.ArchiveID, archiveID)
		}
		if f.Range.Stop <= f.Range.Start || f.Range.Start < 0 {
			return FragmentSet{}, fmt.Errorf("%w: fragment %s has invalid range %s", ErrConfig, f.Name, f.Range)
		}
	}
	return FragmentSet{
		archiveID: archiveID,
		fragments: append([]Fragment(nil), fragments...),
	}, nil
}

// ArchiveID returns the archive shared by every fragment in the set.
func (s FragmentSet) ArchiveID() string {
	return s.archiveID
}

// Len returns the number of fragments.
func (s FragmentSet) Len() int {
	return len(s.fragments)
}

// At returns the i-th fragment.
func (s FragmentSet) At(i int) Fragment {
	return s.fragments[i]
}

// Fragments returns a copy of the fragments in order.
func (s FragmentSet) Fragments() []Fragment {
	return append([]Fragment(nil), s.fragments...)
}

// CompressedSize returns the total number of compressed bytes in the set.
func (s FragmentSet) CompressedSize() int64 {
	var total int64
	for _, f := range s.fragments {
		total += f.Range.Len()
	}
	return total
}
