package fragtype

// ProgressEvent represents a progress update during an extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Fragment is the fragment name, if applicable.
	Fragment string

	// BytesDone is the number of decoded bytes produced so far.
	BytesDone uint64

	// FragmentsDone is the number of fragments fetched and decoded.
	FragmentsDone int

	// FragmentsTotal is the number of fragments in the set.
	FragmentsTotal int
}

// ProgressStage identifies the current phase of an extraction.
type ProgressStage uint8

// Progress stages for extraction operations.
const (
	// StageFetching indicates a fragment has been fetched and decoded.
	StageFetching ProgressStage = iota

	// StageAssembling indicates the ordered output is being written to the sink.
	StageAssembling

	// StageDone indicates the artifact has been committed.
	StageDone
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageAssembling:
		return "assembling"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates.
// Implementations must be safe for concurrent calls.
type ProgressFunc func(ProgressEvent)
