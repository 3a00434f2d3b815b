package rangefetch

import "github.com/meigma/rangefetch/internal/fragtype"

// Re-export progress types from fragtype.
type (
	// ProgressEvent represents a progress update during an extraction.
	ProgressEvent = fragtype.ProgressEvent

	// ProgressStage identifies the current phase of an extraction.
	ProgressStage = fragtype.ProgressStage

	// ProgressFunc receives progress updates during extractions.
	// Implementations must be safe for concurrent calls.
	ProgressFunc = fragtype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StageFetching indicates a fragment has been fetched and decoded.
	StageFetching = fragtype.StageFetching

	// StageAssembling indicates the ordered output is being written.
	StageAssembling = fragtype.StageAssembling

	// StageDone indicates the artifact has been committed.
	StageDone = fragtype.StageDone
)
