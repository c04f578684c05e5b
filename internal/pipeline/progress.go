package pipeline

import "github.com/joseph-ayodele/invoice-extractor/constants"

// ProgressReporter receives one call per finished page, index is 0-based.
type ProgressReporter interface {
	PageDone(index, total int, kind constants.OutcomeKind)
}

// NoOpProgressReporter discards progress.
type NoOpProgressReporter struct{}

func (NoOpProgressReporter) PageDone(int, int, constants.OutcomeKind) {}

// ProgressFunc adapts a function to ProgressReporter.
type ProgressFunc func(index, total int, kind constants.OutcomeKind)

func (f ProgressFunc) PageDone(index, total int, kind constants.OutcomeKind) { f(index, total, kind) }
