package constants

// OutcomeKind tags the result of processing one page.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "SUCCESS" // record extracted and normalized
	OutcomeFailure OutcomeKind = "FAILURE" // retries exhausted or run aborted
)

// RunStatus is the overall status of one document run.
type RunStatus string

const (
	RunStatusOK      RunStatus = "OK"      // every page extracted
	RunStatusPartial RunStatus = "PARTIAL" // some pages skipped
	RunStatusEmpty   RunStatus = "EMPTY"   // no page extracted
)
