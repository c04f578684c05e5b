package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
)

// Table is the combined result: schema columns, one row per extracted page.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Failure is a skipped page. Page is 1-based for display.
type Failure struct {
	Page   int    `json:"page"`
	Reason string `json:"reason"`
}

// Report is a finished run.
type Report struct {
	RunID      string              `json:"run_id"`
	Source     string              `json:"source"`
	PagesTotal int                 `json:"pages_total"`
	Failures   []Failure           `json:"failures"`
	Status     constants.RunStatus `json:"status"`
	ElapsedMS  int64               `json:"elapsed_ms"`
	Table      Table               `json:"table"`
}

// Aggregate keeps the successful outcomes in page order, each projected onto the schema columns.
// It returns common.ErrEmptyResult when no page succeeded.
func Aggregate(outcomes []pipeline.Outcome) (Table, error) {
	t := Table{Columns: constants.FieldNames(), Rows: [][]string{}}
	for _, o := range outcomes {
		if o.OK() {
			t.Rows = append(t.Rows, o.Record.Values())
		}
	}
	if len(t.Rows) == 0 {
		return t, common.ErrEmptyResult
	}
	return t, nil
}

// Build assembles the report of a run. The report is always returned; err is
// common.ErrEmptyResult when nothing was extracted.
func Build(runID, source string, outcomes []pipeline.Outcome, elapsed time.Duration) (*Report, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	table, err := Aggregate(outcomes)

	rep := &Report{
		RunID:      runID,
		Source:     source,
		PagesTotal: len(outcomes),
		Failures:   []Failure{},
		ElapsedMS:  elapsed.Milliseconds(),
		Table:      table,
	}
	for _, o := range outcomes {
		if !o.OK() {
			rep.Failures = append(rep.Failures, Failure{Page: o.Index + 1, Reason: o.Reason})
		}
	}

	switch {
	case err != nil:
		rep.Status = constants.RunStatusEmpty
	case len(rep.Failures) > 0:
		rep.Status = constants.RunStatusPartial
	default:
		rep.Status = constants.RunStatusOK
	}
	return rep, err
}

func (r *Report) PagesFailed() int { return len(r.Failures) }
func (r *Report) PagesOK() int     { return len(r.Table.Rows) }
