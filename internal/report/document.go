package report

import (
	"slices"
	"time"

	"github.com/google/uuid"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/history"
	"github.com/tyemirov/stepprof/internal/timeline"
)

const (
	// DefaultContributorLimit caps the contributor tables of each execution.
	DefaultContributorLimit = 10

	htmlFileNamePrefixConstant    = "full-"
	htmlFileNameExtensionConstant = ".html"
	aggregateStatusConstant       = "AGGREGATED"
	unknownStatusConstant         = "UNKNOWN"
	minimumLoopIterationsConstant = 2
)

// DocumentOptions controls how executions are summarized.
type DocumentOptions struct {
	ContributorLimit int
	Descriptions     map[timeline.WorkflowID]history.Description
	RunID            string
	GeneratedAt      time.Time
}

// Document is the rendered profile of one run.
type Document struct {
	RunID       string            `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time         `json:"generated_at" yaml:"generated_at"`
	Executions  []ExecutionReport `json:"executions" yaml:"executions"`
}

// ExecutionReport summarizes one execution.
type ExecutionReport struct {
	ID                       string                  `json:"id" yaml:"id"`
	FileName                 string                  `json:"file_name" yaml:"file_name"`
	Status                   string                  `json:"status" yaml:"status"`
	Start                    time.Time               `json:"start" yaml:"start"`
	End                      time.Time               `json:"end" yaml:"end"`
	DurationSeconds          float64                 `json:"duration_seconds" yaml:"duration_seconds"`
	DurationMinutes          float64                 `json:"duration_minutes" yaml:"duration_minutes"`
	IntervalCount            int                     `json:"interval_count" yaml:"interval_count"`
	ContributorsWithoutLoops []timeline.Contribution `json:"contributors_without_loops" yaml:"contributors_without_loops"`
	ContributorsWithLoops    []timeline.Contribution `json:"contributors_with_loops" yaml:"contributors_with_loops"`
	Rows                     []string                `json:"rows" yaml:"rows"`
	Steps                    []StepReport            `json:"steps" yaml:"steps"`
	Loops                    []LoopReport            `json:"loops,omitempty" yaml:"loops,omitempty"`
	Aggregates               []AggregateReport       `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
}

// StepReport is one bar of the execution timeline.
type StepReport struct {
	Name            string  `json:"name" yaml:"name"`
	Workflow        string  `json:"workflow" yaml:"workflow"`
	Row             int     `json:"row" yaml:"row"`
	OffsetSeconds   float64 `json:"offset_seconds" yaml:"offset_seconds"`
	DurationSeconds float64 `json:"duration_seconds" yaml:"duration_seconds"`
	Attempts        int     `json:"attempts" yaml:"attempts"`
	Contributor     bool    `json:"contributor" yaml:"contributor"`
	Aggregate       bool    `json:"aggregate" yaml:"aggregate"`
}

// LoopReport outlines a detected loop.
type LoopReport struct {
	Label           string   `json:"label" yaml:"label"`
	Names           []string `json:"names" yaml:"names"`
	Iterations      int      `json:"iterations" yaml:"iterations"`
	FirstRow        int      `json:"first_row" yaml:"first_row"`
	LastRow         int      `json:"last_row" yaml:"last_row"`
	OffsetSeconds   float64  `json:"offset_seconds" yaml:"offset_seconds"`
	DurationSeconds float64  `json:"duration_seconds" yaml:"duration_seconds"`
}

// AggregateReport describes the sample distribution behind an aggregate step.
type AggregateReport struct {
	Name         string     `json:"name" yaml:"name"`
	Contributors []string   `json:"contributors" yaml:"contributors"`
	Statistics   Statistics `json:"statistics" yaml:"statistics"`
}

// HTMLFileName returns the file name used when the execution is written as a standalone page.
func (executionReport ExecutionReport) HTMLFileName() string {
	return htmlFileNamePrefixConstant + executionReport.FileName + htmlFileNameExtensionConstant
}

// NewDocument summarizes the executions in render order.
func NewDocument(executions []timeline.Execution, options DocumentOptions) (Document, error) {
	limit := options.ContributorLimit
	if limit == 0 {
		limit = DefaultContributorLimit
	}
	runID := options.RunID
	if len(runID) == 0 {
		runID = uuid.NewString()
	}
	generatedAt := options.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	document := Document{RunID: runID, GeneratedAt: generatedAt}
	for _, execution := range executions {
		executionReport, buildError := buildExecutionReport(execution, limit, options.Descriptions)
		if buildError != nil {
			return Document{}, profilererrors.Wrap(profilererrors.OperationReportRender, execution.ID.String(), profilererrors.ErrReportRenderFailed, buildError)
		}
		document.Executions = append(document.Executions, executionReport)
	}
	return document, nil
}

func buildExecutionReport(execution timeline.Execution, limit int, descriptions map[timeline.WorkflowID]history.Description) (ExecutionReport, error) {
	withoutLoops, withoutLoopsError := timeline.LargestContributors(execution, timeline.ContributionOptions{Limit: limit})
	if withoutLoopsError != nil {
		return ExecutionReport{}, withoutLoopsError
	}
	withLoops, withLoopsError := timeline.LargestContributors(execution, timeline.ContributionOptions{WithLoops: true, Limit: limit})
	if withLoopsError != nil {
		return ExecutionReport{}, withLoopsError
	}

	start, _ := execution.Start()
	end, _ := execution.End()
	executionReport := ExecutionReport{
		ID:                       execution.ID.String(),
		FileName:                 execution.FileName(),
		Status:                   executionStatus(execution.ID, descriptions),
		Start:                    start,
		End:                      end,
		DurationSeconds:          execution.TotalSeconds(),
		DurationMinutes:          execution.TotalMinutes(),
		IntervalCount:            len(execution.Intervals),
		ContributorsWithoutLoops: withoutLoops,
		ContributorsWithLoops:    withLoops,
	}

	contributorNames := make(map[string]struct{}, len(withoutLoops))
	for _, contribution := range withoutLoops {
		contributorNames[contribution.Name] = struct{}{}
	}

	ordered := slices.Clone(execution.Intervals)
	slices.SortStableFunc(ordered, func(left timeline.Span, right timeline.Span) int {
		return left.Start().Compare(right.Start())
	})

	rowIndex := map[string]int{}
	for _, span := range ordered {
		row, known := rowIndex[span.Name()]
		if !known {
			row = len(executionReport.Rows)
			rowIndex[span.Name()] = row
			executionReport.Rows = append(executionReport.Rows, span.Name())
		}
		_, isContributor := contributorNames[span.Name()]
		aggregate, isAggregate := span.(timeline.AggregateInterval)
		executionReport.Steps = append(executionReport.Steps, StepReport{
			Name:            span.Name(),
			Workflow:        span.Workflow().String(),
			Row:             row,
			OffsetSeconds:   span.Start().Sub(start).Seconds(),
			DurationSeconds: span.TotalSeconds(),
			Attempts:        span.Attempts(),
			Contributor:     isContributor,
			Aggregate:       isAggregate,
		})
		if isAggregate {
			executionReport.Aggregates = append(executionReport.Aggregates, buildAggregateReport(aggregate))
		}
	}

	for _, loop := range execution.Loops {
		if loop.Iterations() < minimumLoopIterationsConstant {
			continue
		}
		executionReport.Loops = append(executionReport.Loops, buildLoopReport(loop, start, rowIndex))
	}
	return executionReport, nil
}

func executionStatus(identifier timeline.WorkflowID, descriptions map[timeline.WorkflowID]history.Description) string {
	if identifier == timeline.AggregateWorkflowID {
		return aggregateStatusConstant
	}
	description, found := descriptions[identifier]
	if !found || len(description.Status) == 0 {
		return unknownStatusConstant
	}
	return description.Status
}

func buildLoopReport(loop timeline.Loop, executionStart time.Time, rowIndex map[string]int) LoopReport {
	loopReport := LoopReport{
		Label:           loop.CanonicalLabel(),
		Names:           loop.Names(),
		Iterations:      loop.Iterations(),
		FirstRow:        -1,
		LastRow:         -1,
		OffsetSeconds:   loop.Start().Sub(executionStart).Seconds(),
		DurationSeconds: loop.TotalSeconds(),
	}
	for _, name := range loop.Names() {
		row, found := rowIndex[name]
		if !found {
			continue
		}
		if loopReport.FirstRow < 0 || row < loopReport.FirstRow {
			loopReport.FirstRow = row
		}
		if row > loopReport.LastRow {
			loopReport.LastRow = row
		}
	}
	return loopReport
}

func buildAggregateReport(aggregate timeline.AggregateInterval) AggregateReport {
	contributors := make([]string, 0, len(aggregate.Contributors()))
	for _, contributor := range aggregate.Contributors() {
		contributors = append(contributors, contributor.String())
	}
	return AggregateReport{
		Name:         aggregate.Name(),
		Contributors: contributors,
		Statistics:   Summarize(aggregate.Seconds()),
	}
}
