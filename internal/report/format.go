package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/timeline"
)

// Format identifies a report rendering.
type Format string

const (
	// FormatTable renders aligned text tables.
	FormatTable Format = "table"
	// FormatYAML renders the document as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON renders the document as indented JSON.
	FormatJSON Format = "json"
	// FormatHTML renders one timeline page per execution.
	FormatHTML Format = "html"

	jsonIndentConstant               = "  "
	yamlIndentConstant               = 2
	tableMinimumWidthConstant        = 0
	tableTabWidthConstant            = 8
	tablePaddingConstant             = 2
	tablePaddingCharacterConstant    = ' '
	secondsValueTemplateConstant     = "%.2fs"
	unsupportedFormatMessageConstant = "unsupported report format %q"
	executionHeaderTemplateConstant  = "Execution %s (%s)\n"
	executionSummaryTemplateConstant = "Duration: %.2f min (%.2f sec)\tStart: %s\tEnd: %s\tIntervals: %d\n"
	withoutLoopsHeadingConstant      = "Largest contributors (without loops)"
	withLoopsHeadingConstant         = "Largest contributors (including loops)"
	aggregatesHeadingConstant        = "Aggregated steps"
	contributorColumnsConstant       = "RANK\tSTEP\tDURATION"
	aggregateColumnsConstant         = "STEP\tCOUNT\tMEAN\tMEDIAN\tMIN\tMAX"
	timestampLayoutConstant          = "2006-01-02 15:04:05"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	candidate := Format(strings.ToLower(strings.TrimSpace(value)))
	switch candidate {
	case FormatTable, FormatYAML, FormatJSON, FormatHTML:
		return candidate, nil
	default:
		return "", fmt.Errorf(unsupportedFormatMessageConstant, value)
	}
}

// Write renders the document in the requested textual format.
func Write(writer io.Writer, document Document, format Format) error {
	var renderError error
	switch format {
	case FormatTable:
		renderError = WriteTable(writer, document)
	case FormatYAML:
		renderError = WriteYAML(writer, document)
	case FormatJSON:
		renderError = WriteJSON(writer, document)
	case FormatHTML:
		renderError = WriteHTMLIndex(writer, document)
	default:
		renderError = fmt.Errorf(unsupportedFormatMessageConstant, string(format))
	}
	if renderError != nil {
		return profilererrors.Wrap(profilererrors.OperationReportRender, string(format), profilererrors.ErrReportRenderFailed, renderError)
	}
	return nil
}

// WriteJSON encodes the document as indented JSON.
func WriteJSON(writer io.Writer, document Document) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", jsonIndentConstant)
	return encoder.Encode(document)
}

// WriteYAML encodes the document as YAML.
func WriteYAML(writer io.Writer, document Document) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndentConstant)
	if encodeError := encoder.Encode(document); encodeError != nil {
		return encodeError
	}
	return encoder.Close()
}

// WriteTable prints the per-execution summaries and contributor rankings.
func WriteTable(writer io.Writer, document Document) error {
	tableWriter := tabwriter.NewWriter(writer, tableMinimumWidthConstant, tableTabWidthConstant, tablePaddingConstant, tablePaddingCharacterConstant, 0)
	for index, executionReport := range document.Executions {
		if index > 0 {
			fmt.Fprintln(tableWriter)
		}
		fmt.Fprintf(tableWriter, executionHeaderTemplateConstant, executionReport.ID, executionReport.Status)
		fmt.Fprintf(
			tableWriter,
			executionSummaryTemplateConstant,
			executionReport.DurationMinutes,
			executionReport.DurationSeconds,
			executionReport.Start.Format(timestampLayoutConstant),
			executionReport.End.Format(timestampLayoutConstant),
			executionReport.IntervalCount,
		)
		writeContributorTable(tableWriter, withoutLoopsHeadingConstant, executionReport.ContributorsWithoutLoops)
		writeContributorTable(tableWriter, withLoopsHeadingConstant, executionReport.ContributorsWithLoops)
		if len(executionReport.Aggregates) > 0 {
			fmt.Fprintln(tableWriter)
			fmt.Fprintln(tableWriter, aggregatesHeadingConstant)
			fmt.Fprintln(tableWriter, aggregateColumnsConstant)
			for _, aggregate := range executionReport.Aggregates {
				statistics := aggregate.Statistics
				fmt.Fprintf(
					tableWriter,
					"%s\t%d\t%s\t%s\t%s\t%s\n",
					aggregate.Name,
					statistics.Count,
					formatSeconds(statistics.Mean),
					formatSeconds(statistics.Median),
					formatSeconds(statistics.Minimum),
					formatSeconds(statistics.Maximum),
				)
			}
		}
	}
	return tableWriter.Flush()
}

func writeContributorTable(writer io.Writer, heading string, contributions []timeline.Contribution) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, heading)
	fmt.Fprintln(writer, contributorColumnsConstant)
	for index, contribution := range contributions {
		fmt.Fprintf(writer, "%d\t%s\t%s\n", index+1, contribution.Name, formatSeconds(contribution.TotalSeconds))
	}
}

func formatSeconds(seconds float64) string {
	return fmt.Sprintf(secondsValueTemplateConstant, seconds)
}
