package report

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
)

const (
	baseTemplateNameConstant        = "base"
	rowHeightConstant               = 22
	barHeightConstant               = 14
	labelWidthConstant              = 220
	chartPaddingConstant            = 8
	percentTemplateConstant         = "%.3f"
	minutesTemplateConstant         = "%.2f"
	htmlTimestampLayoutConstant     = "2006-01-02 15:04:05 MST"
	emptyTimestampConstant          = "-"
	barClassConstant                = "bar"
	contributorBarClassConstant     = "contributor"
	aggregateBarClassConstant       = "aggregate"
	retriedBarClassConstant         = "retried"
	executionLinkPrefixConstant     = "executions/"
	htmlFilePermissionsConstant     = 0o644
	htmlDirectoryPermissionConstant = 0o755
)

var htmlFunctions = template.FuncMap{
	"seconds": formatSeconds,
	"minutes": func(minutes float64) string {
		return fmt.Sprintf(minutesTemplateConstant, minutes)
	},
	"timestamp": func(moment time.Time) string {
		if moment.IsZero() {
			return emptyTimestampConstant
		}
		return moment.UTC().Format(htmlTimestampLayoutConstant)
	},
	"percent": func(value float64, total float64) string {
		if total <= 0 {
			return fmt.Sprintf(percentTemplateConstant, 0.0)
		}
		return fmt.Sprintf(percentTemplateConstant, value/total*100)
	},
	"increment": func(value int) int {
		return value + 1
	},
	"rowHeight": func() int {
		return rowHeightConstant
	},
	"barHeight": func() int {
		return barHeightConstant
	},
	"labelWidth": func() int {
		return labelWidthConstant
	},
	"rowTop": func(row int) int {
		return row * rowHeightConstant
	},
	"barTop": func(row int) int {
		return row*rowHeightConstant + (rowHeightConstant-barHeightConstant)/2
	},
	"loopHeight": func(firstRow int, lastRow int) int {
		return (lastRow - firstRow + 1) * rowHeightConstant
	},
	"chartHeight": func(rows int) int {
		return rows*rowHeightConstant + chartPaddingConstant
	},
	"barClass": stepBarClass,
}

var htmlTemplates = template.Must(template.New("report").Funcs(htmlFunctions).Parse(htmlBaseTemplateConstant + htmlIndexTemplateConstant + htmlExecutionTemplateConstant))

type htmlPage struct {
	RunID       string
	GeneratedAt time.Time
	LinkPrefix  string
	Executions  []ExecutionReport
	Execution   *ExecutionReport
}

func stepBarClass(step StepReport) string {
	classes := []string{barClassConstant}
	if step.Contributor {
		classes = append(classes, contributorBarClassConstant)
	}
	if step.Aggregate {
		classes = append(classes, aggregateBarClassConstant)
	}
	if step.Attempts > 1 {
		classes = append(classes, retriedBarClassConstant)
	}
	return strings.Join(classes, " ")
}

// WriteHTMLIndex renders a page linking every execution of the document.
func WriteHTMLIndex(writer io.Writer, document Document) error {
	return WriteHTMLIndexWithLinks(writer, document, executionLinkPrefixConstant)
}

// WriteHTMLIndexWithLinks renders the index page, linking execution i to linkPrefix+i.
func WriteHTMLIndexWithLinks(writer io.Writer, document Document, linkPrefix string) error {
	page := htmlPage{
		RunID:       document.RunID,
		GeneratedAt: document.GeneratedAt,
		LinkPrefix:  linkPrefix,
		Executions:  document.Executions,
	}
	return htmlTemplates.ExecuteTemplate(writer, baseTemplateNameConstant, page)
}

// WriteHTMLExecution renders the timeline page of a single execution.
func WriteHTMLExecution(writer io.Writer, document Document, executionReport ExecutionReport) error {
	page := htmlPage{
		RunID:       document.RunID,
		GeneratedAt: document.GeneratedAt,
		Execution:   &executionReport,
	}
	return htmlTemplates.ExecuteTemplate(writer, baseTemplateNameConstant, page)
}

// WriteHTMLFiles writes one page per execution into directory and returns the written paths.
func WriteHTMLFiles(directory string, document Document) ([]string, error) {
	if mkdirError := os.MkdirAll(directory, htmlDirectoryPermissionConstant); mkdirError != nil {
		return nil, profilererrors.Wrap(profilererrors.OperationReportRender, directory, profilererrors.ErrReportRenderFailed, mkdirError)
	}
	paths := make([]string, 0, len(document.Executions))
	for _, executionReport := range document.Executions {
		path := filepath.Join(directory, executionReport.HTMLFileName())
		if writeError := writeHTMLFile(path, document, executionReport); writeError != nil {
			return paths, profilererrors.Wrap(profilererrors.OperationReportRender, path, profilererrors.ErrReportRenderFailed, writeError)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeHTMLFile(path string, document Document, executionReport ExecutionReport) error {
	file, createError := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, htmlFilePermissionsConstant)
	if createError != nil {
		return createError
	}
	renderError := WriteHTMLExecution(file, document, executionReport)
	closeError := file.Close()
	if renderError != nil {
		return renderError
	}
	return closeError
}
