package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tyemirov/stepprof/internal/report"
	"github.com/tyemirov/stepprof/internal/timeline"
	"github.com/tyemirov/utils/llm"
)

const (
	defaultMaxTokens                  = 512
	defaultContributorsPerTable       = 5
	defaultDigestCharacterCap         = 12000
	systemRoleConstant                = "system"
	userRoleConstant                  = "user"
	narrativeRequestedMessageConstant = "requesting profile narrative"
	executionCountFieldNameConstant   = "executions"
	promptCharactersFieldNameConstant = "prompt_characters"
)

// Options configure narrative generation.
type Options struct {
	MaxTokens    int
	Temperature  *float64
	Contributors int
}

// Result contains the generated narrative and the prompt that produced it.
type Result struct {
	Narrative string
	Request   llm.ChatRequest
}

// Generator explains profile documents via an LLM.
type Generator struct {
	Client llm.ChatClient
	Logger *zap.Logger
}

// ErrEmptyDocument indicates there is nothing to explain.
var ErrEmptyDocument = errors.New("profile document contains no executions")

// Generate builds the prompt and returns the LLM response.
func (generator Generator) Generate(ctx context.Context, document report.Document, options Options) (Result, error) {
	request, buildError := generator.BuildRequest(document, options)
	if buildError != nil {
		return Result{}, buildError
	}
	if generator.Logger != nil {
		generator.Logger.Debug(
			narrativeRequestedMessageConstant,
			zap.Int(executionCountFieldNameConstant, len(document.Executions)),
			zap.Int(promptCharactersFieldNameConstant, len(request.Messages[1].Content)),
		)
	}
	response, llmError := generator.Client.Chat(ctx, request)
	if llmError != nil {
		return Result{}, fmt.Errorf("profile narrative.llm: %w", llmError)
	}
	trimmed := strings.TrimSpace(response)
	if trimmed == "" {
		return Result{}, errors.New("llm returned an empty narrative")
	}
	return Result{Narrative: trimmed, Request: request}, nil
}

// BuildRequest prepares the chat request without invoking the LLM.
func (generator Generator) BuildRequest(document report.Document, options Options) (llm.ChatRequest, error) {
	if generator.Client == nil {
		return llm.ChatRequest{}, errors.New("llm client is not configured")
	}
	if len(document.Executions) == 0 {
		return llm.ChatRequest{}, ErrEmptyDocument
	}

	contributors := options.Contributors
	if contributors <= 0 {
		contributors = defaultContributorsPerTable
	}

	systemMessage := llm.Message{
		Role: systemRoleConstant,
		Content: strings.Join([]string{
			"You are a performance engineer reviewing AWS Step Functions execution profiles.",
			"Identify the steps and loops that dominate wall-clock time and point out retried steps.",
			"When aggregated contributor statistics are present, call out steps with wide spread between minimum and maximum.",
			"Answer in short paragraphs or bullets without restating the raw tables.",
		}, " "),
	}

	userMessage := llm.Message{
		Role: userRoleConstant,
		Content: fmt.Sprintf(
			"Profile run: %s\n\n%s\n\nReturn only the analysis.",
			document.RunID,
			truncateDigest(digestDocument(document, contributors), defaultDigestCharacterCap),
		),
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return llm.ChatRequest{
		Messages:    []llm.Message{systemMessage, userMessage},
		MaxTokens:   maxTokens,
		Temperature: options.Temperature,
	}, nil
}

func digestDocument(document report.Document, contributors int) string {
	var builder strings.Builder
	for index, executionReport := range document.Executions {
		if index > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "Execution %s\nStatus: %s\nDuration: %.2fs over %d intervals\n", executionReport.ID, executionReport.Status, executionReport.DurationSeconds, executionReport.IntervalCount)
		writeContributions(&builder, "Largest steps", executionReport.ContributorsWithoutLoops, contributors)
		writeContributions(&builder, "Largest steps with loops folded", executionReport.ContributorsWithLoops, contributors)

		for _, loopReport := range executionReport.Loops {
			fmt.Fprintf(&builder, "Loop %s: %d iterations, %.2fs\n", loopReport.Label, loopReport.Iterations, loopReport.DurationSeconds)
		}
		for _, step := range executionReport.Steps {
			if step.Attempts > 1 {
				fmt.Fprintf(&builder, "Retried step %s: %d attempts, %.2fs\n", step.Name, step.Attempts, step.DurationSeconds)
			}
		}
		for _, aggregate := range executionReport.Aggregates {
			statistics := aggregate.Statistics
			fmt.Fprintf(
				&builder,
				"Aggregated %s across %d samples: mean %.2fs, median %.2fs, min %.2fs, max %.2fs\n",
				aggregate.Name,
				statistics.Count,
				statistics.Mean,
				statistics.Median,
				statistics.Minimum,
				statistics.Maximum,
			)
		}
	}
	return strings.TrimSpace(builder.String())
}

func writeContributions(builder *strings.Builder, heading string, contributions []timeline.Contribution, limit int) {
	if len(contributions) == 0 {
		return
	}
	builder.WriteString(heading + ":\n")
	for index, contribution := range contributions {
		if index >= limit {
			break
		}
		fmt.Fprintf(builder, "- %s: %.2fs\n", contribution.Name, contribution.TotalSeconds)
	}
}

func truncateDigest(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "\n..."
}
