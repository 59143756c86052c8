package history

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/execshell"
	"github.com/tyemirov/stepprof/internal/execution"
)

const (
	stepFunctionsServiceArgumentConstant = "stepfunctions"
	executionHistorySubcommandConstant   = "get-execution-history"
	describeExecutionSubcommandConstant  = "describe-execution"
	executionArnFlagConstant             = "--execution-arn"
	nextTokenFlagConstant                = "--starting-token"
	outputFlagConstant                   = "--output"
	jsonOutputConstant                   = "json"
	executorNotConfiguredMessageConstant = "history fetcher executor not configured"
	pageFetchedMessageConstant           = "execution history page fetched"
	historyFetchedMessageConstant        = "execution history fetched"
	executionFieldNameConstant           = "execution"
	pageFieldNameConstant                = "page"
	eventCountFieldNameConstant          = "events"
	statusFieldNameConstant              = "status"
)

// ErrExecutorNotConfigured indicates the fetcher was constructed without an executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// Description carries the describe-execution fields the profiler reports.
type Description struct {
	Name            string     `json:"name"`
	StateMachineARN string     `json:"stateMachineArn"`
	Status          string     `json:"status"`
	StartDate       time.Time  `json:"startDate"`
	StopDate        *time.Time `json:"stopDate,omitempty"`
}

// Execution is a fully fetched execution history.
type Execution struct {
	ARN         execution.ARN `json:"arn"`
	Description Description   `json:"description"`
	Events      []Event       `json:"events"`
}

// Fetcher retrieves execution histories.
type Fetcher interface {
	Fetch(executionContext context.Context, arn execution.ARN) (Execution, error)
}

// AWSCommandExecutor is the subset of execshell.ShellExecutor used by the fetcher.
type AWSCommandExecutor interface {
	ExecuteAWS(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CLIFetcher pages through get-execution-history and describe-execution using the AWS CLI.
type CLIFetcher struct {
	executor AWSCommandExecutor
	logger   *zap.Logger
}

// NewCLIFetcher constructs a CLIFetcher. A nil logger disables logging.
func NewCLIFetcher(executor AWSCommandExecutor, logger *zap.Logger) (*CLIFetcher, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLIFetcher{executor: executor, logger: logger}, nil
}

// Fetch retrieves every history page in order, then the execution description.
func (fetcher *CLIFetcher) Fetch(executionContext context.Context, arn execution.ARN) (Execution, error) {
	subject := arn.String()
	events := make([]Event, 0)
	nextToken := ""
	for pageIndex := 0; ; pageIndex++ {
		arguments := []string{
			stepFunctionsServiceArgumentConstant,
			executionHistorySubcommandConstant,
			executionArnFlagConstant, subject,
			outputFlagConstant, jsonOutputConstant,
		}
		if len(nextToken) > 0 {
			arguments = append(arguments, nextTokenFlagConstant, nextToken)
		}
		result, executionError := fetcher.executor.ExecuteAWS(executionContext, execshell.CommandDetails{Arguments: arguments})
		if executionError != nil {
			return Execution{}, profilererrors.Wrap(profilererrors.OperationHistoryFetch, subject, profilererrors.ErrHistoryFetchFailed, executionError)
		}
		page, decodeError := DecodePage(subject, []byte(result.StandardOutput))
		if decodeError != nil {
			return Execution{}, decodeError
		}
		events = append(events, page.Events...)
		fetcher.logger.Debug(pageFetchedMessageConstant,
			zap.String(executionFieldNameConstant, subject),
			zap.Int(pageFieldNameConstant, pageIndex),
			zap.Int(eventCountFieldNameConstant, len(page.Events)),
		)
		if len(page.NextToken) == 0 || page.NextToken == nextToken {
			break
		}
		nextToken = page.NextToken
	}

	description, describeError := fetcher.describe(executionContext, subject)
	if describeError != nil {
		return Execution{}, describeError
	}

	fetcher.logger.Info(historyFetchedMessageConstant,
		zap.String(executionFieldNameConstant, subject),
		zap.Int(eventCountFieldNameConstant, len(events)),
		zap.String(statusFieldNameConstant, description.Status),
	)
	return Execution{ARN: arn, Description: description, Events: events}, nil
}

func (fetcher *CLIFetcher) describe(executionContext context.Context, subject string) (Description, error) {
	result, executionError := fetcher.executor.ExecuteAWS(executionContext, execshell.CommandDetails{
		Arguments: []string{
			stepFunctionsServiceArgumentConstant,
			describeExecutionSubcommandConstant,
			executionArnFlagConstant, subject,
			outputFlagConstant, jsonOutputConstant,
		},
	})
	if executionError != nil {
		return Description{}, profilererrors.Wrap(profilererrors.OperationHistoryFetch, subject, profilererrors.ErrHistoryFetchFailed, executionError)
	}
	return DecodeDescription(subject, []byte(result.StandardOutput))
}

type rawDescription struct {
	Name            string          `json:"name"`
	StateMachineARN string          `json:"stateMachineArn"`
	Status          string          `json:"status"`
	StartDate       json.RawMessage `json:"startDate"`
	StopDate        json.RawMessage `json:"stopDate"`
}

// DecodeDescription decodes a describe-execution JSON response.
func DecodeDescription(subject string, payload []byte) (Description, error) {
	var raw rawDescription
	if decodingError := json.Unmarshal(payload, &raw); decodingError != nil {
		return Description{}, profilererrors.Wrap(profilererrors.OperationHistoryDecode, subject, profilererrors.ErrHistoryDecodeFailed, decodingError)
	}
	description := Description{Name: raw.Name, StateMachineARN: raw.StateMachineARN, Status: raw.Status}
	if len(raw.StartDate) > 0 {
		startDate, startError := decodeTimestamp(raw.StartDate)
		if startError != nil {
			return Description{}, profilererrors.Wrap(profilererrors.OperationHistoryDecode, subject, profilererrors.ErrHistoryDecodeFailed, startError)
		}
		description.StartDate = startDate
	}
	if len(raw.StopDate) > 0 && string(raw.StopDate) != "null" {
		stopDate, stopError := decodeTimestamp(raw.StopDate)
		if stopError != nil {
			return Description{}, profilererrors.Wrap(profilererrors.OperationHistoryDecode, subject, profilererrors.ErrHistoryDecodeFailed, stopError)
		}
		description.StopDate = &stopDate
	}
	return description, nil
}
