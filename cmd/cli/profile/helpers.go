package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/stepprof/internal/profiler"
	"github.com/tyemirov/stepprof/internal/report"
	flagutils "github.com/tyemirov/stepprof/internal/utils/flags"
)

const (
	contributorsFlagName              = "contributors"
	contributorsFlagUsage             = "Contributor execution reference or file://path listing references (repeatable)"
	minimumContributorFlagName        = "min-contributor-task-duration"
	minimumContributorFlagUsage       = "Drop contributor steps shorter than this many seconds"
	noAggregateFlagName               = "no-aggregate"
	noAggregateFlagUsage              = "Disable cross-contributor aggregation"
	noInterleaveFlagName              = "no-interleave"
	noInterleaveFlagUsage             = "Render contributors separately instead of merging their spans into the parent"
	separateRetriesFlagName           = "separate-retries"
	separateRetriesFlagUsage          = "Keep each retry attempt as its own span"
	combineConsecutiveFlagName        = "combine-consecutive"
	combineConsecutiveFlagUsage       = "Merge back-to-back spans that share a step name"
	topFlagName                       = "top"
	topFlagUsage                      = "Number of largest contributors to report"
	noCacheFlagName                   = "no-cache"
	noCacheFlagUsage                  = "Bypass the local history cache"
	executionArgumentMissingConstant  = "an execution ARN, URL, or name is required"
	minimumContributorNegativeMessage = "min-contributor-task-duration cannot be negative"
	topNegativeMessage                = "top cannot be negative"
	runtimeFactoryMissingMessage      = "profile runtime factory not configured"
	runtimeCloseFailedMessage         = "profile runtime close failed"
	profileDocumentBuiltMessage       = "profile document built"
	executionCountFieldName           = "executions"
	runIdentifierFieldName            = "run_id"
)

var (
	// ErrRuntimeFactoryMissing indicates the command builder was not given a runtime factory.
	ErrRuntimeFactoryMissing    = errors.New(runtimeFactoryMissingMessage)
	errExecutionArgumentMissing = errors.New(executionArgumentMissingConstant)
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// ProfileService runs one profiling request.
type ProfileService interface {
	Profile(executionContext context.Context, request profiler.Request) (profiler.Result, error)
}

// RuntimeOptions selects how histories are fetched for one invocation.
type RuntimeOptions struct {
	UseCache         bool
	FetchConcurrency int
}

// Runtime bundles the collaborators one command invocation needs.
type Runtime struct {
	Service  ProfileService
	Gatherer prometheus.Gatherer
	Close    func() error
}

// RuntimeFactory constructs runtimes for the command being executed.
type RuntimeFactory func(command *cobra.Command, options RuntimeOptions) (Runtime, error)

type profileInvocation struct {
	request  profiler.Request
	top      int
	useCache bool
}

func bindFetchFlags(command *cobra.Command) {
	command.Flags().StringSlice(contributorsFlagName, nil, contributorsFlagUsage)
	command.Flags().Float64(minimumContributorFlagName, defaultMinimumContributorSeconds, minimumContributorFlagUsage)
	command.Flags().Bool(noAggregateFlagName, false, noAggregateFlagUsage)
	command.Flags().Bool(noInterleaveFlagName, false, noInterleaveFlagUsage)
	command.Flags().Bool(separateRetriesFlagName, false, separateRetriesFlagUsage)
	command.Flags().Bool(combineConsecutiveFlagName, false, combineConsecutiveFlagUsage)
	command.Flags().Int(topFlagName, defaultContributorLimit, topFlagUsage)
	command.Flags().Bool(noCacheFlagName, false, noCacheFlagUsage)
}

func resolveInvocation(command *cobra.Command, arguments []string, configuration CommandConfiguration) (profileInvocation, error) {
	if len(arguments) == 0 || len(strings.TrimSpace(arguments[0])) == 0 {
		return profileInvocation{}, errExecutionArgumentMissing
	}

	invocation := profileInvocation{
		request: profiler.Request{
			Execution:                  strings.TrimSpace(arguments[0]),
			Aggregate:                  configuration.Aggregate,
			Interleave:                 configuration.Interleave,
			SeparateRetries:            configuration.SeparateRetries,
			CombineConsecutive:         configuration.CombineConsecutive,
			MinimumContributorDuration: secondsToDuration(configuration.MinimumContributorSeconds),
		},
		top:      configuration.Top,
		useCache: true,
	}

	if contributors, changed, contributorsError := flagutils.StringSliceFlag(command, contributorsFlagName); contributorsError == nil && changed {
		invocation.request.Contributors = contributors
	}

	if minimumSeconds, flagError := command.Flags().GetFloat64(minimumContributorFlagName); flagError == nil && command.Flags().Changed(minimumContributorFlagName) {
		if minimumSeconds < 0 {
			return profileInvocation{}, errors.New(minimumContributorNegativeMessage)
		}
		invocation.request.MinimumContributorDuration = secondsToDuration(minimumSeconds)
	}

	if disabled, changed, flagError := flagutils.BoolFlag(command, noAggregateFlagName); flagError == nil && changed {
		invocation.request.Aggregate = !disabled
	}
	if disabled, changed, flagError := flagutils.BoolFlag(command, noInterleaveFlagName); flagError == nil && changed {
		invocation.request.Interleave = !disabled
	}
	if enabled, changed, flagError := flagutils.BoolFlag(command, separateRetriesFlagName); flagError == nil && changed {
		invocation.request.SeparateRetries = enabled
	}
	if enabled, changed, flagError := flagutils.BoolFlag(command, combineConsecutiveFlagName); flagError == nil && changed {
		invocation.request.CombineConsecutive = enabled
	}
	if disabled, changed, flagError := flagutils.BoolFlag(command, noCacheFlagName); flagError == nil && changed {
		invocation.useCache = !disabled
	}

	if top, flagError := command.Flags().GetInt(topFlagName); flagError == nil && command.Flags().Changed(topFlagName) {
		if top < 0 {
			return profileInvocation{}, errors.New(topNegativeMessage)
		}
		invocation.top = top
	}

	return invocation, nil
}

// buildDocument runs the profiler and summarizes the result.
func buildDocument(command *cobra.Command, factory RuntimeFactory, invocation profileInvocation, fetchConcurrency int, logger *zap.Logger) (report.Document, Runtime, error) {
	if factory == nil {
		return report.Document{}, Runtime{}, ErrRuntimeFactoryMissing
	}

	runtime, runtimeError := factory(command, RuntimeOptions{UseCache: invocation.useCache, FetchConcurrency: fetchConcurrency})
	if runtimeError != nil {
		return report.Document{}, Runtime{}, runtimeError
	}

	result, profileError := runtime.Service.Profile(command.Context(), invocation.request)
	if profileError != nil {
		closeRuntime(runtime, logger)
		return report.Document{}, Runtime{}, profileError
	}

	limit := invocation.top
	if limit == 0 {
		limit = -1
	}
	document, documentError := report.NewDocument(result.Executions, report.DocumentOptions{
		ContributorLimit: limit,
		Descriptions:     result.Descriptions,
	})
	if documentError != nil {
		closeRuntime(runtime, logger)
		return report.Document{}, Runtime{}, documentError
	}

	logger.Debug(
		profileDocumentBuiltMessage,
		zap.String(runIdentifierFieldName, document.RunID),
		zap.Int(executionCountFieldName, len(document.Executions)),
	)
	return document, runtime, nil
}

func closeRuntime(runtime Runtime, logger *zap.Logger) {
	if runtime.Close == nil {
		return
	}
	if closeError := runtime.Close(); closeError != nil {
		logger.Warn(runtimeCloseFailedMessage, zap.Error(closeError))
	}
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func lookupEnvironmentValue(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	return strings.TrimSpace(value), ok
}

func loopbackAddress(port int) string {
	return fmt.Sprintf("127.0.0.1:%d", port)
}
