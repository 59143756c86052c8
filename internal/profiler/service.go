package profiler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tyemirov/stepprof/internal/execution"
	"github.com/tyemirov/stepprof/internal/history"
	"github.com/tyemirov/stepprof/internal/metrics"
	"github.com/tyemirov/stepprof/internal/timeline"
)

const (
	// DefaultMinimumContributorDuration drops contributor steps shorter than two minutes.
	DefaultMinimumContributorDuration = 120 * time.Second
	// DefaultFetchConcurrency bounds concurrent contributor fetches.
	DefaultFetchConcurrency = 4

	parentRoleConstant                    = "parent"
	contributorRoleConstant               = "contributor"
	resolverNotConfiguredMessageConstant  = "profiler resolver not configured"
	fetcherNotConfiguredMessageConstant   = "profiler fetcher not configured"
	profilingParentMessageConstant        = "profiling execution"
	profilingContributorMessageConstant   = "profiling contributor"
	intervalsReconstructedMessageConstant = "intervals reconstructed"
	contributorsAggregatedMessageConstant = "contributors aggregated"
	profileCompletedMessageConstant       = "profile completed"
	executionFieldNameConstant            = "execution"
	intervalCountFieldNameConstant        = "intervals"
	loopCountFieldNameConstant            = "loops"
	contributorCountFieldNameConstant     = "contributors"
	aggregateCountFieldNameConstant       = "aggregates"
	durationFieldNameConstant             = "duration"
)

var (
	// ErrResolverNotConfigured indicates the service was built without a resolver.
	ErrResolverNotConfigured = errors.New(resolverNotConfiguredMessageConstant)
	// ErrFetcherNotConfigured indicates the service was built without a fetcher.
	ErrFetcherNotConfigured = errors.New(fetcherNotConfiguredMessageConstant)
)

// ReferenceResolver turns user-supplied references into execution ARNs.
type ReferenceResolver interface {
	Resolve(executionContext context.Context, reference string) (execution.ARN, error)
}

// Request describes one profiling run.
type Request struct {
	Execution                  string
	Contributors               []string
	SeparateRetries            bool
	CombineConsecutive         bool
	Aggregate                  bool
	Interleave                 bool
	MinimumContributorDuration time.Duration
}

// Result carries the executions to render.
type Result struct {
	// Parent is the profiled execution, with contributor spans merged in when interleaving.
	Parent timeline.Execution
	// Executions lists every execution to render, parent first.
	Executions []timeline.Execution
	// Aggregates holds the cross-contributor rollups when aggregation was requested.
	Aggregates []timeline.AggregateInterval
	// Descriptions maps fetched executions to their provider description.
	Descriptions map[timeline.WorkflowID]history.Description
}

// Dependencies wires the collaborators of Service.
type Dependencies struct {
	Resolver         ReferenceResolver
	Fetcher          history.Fetcher
	Logger           *zap.Logger
	Recorder         metrics.Recorder
	FetchConcurrency int
}

// Service runs the fetch, reconstruct, detect, aggregate pipeline.
type Service struct {
	resolver         ReferenceResolver
	fetcher          history.Fetcher
	logger           *zap.Logger
	recorder         metrics.Recorder
	fetchConcurrency int
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies Dependencies) (*Service, error) {
	if dependencies.Resolver == nil {
		return nil, ErrResolverNotConfigured
	}
	if dependencies.Fetcher == nil {
		return nil, ErrFetcherNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := dependencies.Recorder
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	concurrency := dependencies.FetchConcurrency
	if concurrency <= 0 {
		concurrency = DefaultFetchConcurrency
	}
	return &Service{
		resolver:         dependencies.Resolver,
		fetcher:          dependencies.Fetcher,
		logger:           logger,
		recorder:         recorder,
		fetchConcurrency: concurrency,
	}, nil
}

// Profile executes the request.
func (service *Service) Profile(executionContext context.Context, request Request) (Result, error) {
	profileStart := time.Now()
	reconstructOptions := timeline.ReconstructOptions{
		SeparateRetries:    request.SeparateRetries,
		CombineConsecutive: request.CombineConsecutive,
	}

	parentARN, resolveError := service.resolver.Resolve(executionContext, request.Execution)
	if resolveError != nil {
		return Result{}, resolveError
	}
	service.logger.Info(profilingParentMessageConstant, zap.String(executionFieldNameConstant, parentARN.String()))

	parentHistory, fetchError := service.fetch(executionContext, parentARN)
	if fetchError != nil {
		return Result{}, fetchError
	}
	parent := service.buildExecution(parentHistory, reconstructOptions, parentRoleConstant)

	descriptions := map[timeline.WorkflowID]history.Description{
		parent.ID: parentHistory.Description,
	}

	contributorReferences, expandError := execution.ExpandReferences(request.Contributors)
	if expandError != nil {
		return Result{}, expandError
	}
	contributorHistories, contributorsError := service.fetchContributors(executionContext, contributorReferences)
	if contributorsError != nil {
		return Result{}, contributorsError
	}

	minimumDuration := request.MinimumContributorDuration
	if minimumDuration < 0 {
		minimumDuration = 0
	}
	contributors := make([]timeline.Execution, 0, len(contributorHistories))
	for _, contributorHistory := range contributorHistories {
		contributor := service.buildExecution(contributorHistory, reconstructOptions, contributorRoleConstant)
		descriptions[contributor.ID] = contributorHistory.Description
		if request.Aggregate {
			coalesced, coalesceError := timeline.CoalesceExecution(contributor)
			if coalesceError != nil {
				return Result{}, coalesceError
			}
			contributor = coalesced
		}
		contributors = append(contributors, timeline.FilterShortExecution(contributor, minimumDuration))
	}

	result := Result{Descriptions: descriptions}
	executions := []timeline.Execution{parent}
	if request.Aggregate && len(contributors) > 0 {
		result.Aggregates = timeline.AggregateContributors(contributors)
		executions = append(executions, timeline.AggregateExecution(result.Aggregates))
		service.logger.Info(contributorsAggregatedMessageConstant,
			zap.Int(contributorCountFieldNameConstant, len(contributors)),
			zap.Int(aggregateCountFieldNameConstant, len(result.Aggregates)),
		)
	} else {
		executions = append(executions, contributors...)
	}

	if request.Interleave && len(executions) > 1 {
		parent = timeline.Interleave(parent, executions[1:])
		executions = []timeline.Execution{parent}
	}

	result.Parent = executions[0]
	result.Executions = executions

	profileDuration := time.Since(profileStart)
	service.recorder.ObserveProfile(profileDuration)
	service.logger.Info(profileCompletedMessageConstant,
		zap.String(executionFieldNameConstant, parentARN.String()),
		zap.Int(contributorCountFieldNameConstant, len(contributors)),
		zap.Duration(durationFieldNameConstant, profileDuration),
	)
	return result, nil
}

func (service *Service) fetch(executionContext context.Context, arn execution.ARN) (history.Execution, error) {
	fetchStart := time.Now()
	fetched, fetchError := service.fetcher.Fetch(executionContext, arn)
	service.recorder.ObserveFetch(fetchError == nil, time.Since(fetchStart))
	return fetched, fetchError
}

// fetchContributors resolves references in order, fetches concurrently and returns histories in reference order.
func (service *Service) fetchContributors(executionContext context.Context, references []string) ([]history.Execution, error) {
	arns := make([]execution.ARN, 0, len(references))
	for _, reference := range references {
		arn, resolveError := service.resolver.Resolve(executionContext, reference)
		if resolveError != nil {
			return nil, resolveError
		}
		arns = append(arns, arn)
	}

	histories := make([]history.Execution, len(arns))
	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(service.fetchConcurrency)
	for index := range arns {
		group.Go(func() error {
			service.logger.Info(profilingContributorMessageConstant, zap.String(executionFieldNameConstant, arns[index].String()))
			fetched, fetchError := service.fetch(groupContext, arns[index])
			if fetchError != nil {
				return fetchError
			}
			histories[index] = fetched
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return histories, nil
}

func (service *Service) buildExecution(fetched history.Execution, options timeline.ReconstructOptions, role string) timeline.Execution {
	workflowID := fetched.ARN.WorkflowID()
	intervals := timeline.Reconstruct(workflowID, history.Records(fetched.Events), options)
	loops := timeline.DetectLoops(intervals)
	for _, interval := range intervals {
		service.recorder.ObserveStep(role, interval.TotalSeconds())
	}
	service.recorder.ObserveLoops(len(loops))
	service.logger.Debug(intervalsReconstructedMessageConstant,
		zap.String(executionFieldNameConstant, workflowID.String()),
		zap.Int(intervalCountFieldNameConstant, len(intervals)),
		zap.Int(loopCountFieldNameConstant, len(loops)),
	)
	return timeline.NewExecution(workflowID, intervals).WithLoops(loops)
}
