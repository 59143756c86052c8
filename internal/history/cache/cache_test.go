package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tyemirov/stepprof/internal/execution"
	"github.com/tyemirov/stepprof/internal/history"
	"github.com/tyemirov/stepprof/internal/history/cache"
)

const (
	testExecutionArnConstant = "arn:aws:states:us-east-1:123456789012:execution:Pipeline:run"
)

type countingFetcher struct {
	result  history.Execution
	failure error
	calls   int
}

func (fetcher *countingFetcher) Fetch(executionContext context.Context, arn execution.ARN) (history.Execution, error) {
	fetcher.calls++
	if fetcher.failure != nil {
		return history.Execution{}, fetcher.failure
	}
	return fetcher.result, nil
}

type lookupRecorder struct {
	hits   int
	misses int
}

func (recorder *lookupRecorder) ObserveFetch(bool, time.Duration) {}
func (recorder *lookupRecorder) ObserveStep(string, float64)       {}
func (recorder *lookupRecorder) ObserveLoops(int)                  {}
func (recorder *lookupRecorder) ObserveProfile(time.Duration)      {}
func (recorder *lookupRecorder) ObserveCacheLookup(hit bool) {
	if hit {
		recorder.hits++
		return
	}
	recorder.misses++
}

func openStore(testInstance *testing.T) *cache.Store {
	testInstance.Helper()
	store, openError := cache.Open(cache.StoreOptions{InMemory: true})
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleExecution(testInstance *testing.T) history.Execution {
	testInstance.Helper()
	arn, parseError := execution.ParseARN(testExecutionArnConstant)
	require.NoError(testInstance, parseError)
	startedAt := time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)
	return history.Execution{
		ARN:         arn,
		Description: history.Description{Name: "run", Status: "SUCCEEDED", StartDate: startedAt},
		Events: []history.Event{
			{ID: 1, Type: "TaskStateEntered", Timestamp: startedAt, StateName: "Fetch"},
			{ID: 2, Type: "TaskStateExited", Timestamp: startedAt.Add(time.Minute), StateName: "Fetch"},
		},
	}
}

func TestCachingFetcherServesRepeatedFetchesFromStore(testInstance *testing.T) {
	upstream := &countingFetcher{result: sampleExecution(testInstance)}
	recorder := &lookupRecorder{}
	fetcher, creationError := cache.NewCachingFetcher(openStore(testInstance), upstream, 0, zap.NewNop(), recorder)
	require.NoError(testInstance, creationError)

	first, firstError := fetcher.Fetch(context.Background(), upstream.result.ARN)
	require.NoError(testInstance, firstError)
	second, secondError := fetcher.Fetch(context.Background(), upstream.result.ARN)
	require.NoError(testInstance, secondError)

	require.Equal(testInstance, 1, upstream.calls)
	require.Equal(testInstance, first.ARN, second.ARN)
	require.Equal(testInstance, first.Events, second.Events)
	require.Equal(testInstance, 1, recorder.hits)
	require.Equal(testInstance, 1, recorder.misses)
}

func TestCachingFetcherDoesNotCacheFailures(testInstance *testing.T) {
	upstreamFailure := errors.New("throttled")
	upstream := &countingFetcher{failure: upstreamFailure}
	fetcher, creationError := cache.NewCachingFetcher(openStore(testInstance), upstream, time.Hour, nil, nil)
	require.NoError(testInstance, creationError)

	arn := sampleExecution(testInstance).ARN
	_, firstError := fetcher.Fetch(context.Background(), arn)
	require.ErrorIs(testInstance, firstError, upstreamFailure)
	_, secondError := fetcher.Fetch(context.Background(), arn)
	require.ErrorIs(testInstance, secondError, upstreamFailure)
	require.Equal(testInstance, 2, upstream.calls)
}

func TestStoreClear(testInstance *testing.T) {
	store := openStore(testInstance)
	fetched := sampleExecution(testInstance)
	require.NoError(testInstance, store.Save(fetched, time.Hour))

	_, found, loadError := store.Load(fetched.ARN)
	require.NoError(testInstance, loadError)
	require.True(testInstance, found)

	require.NoError(testInstance, store.Clear())

	_, found, loadError = store.Load(fetched.ARN)
	require.NoError(testInstance, loadError)
	require.False(testInstance, found)
}

func TestNewCachingFetcherValidation(testInstance *testing.T) {
	_, storeError := cache.NewCachingFetcher(nil, &countingFetcher{}, 0, nil, nil)
	require.ErrorIs(testInstance, storeError, cache.ErrStoreNotConfigured)

	_, fetcherError := cache.NewCachingFetcher(openStore(testInstance), nil, 0, nil, nil)
	require.ErrorIs(testInstance, fetcherError, cache.ErrFetcherNotConfigured)
}
