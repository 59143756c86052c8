package cache_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	clicache "github.com/tyemirov/stepprof/cmd/cli/cache"
	"github.com/tyemirov/stepprof/internal/execution"
	"github.com/tyemirov/stepprof/internal/history"
	historycache "github.com/tyemirov/stepprof/internal/history/cache"
)

func runClear(testInstance *testing.T, directory string) (string, error) {
	testInstance.Helper()
	builder := clicache.CommandBuilder{DirectoryProvider: func() string { return directory }}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	var output bytes.Buffer
	command.SetOut(&output)
	command.SetErr(&output)
	command.SetArgs([]string{"clear"})
	command.SetContext(context.Background())
	executionError := command.Execute()
	return output.String(), executionError
}

func TestClearDropsCachedHistories(testInstance *testing.T) {
	directory := filepath.Join(testInstance.TempDir(), "cache")
	arn, parseError := execution.ParseARN("arn:aws:states:us-east-1:123456789012:execution:Pipeline:run")
	require.NoError(testInstance, parseError)

	store, openError := historycache.Open(historycache.StoreOptions{Directory: directory})
	require.NoError(testInstance, openError)
	require.NoError(testInstance, store.Save(history.Execution{ARN: arn, Description: history.Description{Name: "run"}}, time.Hour))
	require.NoError(testInstance, store.Close())

	output, clearError := runClear(testInstance, directory)
	require.NoError(testInstance, clearError)
	require.Contains(testInstance, output, "cleared cache at "+directory)

	reopened, reopenError := historycache.Open(historycache.StoreOptions{Directory: directory})
	require.NoError(testInstance, reopenError)
	defer reopened.Close()
	_, found, loadError := reopened.Load(arn)
	require.NoError(testInstance, loadError)
	require.False(testInstance, found)
}

func TestClearHandlesMissingDirectory(testInstance *testing.T) {
	testCases := []struct {
		name          string
		directory     string
		expectedError error
		expectedText  string
	}{
		{name: "Unconfigured", directory: "  ", expectedError: clicache.ErrDirectoryMissing},
		{name: "Absent", directory: filepath.Join(testInstance.TempDir(), "absent"), expectedText: "nothing to clear"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			output, clearError := runClear(testInstance, testCase.directory)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, clearError, testCase.expectedError)
				return
			}
			require.NoError(testInstance, clearError)
			require.Contains(testInstance, output, testCase.expectedText)
		})
	}
}
