package flags_test

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tyemirov/stepprof/internal/utils"
	"github.com/tyemirov/stepprof/internal/utils/flags"
)

func TestResolveAWSContextFromInheritedFlags(testInstance *testing.T) {
	rootCommand := &cobra.Command{Use: "root"}
	flags.BindAWSFlags(rootCommand, flags.AWSFlagValues{Region: "us-east-1"})
	childCommand := &cobra.Command{Use: "child", RunE: func(*cobra.Command, []string) error { return nil }}
	rootCommand.AddCommand(childCommand)

	require.NoError(testInstance, rootCommand.PersistentFlags().Set(flags.AccountFlagName, " 123456789012 "))

	awsContext, available := flags.ResolveAWSContext(childCommand)
	require.True(testInstance, available)
	require.Equal(testInstance, utils.AWSContext{Account: "123456789012", Region: "us-east-1"}, awsContext)
}

func TestResolveAWSContextPrefersCommandContext(testInstance *testing.T) {
	command := &cobra.Command{Use: "profile"}
	flags.BindAWSFlags(command, flags.AWSFlagValues{Region: "us-east-1"})
	accessor := utils.NewCommandContextAccessor()
	command.SetContext(accessor.WithAWSContext(context.Background(), utils.AWSContext{Region: "eu-central-1"}))

	awsContext, available := flags.ResolveAWSContext(command)
	require.True(testInstance, available)
	require.Equal(testInstance, "eu-central-1", awsContext.Region)
}

func TestResolveAWSContextWithoutValues(testInstance *testing.T) {
	command := &cobra.Command{Use: "profile"}
	flags.BindAWSFlags(command, flags.AWSFlagValues{})

	_, available := flags.ResolveAWSContext(command)
	require.False(testInstance, available)
}

func TestFlagAccessors(testInstance *testing.T) {
	command := &cobra.Command{Use: "profile"}
	command.Flags().Bool("aggregate", false, "")
	command.Flags().StringSlice("contributors", nil, "")
	require.NoError(testInstance, command.Flags().Set("aggregate", "true"))
	require.NoError(testInstance, command.Flags().Set("contributors", "a,b"))

	aggregate, aggregateChanged, aggregateError := flags.BoolFlag(command, "aggregate")
	require.NoError(testInstance, aggregateError)
	require.True(testInstance, aggregate)
	require.True(testInstance, aggregateChanged)

	contributors, _, contributorsError := flags.StringSliceFlag(command, "contributors")
	require.NoError(testInstance, contributorsError)
	require.Equal(testInstance, []string{"a", "b"}, contributors)

	_, _, missingError := flags.StringFlag(command, "missing")
	require.ErrorIs(testInstance, missingError, flags.ErrFlagNotDefined)

	_, _, mismatchError := flags.BoolFlag(command, "contributors")
	require.Error(testInstance, mismatchError)
}
