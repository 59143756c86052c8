package utils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithAWSContextStoresNormalizedValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()
	enriched := accessor.WithAWSContext(base, AWSContext{Account: " 123456789012 ", Region: " eu-west-1"})

	awsContext, exists := accessor.AWSContext(enriched)
	require.True(t, exists)
	require.Equal(t, "123456789012", awsContext.Account)
	require.Equal(t, "eu-west-1", awsContext.Region)
}

func TestWithAWSContextStoresRegionWithoutAccount(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithAWSContext(context.Background(), AWSContext{Region: "us-east-2"})

	awsContext, exists := accessor.AWSContext(enriched)
	require.True(t, exists)
	require.Equal(t, "", awsContext.Account)
	require.Equal(t, "us-east-2", awsContext.Region)
}

func TestWithAWSContextSkipsEmptyValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithAWSContext(context.Background(), AWSContext{Account: "  "})

	_, exists := accessor.AWSContext(enriched)
	require.False(t, exists)
}

func TestWithConfigurationFilePathRoundTrips(t *testing.T) {
	accessor := NewCommandContextAccessor()
	enriched := accessor.WithConfigurationFilePath(nil, "/etc/stepprof/config.yaml")

	configurationFilePath, exists := accessor.ConfigurationFilePath(enriched)
	require.True(t, exists)
	require.Equal(t, "/etc/stepprof/config.yaml", configurationFilePath)
}

func TestWithLogLevelSkipsBlankValues(t *testing.T) {
	accessor := NewCommandContextAccessor()
	base := context.Background()

	require.Equal(t, base, accessor.WithLogLevel(base, "  "))

	logLevel, exists := accessor.LogLevel(accessor.WithLogLevel(base, " debug "))
	require.True(t, exists)
	require.Equal(t, "debug", logLevel)
}

func TestAccessorsHandleMissingContext(t *testing.T) {
	accessor := NewCommandContextAccessor()

	_, exists := accessor.AWSContext(context.Background())
	require.False(t, exists)
	_, exists = accessor.ConfigurationFilePath(nil)
	require.False(t, exists)
}
