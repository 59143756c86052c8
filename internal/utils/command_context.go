package utils

import (
	"context"
	"strings"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	awsContextKeyConstant                   = commandContextKey("awsContext")
	logLevelContextKeyConstant              = commandContextKey("logLevel")
)

type commandContextKey string

// AWSContext describes the account and region used to expand short execution references.
type AWSContext struct {
	Account string
	Region  string
}

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, configurationFilePathContextKeyConstant, configurationFilePath)
}

// WithAWSContext attaches account and region details to the provided context when values are present.
func (accessor CommandContextAccessor) WithAWSContext(parentContext context.Context, awsContext AWSContext) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	normalizedAccount := strings.TrimSpace(awsContext.Account)
	normalizedRegion := strings.TrimSpace(awsContext.Region)
	if len(normalizedAccount) == 0 && len(normalizedRegion) == 0 {
		return parentContext
	}
	normalized := AWSContext{Account: normalizedAccount, Region: normalizedRegion}
	return context.WithValue(parentContext, awsContextKeyConstant, normalized)
}

// WithLogLevel attaches the effective log level to the provided context.
func (accessor CommandContextAccessor) WithLogLevel(parentContext context.Context, logLevel string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	trimmedLogLevel := strings.TrimSpace(logLevel)
	if len(trimmedLogLevel) == 0 {
		return parentContext
	}
	return context.WithValue(parentContext, logLevelContextKeyConstant, trimmedLogLevel)
}

// ConfigurationFilePath extracts the configuration file path from the provided context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, configurationFilePathAvailable := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	if !configurationFilePathAvailable {
		return "", false
	}
	return configurationFilePath, true
}

// AWSContext extracts account and region details from the provided execution context.
func (accessor CommandContextAccessor) AWSContext(executionContext context.Context) (AWSContext, bool) {
	if executionContext == nil {
		return AWSContext{}, false
	}
	value, valueAvailable := executionContext.Value(awsContextKeyConstant).(AWSContext)
	if !valueAvailable {
		return AWSContext{}, false
	}
	return value, true
}

// LogLevel extracts the effective log level from the provided context.
func (accessor CommandContextAccessor) LogLevel(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	value, valueAvailable := executionContext.Value(logLevelContextKeyConstant).(string)
	if !valueAvailable {
		return "", false
	}
	return value, true
}
