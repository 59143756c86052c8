package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tyemirov/stepprof/internal/execshell"
)

const (
	stsServiceArgumentConstant            = "sts"
	callerIdentitySubcommandConstant      = "get-caller-identity"
	configureSubcommandConstant           = "configure"
	getSubcommandConstant                 = "get"
	regionSettingConstant                 = "region"
	outputFlagConstant                    = "--output"
	jsonOutputConstant                    = "json"
	resolverNotConfiguredMessageConstant  = "execution resolver identity provider not configured"
	executorNotConfiguredMessageConstant  = "identity provider executor not configured"
	identityDecodingErrorTemplateConstant = "caller identity decoding failed: %w"
	emptyIdentityValueTemplateConstant    = "aws cli returned an empty %s"
	accountDescriptionConstant            = "account"
	regionDescriptionConstant             = "region"
)

var (
	// ErrIdentityProviderNotConfigured indicates the resolver was created without an identity provider.
	ErrIdentityProviderNotConfigured = errors.New(resolverNotConfiguredMessageConstant)
	// ErrExecutorNotConfigured indicates the CLI identity provider was created without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// IdentityProvider supplies the default account and region for short execution references.
type IdentityProvider interface {
	Account(executionContext context.Context) (string, error)
	Region(executionContext context.Context) (string, error)
}

// AWSCommandExecutor is the subset of execshell.ShellExecutor used for AWS CLI calls.
type AWSCommandExecutor interface {
	ExecuteAWS(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// CLIIdentityProvider resolves the caller account and configured region through the AWS CLI.
type CLIIdentityProvider struct {
	executor AWSCommandExecutor
}

// NewCLIIdentityProvider constructs a CLIIdentityProvider.
func NewCLIIdentityProvider(executor AWSCommandExecutor) (*CLIIdentityProvider, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &CLIIdentityProvider{executor: executor}, nil
}

type callerIdentityResponse struct {
	Account string `json:"Account"`
}

// Account returns the account of the active credentials.
func (provider *CLIIdentityProvider) Account(executionContext context.Context) (string, error) {
	result, executionError := provider.executor.ExecuteAWS(executionContext, execshell.CommandDetails{
		Arguments: []string{stsServiceArgumentConstant, callerIdentitySubcommandConstant, outputFlagConstant, jsonOutputConstant},
	})
	if executionError != nil {
		return "", executionError
	}
	var response callerIdentityResponse
	if decodingError := json.Unmarshal([]byte(result.StandardOutput), &response); decodingError != nil {
		return "", fmt.Errorf(identityDecodingErrorTemplateConstant, decodingError)
	}
	if len(strings.TrimSpace(response.Account)) == 0 {
		return "", fmt.Errorf(emptyIdentityValueTemplateConstant, accountDescriptionConstant)
	}
	return strings.TrimSpace(response.Account), nil
}

// Region returns the region configured for the active profile.
func (provider *CLIIdentityProvider) Region(executionContext context.Context) (string, error) {
	result, executionError := provider.executor.ExecuteAWS(executionContext, execshell.CommandDetails{
		Arguments: []string{configureSubcommandConstant, getSubcommandConstant, regionSettingConstant},
	})
	if executionError != nil {
		return "", executionError
	}
	region := strings.TrimSpace(result.StandardOutput)
	if len(region) == 0 {
		return "", fmt.Errorf(emptyIdentityValueTemplateConstant, regionDescriptionConstant)
	}
	return region, nil
}

// Resolver turns user-supplied execution references into ARNs.
type Resolver struct {
	identity          IdentityProvider
	configuredAccount string
	configuredRegion  string

	mutex           sync.Mutex
	resolvedAccount string
	resolvedRegion  string
}

// NewResolver constructs a Resolver. Configured account and region take precedence over the identity provider.
func NewResolver(identity IdentityProvider, configuredAccount string, configuredRegion string) (*Resolver, error) {
	if identity == nil {
		return nil, ErrIdentityProviderNotConfigured
	}
	return &Resolver{
		identity:          identity,
		configuredAccount: strings.TrimSpace(configuredAccount),
		configuredRegion:  strings.TrimSpace(configuredRegion),
	}, nil
}

// Resolve accepts a full execution ARN or a <state-machine>:<execution> short form.
func (resolver *Resolver) Resolve(executionContext context.Context, reference string) (ARN, error) {
	trimmed := strings.TrimSpace(reference)
	parts := strings.Split(trimmed, arnSeparatorConstant)
	switch len(parts) {
	case fullArnPartCountConstant:
		return ParseARN(trimmed)
	case shortReferencePartCountConstant:
		if len(parts[0]) == 0 || len(parts[1]) == 0 {
			return ARN{}, malformedIdentifier(reference, invalidReferenceTemplateConstant)
		}
		account, accountError := resolver.account(executionContext)
		if accountError != nil {
			return ARN{}, accountError
		}
		region, regionError := resolver.region(executionContext)
		if regionError != nil {
			return ARN{}, regionError
		}
		return ARN{
			Partition:    defaultPartitionConstant,
			Region:       region,
			Account:      account,
			StateMachine: parts[0],
			Execution:    parts[1],
		}, nil
	default:
		return ARN{}, malformedIdentifier(reference, invalidReferenceTemplateConstant)
	}
}

// ResolveAll resolves every reference, stopping at the first failure.
func (resolver *Resolver) ResolveAll(executionContext context.Context, references []string) ([]ARN, error) {
	resolved := make([]ARN, 0, len(references))
	for _, reference := range references {
		arn, resolveError := resolver.Resolve(executionContext, reference)
		if resolveError != nil {
			return nil, resolveError
		}
		resolved = append(resolved, arn)
	}
	return resolved, nil
}

func (resolver *Resolver) account(executionContext context.Context) (string, error) {
	if len(resolver.configuredAccount) > 0 {
		return resolver.configuredAccount, nil
	}
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()
	if len(resolver.resolvedAccount) > 0 {
		return resolver.resolvedAccount, nil
	}
	account, accountError := resolver.identity.Account(executionContext)
	if accountError != nil {
		return "", accountError
	}
	resolver.resolvedAccount = account
	return account, nil
}

func (resolver *Resolver) region(executionContext context.Context) (string, error) {
	if len(resolver.configuredRegion) > 0 {
		return resolver.configuredRegion, nil
	}
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()
	if len(resolver.resolvedRegion) > 0 {
		return resolver.resolvedRegion, nil
	}
	region, regionError := resolver.identity.Region(executionContext)
	if regionError != nil {
		return "", regionError
	}
	resolver.resolvedRegion = region
	return region, nil
}
