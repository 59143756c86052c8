package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tyemirov/stepprof/internal/narrative"
	flagutils "github.com/tyemirov/stepprof/internal/utils/flags"
	"github.com/tyemirov/utils/llm"
)

const (
	explainCommandUseName          = "explain <execution>"
	explainCommandShortDescription = "Summarize a profile with an LLM"
	explainCommandLongDescription  = "explain profiles the execution, then asks a chat model to describe where the time went and what to optimize."
	maxTokensFlagName              = "max-tokens"
	maxTokensFlagUsage             = "Override the maximum completion tokens"
	temperatureFlagName            = "temperature"
	temperatureFlagUsage           = "Override the sampling temperature (0-2)"
	modelFlagName                  = "model"
	modelFlagUsage                 = "Override the model identifier"
	baseURLFlagName                = "base-url"
	baseURLFlagUsage               = "Override the LLM base URL"
	apiKeyEnvFlagName              = "api-key-env"
	apiKeyEnvFlagUsage             = "Environment variable providing the LLM API key"
	timeoutFlagName                = "timeout-seconds"
	timeoutFlagUsage               = "Override the LLM request timeout in seconds"
	apiKeyMissingTemplate          = "environment variable %s must be set with an API key"
	modelMissingMessage            = "model identifier must be provided via configuration or --model"
	timeoutInvalidMessage          = "timeout-seconds must be positive"
	maxTokensInvalidMessage        = "max-tokens must be zero or positive"
	temperatureInvalidMessage      = "temperature cannot be negative"
)

// ClientFactory builds chat clients from configuration.
type ClientFactory func(config llm.Config) (llm.ChatClient, error)

// ExplainCommandBuilder assembles the explain command.
type ExplainCommandBuilder struct {
	LoggerProvider               LoggerProvider
	ConfigurationProvider        func() CommandConfiguration
	ExplainConfigurationProvider func() ExplainConfiguration
	RuntimeFactory               RuntimeFactory
	ClientFactory                ClientFactory
}

// Build constructs the explain command.
func (builder *ExplainCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   explainCommandUseName,
		Short: explainCommandShortDescription,
		Long:  explainCommandLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	bindFetchFlags(command)
	command.Flags().Int(maxTokensFlagName, 0, maxTokensFlagUsage)
	command.Flags().Float64(temperatureFlagName, 0, temperatureFlagUsage)
	command.Flags().String(modelFlagName, "", modelFlagUsage)
	command.Flags().String(baseURLFlagName, "", baseURLFlagUsage)
	command.Flags().String(apiKeyEnvFlagName, "", apiKeyEnvFlagUsage)
	command.Flags().Int(timeoutFlagName, 0, timeoutFlagUsage)

	return command, nil
}

func (builder *ExplainCommandBuilder) run(command *cobra.Command, arguments []string) error {
	profileConfiguration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		profileConfiguration = builder.ConfigurationProvider().Sanitize()
	}
	configuration := DefaultExplainConfiguration()
	if builder.ExplainConfigurationProvider != nil {
		configuration = builder.ExplainConfigurationProvider().Sanitize()
	}
	logger := resolveLogger(builder.LoggerProvider)

	invocation, invocationError := resolveInvocation(command, arguments, profileConfiguration)
	if invocationError != nil {
		return invocationError
	}

	maxTokens := configuration.MaxTokens
	if flagValue, flagError := command.Flags().GetInt(maxTokensFlagName); flagError == nil && command.Flags().Changed(maxTokensFlagName) {
		if flagValue < 0 {
			return errors.New(maxTokensInvalidMessage)
		}
		maxTokens = flagValue
	}

	temperature, temperatureError := resolveTemperature(command, configuration)
	if temperatureError != nil {
		return temperatureError
	}

	modelIdentifier := configuration.Model
	if flagValue, changed, flagError := flagutils.StringFlag(command, modelFlagName); flagError == nil && changed {
		modelIdentifier = strings.TrimSpace(flagValue)
	}
	if modelIdentifier == "" {
		return errors.New(modelMissingMessage)
	}

	baseURL := configuration.BaseURL
	if flagValue, changed, flagError := flagutils.StringFlag(command, baseURLFlagName); flagError == nil && changed {
		baseURL = strings.TrimSpace(flagValue)
	}

	apiKeyEnv := configuration.APIKeyEnv
	if flagValue, changed, flagError := flagutils.StringFlag(command, apiKeyEnvFlagName); flagError == nil && changed {
		apiKeyEnv = strings.TrimSpace(flagValue)
	}
	if apiKeyEnv == "" {
		apiKeyEnv = defaultAPIKeyEnvironment
	}
	apiKey, apiKeyPresent := lookupEnvironmentValue(apiKeyEnv)
	if !apiKeyPresent || apiKey == "" {
		return fmt.Errorf(apiKeyMissingTemplate, apiKeyEnv)
	}

	timeout := time.Duration(configuration.TimeoutSeconds) * time.Second
	if flagValue, flagError := command.Flags().GetInt(timeoutFlagName); flagError == nil && command.Flags().Changed(timeoutFlagName) {
		if flagValue <= 0 {
			return errors.New(timeoutInvalidMessage)
		}
		timeout = time.Duration(flagValue) * time.Second
	}

	clientFactory := builder.ClientFactory
	if clientFactory == nil {
		clientFactory = func(config llm.Config) (llm.ChatClient, error) {
			return llm.NewFactory(config)
		}
	}

	client, clientError := clientFactory(llm.Config{
		BaseURL:             baseURL,
		APIKey:              apiKey,
		Model:               modelIdentifier,
		MaxCompletionTokens: maxTokens,
		Temperature:         configuration.Temperature,
		RequestTimeout:      timeout,
	})
	if clientError != nil {
		return clientError
	}

	document, runtime, documentError := buildDocument(command, builder.RuntimeFactory, invocation, profileConfiguration.FetchConcurrency, logger)
	if documentError != nil {
		return documentError
	}
	defer closeRuntime(runtime, logger)

	generator := narrative.Generator{Client: client, Logger: logger}
	result, generateError := generator.Generate(command.Context(), document, narrative.Options{
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if generateError != nil {
		return generateError
	}

	fmt.Fprintln(command.OutOrStdout(), strings.TrimSpace(result.Narrative))
	return nil
}

func resolveTemperature(command *cobra.Command, configuration ExplainConfiguration) (*float64, error) {
	if flagValue, flagError := command.Flags().GetFloat64(temperatureFlagName); flagError == nil && command.Flags().Changed(temperatureFlagName) {
		if flagValue < 0 {
			return nil, errors.New(temperatureInvalidMessage)
		}
		return &flagValue, nil
	}
	if configuration.Temperature != 0 {
		value := configuration.Temperature
		if value < 0 {
			return nil, errors.New(temperatureInvalidMessage)
		}
		return &value, nil
	}
	return nil, nil
}
