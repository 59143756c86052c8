package profile

import (
	"strings"

	"github.com/tyemirov/stepprof/internal/report"
)

const (
	defaultMinimumContributorSeconds = 120
	defaultContributorLimit          = report.DefaultContributorLimit
	defaultOutputDirectory           = "."
	defaultPort                      = 8888
	defaultFetchConcurrency          = 4
	defaultAPIKeyEnvironment         = "OPENAI_API_KEY"
	defaultModel                     = "gpt-4.1-mini"
	defaultTimeoutSeconds            = 60
)

// CommandConfiguration captures defaults for the profile command.
type CommandConfiguration struct {
	MinimumContributorSeconds float64 `mapstructure:"min_contributor_task_duration"`
	Aggregate                 bool    `mapstructure:"aggregate"`
	Interleave                bool    `mapstructure:"interleave"`
	SeparateRetries           bool    `mapstructure:"separate_retries"`
	CombineConsecutive        bool    `mapstructure:"combine_consecutive"`
	Top                       int     `mapstructure:"top"`
	Format                    string  `mapstructure:"format"`
	OutputDirectory           string  `mapstructure:"out_dir"`
	Port                      int     `mapstructure:"port"`
	FetchConcurrency          int     `mapstructure:"fetch_concurrency"`
}

// DefaultCommandConfiguration provides baseline profile settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		MinimumContributorSeconds: defaultMinimumContributorSeconds,
		Aggregate:                 true,
		Interleave:                true,
		Top:                       defaultContributorLimit,
		Format:                    string(report.FormatTable),
		OutputDirectory:           defaultOutputDirectory,
		Port:                      defaultPort,
		FetchConcurrency:          defaultFetchConcurrency,
	}
}

// Sanitize normalizes configuration values.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration

	if configuration.MinimumContributorSeconds < 0 {
		sanitized.MinimumContributorSeconds = 0
	}

	if configuration.Top <= 0 {
		sanitized.Top = defaultContributorLimit
	}

	format := strings.ToLower(strings.TrimSpace(configuration.Format))
	if format == "" {
		format = string(report.FormatTable)
	}
	sanitized.Format = format

	outputDirectory := strings.TrimSpace(configuration.OutputDirectory)
	if outputDirectory == "" {
		outputDirectory = defaultOutputDirectory
	}
	sanitized.OutputDirectory = outputDirectory

	if configuration.Port <= 0 {
		sanitized.Port = defaultPort
	}

	if configuration.FetchConcurrency <= 0 {
		sanitized.FetchConcurrency = defaultFetchConcurrency
	}

	return sanitized
}

// ExplainConfiguration captures configuration values for narrative generation.
type ExplainConfiguration struct {
	APIKeyEnv      string  `mapstructure:"api_key_env"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_completion_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// DefaultExplainConfiguration provides baseline narrative settings.
func DefaultExplainConfiguration() ExplainConfiguration {
	return ExplainConfiguration{
		APIKeyEnv:      defaultAPIKeyEnvironment,
		Model:          defaultModel,
		TimeoutSeconds: defaultTimeoutSeconds,
	}
}

// Sanitize normalizes configuration values.
func (configuration ExplainConfiguration) Sanitize() ExplainConfiguration {
	sanitized := configuration

	apiKeyEnv := strings.TrimSpace(configuration.APIKeyEnv)
	if apiKeyEnv == "" {
		apiKeyEnv = defaultAPIKeyEnvironment
	}
	sanitized.APIKeyEnv = apiKeyEnv

	sanitized.BaseURL = strings.TrimSpace(configuration.BaseURL)

	model := strings.TrimSpace(configuration.Model)
	if model == "" {
		model = defaultModel
	}
	sanitized.Model = model

	if configuration.MaxTokens < 0 {
		sanitized.MaxTokens = 0
	}

	if configuration.TimeoutSeconds <= 0 {
		sanitized.TimeoutSeconds = defaultTimeoutSeconds
	}

	return sanitized
}
