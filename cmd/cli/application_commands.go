package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cachecmd "github.com/tyemirov/stepprof/cmd/cli/cache"
	profilecmd "github.com/tyemirov/stepprof/cmd/cli/profile"
	"github.com/tyemirov/stepprof/internal/execshell"
	"github.com/tyemirov/stepprof/internal/execution"
	"github.com/tyemirov/stepprof/internal/history"
	historycache "github.com/tyemirov/stepprof/internal/history/cache"
	"github.com/tyemirov/stepprof/internal/metrics"
	"github.com/tyemirov/stepprof/internal/profiler"
	flagutils "github.com/tyemirov/stepprof/internal/utils/flags"
)

const (
	versionCommandUseNameConstant           = "version"
	versionCommandShortDescriptionConstant  = "Print the application version"
	xdgCacheHomeEnvironmentVariableConstant = "XDG_CACHE_HOME"
	cacheDirectoryNameConstant              = "stepprof"
	cacheUnavailableMessageConstant         = "history cache unavailable; fetching without cache"
	cacheDirectoryFieldConstant             = "cache_directory"
)

func (application *Application) registerCommands(cobraCommand *cobra.Command) {
	loggerProvider := func() *zap.Logger {
		return application.logger
	}

	profileBuilder := profilecmd.CommandBuilder{
		LoggerProvider:        loggerProvider,
		ConfigurationProvider: application.profileConfiguration,
		RuntimeFactory:        application.buildProfileRuntime,
	}
	if profileCommand, profileBuildError := profileBuilder.Build(); profileBuildError == nil {
		cobraCommand.AddCommand(profileCommand)
	}

	explainBuilder := profilecmd.ExplainCommandBuilder{
		LoggerProvider:               loggerProvider,
		ConfigurationProvider:        application.profileConfiguration,
		ExplainConfigurationProvider: application.explainConfiguration,
		RuntimeFactory:               application.buildProfileRuntime,
	}
	if explainCommand, explainBuildError := explainBuilder.Build(); explainBuildError == nil {
		cobraCommand.AddCommand(explainCommand)
	}

	cacheBuilder := cachecmd.CommandBuilder{
		LoggerProvider:    loggerProvider,
		DirectoryProvider: application.cacheDirectory,
	}
	if cacheCommand, cacheBuildError := cacheBuilder.Build(); cacheBuildError == nil {
		cobraCommand.AddCommand(cacheCommand)
	}

	cobraCommand.AddCommand(&cobra.Command{
		Use:   versionCommandUseNameConstant,
		Short: versionCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	})
}

func (application *Application) profileConfiguration() profilecmd.CommandConfiguration {
	configuration := profilecmd.DefaultCommandConfiguration()
	application.decodeOperationConfiguration(profileOperationNameConstant, &configuration)
	return configuration
}

func (application *Application) explainConfiguration() profilecmd.ExplainConfiguration {
	configuration := profilecmd.DefaultExplainConfiguration()
	application.decodeOperationConfiguration(explainOperationNameConstant, &configuration)
	return configuration
}

func (application *Application) cacheDirectory() string {
	if configured := strings.TrimSpace(application.configuration.Cache.Directory); len(configured) > 0 {
		return configured
	}
	if xdgCacheHome := strings.TrimSpace(os.Getenv(xdgCacheHomeEnvironmentVariableConstant)); len(xdgCacheHome) > 0 {
		return filepath.Join(xdgCacheHome, cacheDirectoryNameConstant)
	}
	userCacheDirectory, userCacheError := os.UserCacheDir()
	if userCacheError != nil || len(userCacheDirectory) == 0 {
		return ""
	}
	return filepath.Join(userCacheDirectory, cacheDirectoryNameConstant)
}

func (application *Application) cacheExpiry() time.Duration {
	expiryHours := application.configuration.Cache.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = defaultCacheExpiryHoursConstant
	}
	return time.Duration(expiryHours) * time.Hour
}

// buildProfileRuntime wires the AWS CLI executor, history fetchers, cache, and metrics into a profiler service.
func (application *Application) buildProfileRuntime(command *cobra.Command, options profilecmd.RuntimeOptions) (profilecmd.Runtime, error) {
	awsContext, _ := flagutils.ResolveAWSContext(command)

	executor, executorError := execshell.NewShellExecutor(application.logger, execshell.OSCommandRunner{}, application.humanReadableLoggingEnabled())
	if executorError != nil {
		return profilecmd.Runtime{}, executorError
	}

	identityProvider, identityError := execution.NewCLIIdentityProvider(executor)
	if identityError != nil {
		return profilecmd.Runtime{}, identityError
	}
	resolver, resolverError := execution.NewResolver(identityProvider, awsContext.Account, awsContext.Region)
	if resolverError != nil {
		return profilecmd.Runtime{}, resolverError
	}

	cliFetcher, fetcherError := history.NewCLIFetcher(executor, application.logger)
	if fetcherError != nil {
		return profilecmd.Runtime{}, fetcherError
	}

	registry := prometheus.NewRegistry()
	recorder, recorderError := metrics.NewPrometheusRecorder(registry)
	if recorderError != nil {
		return profilecmd.Runtime{}, recorderError
	}

	var fetcher history.Fetcher = cliFetcher
	closeFunction := func() error { return nil }
	if options.UseCache && application.configuration.Cache.Enabled {
		if store, storeError := application.openCacheStore(); storeError != nil {
			application.logger.Warn(cacheUnavailableMessageConstant, zap.String(cacheDirectoryFieldConstant, application.cacheDirectory()), zap.Error(storeError))
		} else {
			cachingFetcher, cachingError := historycache.NewCachingFetcher(store, cliFetcher, application.cacheExpiry(), application.logger, recorder)
			if cachingError != nil {
				_ = store.Close()
				return profilecmd.Runtime{}, cachingError
			}
			fetcher = cachingFetcher
			closeFunction = store.Close
		}
	}

	service, serviceError := profiler.NewService(profiler.Dependencies{
		Resolver:         resolver,
		Fetcher:          fetcher,
		Logger:           application.logger,
		Recorder:         recorder,
		FetchConcurrency: options.FetchConcurrency,
	})
	if serviceError != nil {
		_ = closeFunction()
		return profilecmd.Runtime{}, serviceError
	}

	return profilecmd.Runtime{Service: service, Gatherer: registry, Close: closeFunction}, nil
}

func (application *Application) openCacheStore() (*historycache.Store, error) {
	directory := application.cacheDirectory()
	if len(directory) == 0 {
		return nil, cachecmd.ErrDirectoryMissing
	}
	if mkdirError := os.MkdirAll(directory, configurationDirectoryPermissionConstant); mkdirError != nil {
		return nil, fmt.Errorf(configurationInitializationDirectoryErrorTemplateConstant, directory, mkdirError)
	}
	return historycache.Open(historycache.StoreOptions{Directory: directory})
}
