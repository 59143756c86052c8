package profile

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/stepprof/internal/report"
	"github.com/tyemirov/stepprof/internal/report/server"
	"github.com/tyemirov/stepprof/internal/report/snapshot"
	flagutils "github.com/tyemirov/stepprof/internal/utils/flags"
)

const (
	profileCommandUseName          = "profile <execution>"
	profileCommandShortDescription = "Profile a Step Functions execution"
	profileCommandLongDescription  = "profile fetches the execution history, reconstructs step spans, detects loops, and reports the largest contributors."
	formatFlagName                 = "format"
	formatFlagUsage                = "Output format (table|yaml|json|html)"
	outputDirectoryFlagName        = "out-dir"
	outputDirectoryFlagUsage       = "Directory receiving HTML reports"
	serveFlagName                  = "serve"
	serveFlagUsage                 = "Serve the report over HTTP until interrupted"
	portFlagName                   = "port"
	portFlagUsage                  = "Port for --serve"
	snapshotFlagName               = "snapshot"
	snapshotFlagUsage              = "Write a PNG screenshot of the HTML report to this path"
	portInvalidMessage             = "port must be between 1 and 65535"
	htmlReportWrittenTemplate      = "%s\n"
	snapshotWrittenTemplate        = "snapshot written to %s\n"
	servingTemplate                = "serving report at http://%s (Ctrl+C to stop)\n"
	snapshotLoopbackAddress        = "127.0.0.1:0"
	snapshotURLTemplate            = "http://%s/executions/0"
	maximumPortNumber              = 65535
	snapshotCapturedMessage        = "report snapshot captured"
	pathFieldName                  = "path"
)

// SnapshotCapturer renders a served report page to an image file.
type SnapshotCapturer interface {
	CaptureFile(captureContext context.Context, address string, outputPath string) error
}

// CommandBuilder assembles the profile command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeFactory        RuntimeFactory
	CapturerFactory       func() SnapshotCapturer
}

// Build constructs the profile command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   profileCommandUseName,
		Short: profileCommandShortDescription,
		Long:  profileCommandLongDescription,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}

	bindFetchFlags(command)
	command.Flags().String(formatFlagName, string(report.FormatTable), formatFlagUsage)
	command.Flags().String(outputDirectoryFlagName, defaultOutputDirectory, outputDirectoryFlagUsage)
	command.Flags().Bool(serveFlagName, false, serveFlagUsage)
	command.Flags().Int(portFlagName, defaultPort, portFlagUsage)
	command.Flags().String(snapshotFlagName, "", snapshotFlagUsage)

	return command, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	invocation, invocationError := resolveInvocation(command, arguments, configuration)
	if invocationError != nil {
		return invocationError
	}

	formatValue := configuration.Format
	if flagValue, changed, flagError := flagutils.StringFlag(command, formatFlagName); flagError == nil && changed {
		formatValue = flagValue
	}
	format, formatError := report.ParseFormat(formatValue)
	if formatError != nil {
		return formatError
	}

	outputDirectory := configuration.OutputDirectory
	if flagValue, changed, flagError := flagutils.StringFlag(command, outputDirectoryFlagName); flagError == nil && changed {
		outputDirectory = strings.TrimSpace(flagValue)
	}

	port := configuration.Port
	if flagValue, flagError := command.Flags().GetInt(portFlagName); flagError == nil && command.Flags().Changed(portFlagName) {
		port = flagValue
	}
	if port <= 0 || port > maximumPortNumber {
		return errors.New(portInvalidMessage)
	}

	serveRequested, _, _ := flagutils.BoolFlag(command, serveFlagName)
	snapshotPath, _, _ := flagutils.StringFlag(command, snapshotFlagName)
	snapshotPath = strings.TrimSpace(snapshotPath)

	document, runtime, documentError := buildDocument(command, builder.RuntimeFactory, invocation, configuration.FetchConcurrency, logger)
	if documentError != nil {
		return documentError
	}
	defer closeRuntime(runtime, logger)

	if renderError := writeDocument(command, document, format, outputDirectory); renderError != nil {
		return renderError
	}

	serverOptions := server.Options{Logger: logger, Gatherer: runtime.Gatherer}

	if len(snapshotPath) > 0 {
		if snapshotError := builder.captureSnapshot(command, document, serverOptions, snapshotPath, logger); snapshotError != nil {
			return snapshotError
		}
	}

	if serveRequested {
		gin.SetMode(gin.ReleaseMode)
		serveContext, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		address := loopbackAddress(port)
		fmt.Fprintf(command.ErrOrStderr(), servingTemplate, address)
		return server.New(document, serverOptions).Serve(serveContext, address)
	}

	return nil
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) captureSnapshot(command *cobra.Command, document report.Document, options server.Options, outputPath string, logger *zap.Logger) error {
	capturer := builder.resolveCapturer()

	listener, listenError := net.Listen("tcp", snapshotLoopbackAddress)
	if listenError != nil {
		return listenError
	}

	gin.SetMode(gin.ReleaseMode)
	serveContext, cancel := context.WithCancel(command.Context())
	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.New(document, options).ServeListener(serveContext, listener)
	}()

	captureError := capturer.CaptureFile(command.Context(), fmt.Sprintf(snapshotURLTemplate, listener.Addr().String()), outputPath)
	cancel()
	serveError := <-serveErrors
	if captureError != nil {
		return captureError
	}
	if serveError != nil {
		return serveError
	}

	logger.Info(snapshotCapturedMessage, zap.String(pathFieldName, outputPath))
	fmt.Fprintf(command.OutOrStdout(), snapshotWrittenTemplate, outputPath)
	return nil
}

func (builder *CommandBuilder) resolveCapturer() SnapshotCapturer {
	if builder.CapturerFactory != nil {
		if capturer := builder.CapturerFactory(); capturer != nil {
			return capturer
		}
	}
	return snapshot.NewCapturer(snapshot.Options{})
}

func writeDocument(command *cobra.Command, document report.Document, format report.Format, outputDirectory string) error {
	if format != report.FormatHTML {
		return report.Write(command.OutOrStdout(), document, format)
	}

	if tableError := report.WriteTable(command.OutOrStdout(), document); tableError != nil {
		return tableError
	}
	paths, writeError := report.WriteHTMLFiles(filepath.Clean(outputDirectory), document)
	if writeError != nil {
		return writeError
	}
	for _, path := range paths {
		fmt.Fprintf(command.OutOrStdout(), htmlReportWrittenTemplate, path)
	}
	return nil
}
