// Package cache exposes commands that maintain the local history cache.
package cache

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	historycache "github.com/tyemirov/stepprof/internal/history/cache"
)

const (
	namespaceUseName             = "cache"
	namespaceShortDescription    = "Local history cache commands"
	clearCommandUseName          = "clear"
	clearCommandShortDescription = "Drop every cached execution history"
	directoryMissingMessage      = "cache directory is not configured"
	nothingToClearTemplate       = "cache directory %s does not exist; nothing to clear\n"
	clearedTemplate              = "cleared cache at %s\n"
	cacheClearedMessage          = "history cache cleared"
	directoryFieldName           = "directory"
)

// ErrDirectoryMissing indicates the cache directory could not be resolved.
var ErrDirectoryMissing = errors.New(directoryMissingMessage)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the cache namespace and its subcommands.
type CommandBuilder struct {
	LoggerProvider    LoggerProvider
	DirectoryProvider func() string
}

// Build constructs the cache namespace command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	namespaceCommand := &cobra.Command{
		Use:   namespaceUseName,
		Short: namespaceShortDescription,
	}

	clearCommand := &cobra.Command{
		Use:   clearCommandUseName,
		Short: clearCommandShortDescription,
		Args:  cobra.NoArgs,
		RunE:  builder.runClear,
	}
	namespaceCommand.AddCommand(clearCommand)

	return namespaceCommand, nil
}

func (builder *CommandBuilder) runClear(command *cobra.Command, arguments []string) error {
	directory := ""
	if builder.DirectoryProvider != nil {
		directory = strings.TrimSpace(builder.DirectoryProvider())
	}
	if len(directory) == 0 {
		return ErrDirectoryMissing
	}

	if _, statError := os.Stat(directory); errors.Is(statError, os.ErrNotExist) {
		fmt.Fprintf(command.OutOrStdout(), nothingToClearTemplate, directory)
		return nil
	}

	store, openError := historycache.Open(historycache.StoreOptions{Directory: directory})
	if openError != nil {
		return openError
	}
	clearError := store.Clear()
	closeError := store.Close()
	if clearError != nil {
		return clearError
	}
	if closeError != nil {
		return closeError
	}

	if builder.LoggerProvider != nil {
		if logger := builder.LoggerProvider(); logger != nil {
			logger.Info(cacheClearedMessage, zap.String(directoryFieldName, directory))
		}
	}
	fmt.Fprintf(command.OutOrStdout(), clearedTemplate, directory)
	return nil
}
