package execshell

import (
	"fmt"
	"strings"
)

const (
	stepFunctionsServiceArgumentConstant             = "stepfunctions"
	executionHistorySubcommandConstant               = "get-execution-history"
	describeExecutionSubcommandConstant              = "describe-execution"
	executionArnFlagConstant                         = "--execution-arn"
	workingDirectorySuffixTemplateConstant           = " (in %s)"
	startedMessageTemplateConstant                   = "Running %s"
	completedMessageTemplateConstant                 = "Completed %s"
	failedMessageTemplateConstant                    = "%s failed with exit code %d"
	failedWithDetailMessageTemplateConstant          = "%s failed with exit code %d: %s"
	executionFailureMessageTemplateConstant          = "%s failed: %v"
	describedSubjectSuccessTemplateConstant          = "Retrieved %s for %s"
	describedSubjectFailureTemplateConstant          = "Failed to retrieve %s for %s (exit code %d)"
	describedSubjectDetailFailureTemplateConstant    = "Failed to retrieve %s for %s (exit code %d: %s)"
	describedSubjectExecutionFailureTemplateConstant = "Unable to retrieve %s for %s: %v"
	executionHistoryDescriptionConstant              = "execution history"
	executionDescriptionConstant                     = "execution details"
)

// CommandMessageFormatter renders human-readable lifecycle messages for shell commands.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, formatter.describeCommand(command))
}

// BuildSuccessMessage describes a command that completed with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if description, subject, described := formatter.describeSubject(command); described {
		return fmt.Sprintf(describedSubjectSuccessTemplateConstant, description, subject)
	}
	return fmt.Sprintf(completedMessageTemplateConstant, formatter.describeCommand(command))
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	detail := strings.TrimSpace(result.StandardError)
	if description, subject, described := formatter.describeSubject(command); described {
		if len(detail) == 0 {
			return fmt.Sprintf(describedSubjectFailureTemplateConstant, description, subject, result.ExitCode)
		}
		return fmt.Sprintf(describedSubjectDetailFailureTemplateConstant, description, subject, result.ExitCode, detail)
	}
	if len(detail) == 0 {
		return fmt.Sprintf(failedMessageTemplateConstant, formatter.describeCommand(command), result.ExitCode)
	}
	return fmt.Sprintf(failedWithDetailMessageTemplateConstant, formatter.describeCommand(command), result.ExitCode, detail)
}

// BuildExecutionFailureMessage describes a command the runner could not execute.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, runnerError error) string {
	if description, subject, described := formatter.describeSubject(command); described {
		return fmt.Sprintf(describedSubjectExecutionFailureTemplateConstant, description, subject, runnerError)
	}
	return fmt.Sprintf(executionFailureMessageTemplateConstant, formatter.describeCommand(command), runnerError)
}

// shouldLogStartMessage suppresses start messages for commands that already log a descriptive outcome.
func (formatter CommandMessageFormatter) shouldLogStartMessage(command ShellCommand) bool {
	_, _, described := formatter.describeSubject(command)
	return !described
}

func (formatter CommandMessageFormatter) describeCommand(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	description := strings.Join(parts, " ")
	if len(strings.TrimSpace(command.Details.WorkingDirectory)) > 0 {
		description += fmt.Sprintf(workingDirectorySuffixTemplateConstant, command.Details.WorkingDirectory)
	}
	return description
}

func (formatter CommandMessageFormatter) describeSubject(command ShellCommand) (string, string, bool) {
	if command.Name != CommandAWS {
		return "", "", false
	}
	arguments := command.Details.Arguments
	if len(arguments) < 2 || arguments[0] != stepFunctionsServiceArgumentConstant {
		return "", "", false
	}

	var description string
	switch arguments[1] {
	case executionHistorySubcommandConstant:
		description = executionHistoryDescriptionConstant
	case describeExecutionSubcommandConstant:
		description = executionDescriptionConstant
	default:
		return "", "", false
	}

	for index := 2; index < len(arguments)-1; index++ {
		if arguments[index] == executionArnFlagConstant {
			return description, arguments[index+1], true
		}
	}
	return "", "", false
}
