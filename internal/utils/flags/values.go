package flags

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tyemirov/stepprof/internal/utils"
)

const boolFlagParseErrorTemplate = "unable to parse flag %q: %w"

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetBool(name)
	if err != nil {
		return false, false, fmt.Errorf(boolFlagParseErrorTemplate, name, err)
	}
	return value, flag.Changed, nil
}

func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

func StringSliceFlag(command *cobra.Command, name string) ([]string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return nil, false, ErrFlagNotDefined
	}
	values, err := flagSet.GetStringSlice(name)
	if err != nil {
		return nil, false, err
	}
	return values, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}

// CollectAWSContext inspects the command's flags to produce AWS context values.
func CollectAWSContext(command *cobra.Command) utils.AWSContext {
	awsContext := utils.AWSContext{}
	if command == nil {
		return awsContext
	}

	if accountValue, _, accountError := StringFlag(command, AccountFlagName); accountError == nil {
		awsContext.Account = strings.TrimSpace(accountValue)
	}

	if regionValue, _, regionError := StringFlag(command, RegionFlagName); regionError == nil {
		awsContext.Region = strings.TrimSpace(regionValue)
	}

	return awsContext
}

// ResolveAWSContext returns the AWS context from the command context or flag values, indicating whether any value is provided.
func ResolveAWSContext(command *cobra.Command) (utils.AWSContext, bool) {
	contextAccessor := utils.NewCommandContextAccessor()
	if command != nil {
		if awsContext, available := contextAccessor.AWSContext(command.Context()); available {
			return awsContext, true
		}
	}

	awsContext := CollectAWSContext(command)
	available := len(awsContext.Account) > 0 || len(awsContext.Region) > 0
	return awsContext, available
}
