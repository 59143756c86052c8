// Package flags provides helpers for binding shared flags to Cobra commands.
package flags

import "github.com/spf13/cobra"

const (
	// AccountFlagName exposes the shared AWS account flag name.
	AccountFlagName = "account"
	// AccountFlagUsage describes the shared AWS account flag purpose.
	AccountFlagUsage = "AWS account used to expand short execution references"
	// RegionFlagName exposes the shared AWS region flag name.
	RegionFlagName = "region"
	// RegionFlagUsage describes the shared AWS region flag purpose.
	RegionFlagUsage = "AWS region used to expand short execution references"
)

// AWSFlagValues stores AWS context flag values.
type AWSFlagValues struct {
	Account string
	Region  string
}

// BindAWSFlags attaches the persistent account and region flags to the provided command.
func BindAWSFlags(command *cobra.Command, defaults AWSFlagValues) *AWSFlagValues {
	values := defaults
	if command == nil {
		return &values
	}

	persistentFlagSet := command.PersistentFlags()
	if persistentFlagSet.Lookup(AccountFlagName) == nil {
		persistentFlagSet.StringVar(&values.Account, AccountFlagName, defaults.Account, AccountFlagUsage)
	}
	if persistentFlagSet.Lookup(RegionFlagName) == nil {
		persistentFlagSet.StringVar(&values.Region, RegionFlagName, defaults.Region, RegionFlagUsage)
	}
	return &values
}
