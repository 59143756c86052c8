package cli

import (
	_ "embed"
)

const embeddedConfigurationTypeConstant = "yaml"

//go:embed defaults/config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the configuration shipped with the binary and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	duplicated := make([]byte, len(embeddedDefaultConfiguration))
	copy(duplicated, embeddedDefaultConfiguration)
	return duplicated, embeddedConfigurationTypeConstant
}
