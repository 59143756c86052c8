package execution

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

const (
	fileReferencePrefixConstant            = "file://"
	referenceFileReadErrorTemplateConstant = "read execution list %s: %w"
)

// ExpandReferences replaces file://<path> entries with the non-empty lines of the referenced file.
// Other entries are kept as given, in order.
func ExpandReferences(references []string) ([]string, error) {
	expanded := make([]string, 0, len(references))
	for _, reference := range references {
		trimmed := strings.TrimSpace(reference)
		if len(trimmed) == 0 {
			continue
		}
		if !strings.HasPrefix(trimmed, fileReferencePrefixConstant) {
			expanded = append(expanded, trimmed)
			continue
		}
		path := strings.TrimPrefix(trimmed, fileReferencePrefixConstant)
		contents, readError := os.ReadFile(path)
		if readError != nil {
			return nil, fmt.Errorf(referenceFileReadErrorTemplateConstant, path, readError)
		}
		scanner := bufio.NewScanner(bytes.NewReader(contents))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) > 0 {
				expanded = append(expanded, line)
			}
		}
		if scanError := scanner.Err(); scanError != nil {
			return nil, fmt.Errorf(referenceFileReadErrorTemplateConstant, path, scanError)
		}
	}
	return expanded, nil
}
