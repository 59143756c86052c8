package execution

import (
	"fmt"
	"strings"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/timeline"
)

const (
	arnSeparatorConstant             = ":"
	arnPrefixConstant                = "arn"
	defaultPartitionConstant         = "aws"
	statesServiceConstant            = "states"
	executionResourceTypeConstant    = "execution"
	fullArnPartCountConstant         = 8
	shortReferencePartCountConstant  = 2
	invalidArnTemplateConstant       = "invalid execution ARN %q"
	invalidReferenceTemplateConstant = "invalid execution id %q: expected an execution ARN or <state-machine>:<execution>"
)

// ARN identifies a state machine execution.
type ARN struct {
	Partition    string
	Region       string
	Account      string
	StateMachine string
	Execution    string
}

// ParseARN parses arn:<partition>:states:<region>:<account>:execution:<state-machine>:<execution>.
func ParseARN(value string) (ARN, error) {
	trimmed := strings.TrimSpace(value)
	parts := strings.Split(trimmed, arnSeparatorConstant)
	if len(parts) != fullArnPartCountConstant ||
		parts[0] != arnPrefixConstant ||
		parts[2] != statesServiceConstant ||
		parts[5] != executionResourceTypeConstant {
		return ARN{}, malformedIdentifier(value, invalidArnTemplateConstant)
	}
	for _, part := range parts {
		if len(part) == 0 {
			return ARN{}, malformedIdentifier(value, invalidArnTemplateConstant)
		}
	}
	return ARN{
		Partition:    parts[1],
		Region:       parts[3],
		Account:      parts[4],
		StateMachine: parts[6],
		Execution:    parts[7],
	}, nil
}

// String renders the full ARN.
func (arn ARN) String() string {
	partition := arn.Partition
	if len(partition) == 0 {
		partition = defaultPartitionConstant
	}
	return strings.Join([]string{
		arnPrefixConstant,
		partition,
		statesServiceConstant,
		arn.Region,
		arn.Account,
		executionResourceTypeConstant,
		arn.StateMachine,
		arn.Execution,
	}, arnSeparatorConstant)
}

// WorkflowID exposes the ARN as a timeline identifier.
func (arn ARN) WorkflowID() timeline.WorkflowID {
	return timeline.WorkflowID(arn.String())
}

func malformedIdentifier(value string, template string) error {
	return profilererrors.WrapMessage(
		profilererrors.OperationIdentifierParse,
		value,
		profilererrors.ErrMalformedExecutionIdentifier,
		fmt.Sprintf(template, value),
	)
}
