package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	profilererrors "github.com/tyemirov/stepprof/internal/errors"
	"github.com/tyemirov/stepprof/internal/timeline"
)

const (
	stateEnteredMarkerConstant          = "StateEntered"
	stateExitedMarkerConstant           = "StateExited"
	executionEventPrefixConstant        = "Execution"
	mapRunEventPrefixConstant           = "MapRun"
	scheduledSuffixConstant             = "Scheduled"
	failedSuffixConstant                = "Failed"
	timedOutSuffixConstant              = "TimedOut"
	succeededSuffixConstant             = "Succeeded"
	timestampDecodingTemplateConstant   = "event %d timestamp %s"
	unsupportedTimestampMessageConstant = "unsupported timestamp encoding"
	nanosecondsPerSecondConstant        = 1e9
)

var errUnsupportedTimestamp = errors.New(unsupportedTimestampMessageConstant)

// Event is one provider history event in the fields the profiler reads.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	StateName string    `json:"state_name,omitempty"`
}

// Kind classifies the provider event type into the record kinds the reconstructor understands.
func (event Event) Kind() timeline.RecordKind {
	return ClassifyEventType(event.Type)
}

// Record converts the event into the reconstructor input.
func (event Event) Record() timeline.Record {
	return timeline.Record{Kind: event.Kind(), Timestamp: event.Timestamp, StateName: event.StateName}
}

// ClassifyEventType maps a provider event type to a record kind.
// State transitions are recognised by substring, so TaskStateEntered, PassStateExited and similar all classify.
func ClassifyEventType(eventType string) timeline.RecordKind {
	switch {
	case strings.Contains(eventType, stateEnteredMarkerConstant):
		return timeline.RecordStateEntered
	case strings.Contains(eventType, stateExitedMarkerConstant):
		return timeline.RecordStateExited
	case strings.HasPrefix(eventType, executionEventPrefixConstant), strings.HasPrefix(eventType, mapRunEventPrefixConstant):
		return timeline.RecordOther
	case strings.HasSuffix(eventType, scheduledSuffixConstant):
		return timeline.RecordTaskScheduled
	case strings.HasSuffix(eventType, failedSuffixConstant), strings.HasSuffix(eventType, timedOutSuffixConstant):
		return timeline.RecordTaskFailed
	case strings.HasSuffix(eventType, succeededSuffixConstant):
		return timeline.RecordTaskSucceeded
	default:
		return timeline.RecordOther
	}
}

// Records converts events in order.
func Records(events []Event) []timeline.Record {
	records := make([]timeline.Record, 0, len(events))
	for _, event := range events {
		records = append(records, event.Record())
	}
	return records
}

type stateEventDetails struct {
	Name string `json:"name"`
}

type rawEvent struct {
	ID                       int64              `json:"id"`
	Type                     string             `json:"type"`
	Timestamp                json.RawMessage    `json:"timestamp"`
	StateEnteredEventDetails *stateEventDetails `json:"stateEnteredEventDetails,omitempty"`
	StateExitedEventDetails  *stateEventDetails `json:"stateExitedEventDetails,omitempty"`
}

type historyPage struct {
	Events    []rawEvent `json:"events"`
	NextToken string     `json:"nextToken"`
}

// Page is one decoded get-execution-history response.
type Page struct {
	Events    []Event
	NextToken string
}

// DecodePage decodes one AWS get-execution-history JSON response.
func DecodePage(subject string, payload []byte) (Page, error) {
	var page historyPage
	if decodingError := json.Unmarshal(payload, &page); decodingError != nil {
		return Page{}, profilererrors.Wrap(profilererrors.OperationHistoryDecode, subject, profilererrors.ErrHistoryDecodeFailed, decodingError)
	}

	events := make([]Event, 0, len(page.Events))
	for _, raw := range page.Events {
		timestamp, timestampError := decodeTimestamp(raw.Timestamp)
		if timestampError != nil {
			detail := fmt.Errorf(timestampDecodingTemplateConstant, raw.ID, timestampError)
			return Page{}, profilererrors.Wrap(profilererrors.OperationHistoryDecode, subject, profilererrors.ErrHistoryDecodeFailed, detail)
		}
		event := Event{ID: raw.ID, Type: raw.Type, Timestamp: timestamp}
		switch {
		case raw.StateEnteredEventDetails != nil:
			event.StateName = raw.StateEnteredEventDetails.Name
		case raw.StateExitedEventDetails != nil:
			event.StateName = raw.StateExitedEventDetails.Name
		}
		events = append(events, event)
	}

	return Page{Events: events, NextToken: page.NextToken}, nil
}

// decodeTimestamp accepts RFC 3339 strings and epoch seconds, the two encodings the AWS CLI emits.
func decodeTimestamp(raw json.RawMessage) (time.Time, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return time.Time{}, errUnsupportedTimestamp
	}
	if trimmed[0] == '"' {
		var text string
		if decodingError := json.Unmarshal(trimmed, &text); decodingError != nil {
			return time.Time{}, decodingError
		}
		if epochSeconds, parseError := strconv.ParseFloat(text, 64); parseError == nil {
			return epochToTime(epochSeconds), nil
		}
		return time.Parse(time.RFC3339Nano, text)
	}
	epochSeconds, parseError := strconv.ParseFloat(string(trimmed), 64)
	if parseError != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errUnsupportedTimestamp, parseError)
	}
	return epochToTime(epochSeconds), nil
}

func epochToTime(epochSeconds float64) time.Time {
	wholeSeconds := math.Floor(epochSeconds)
	nanoseconds := math.Round((epochSeconds - wholeSeconds) * nanosecondsPerSecondConstant)
	return time.Unix(int64(wholeSeconds), int64(nanoseconds)).UTC()
}
