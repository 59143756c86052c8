package narrative

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tyemirov/stepprof/internal/report"
	"github.com/tyemirov/stepprof/internal/timeline"
	"github.com/tyemirov/utils/llm"
)

func sampleDocument() report.Document {
	return report.Document{
		RunID: "run-7",
		Executions: []report.ExecutionReport{
			{
				ID:              "arn:aws:states:us-east-1:123456789012:execution:Pipeline:primary",
				Status:          "SUCCEEDED",
				DurationSeconds: 600,
				IntervalCount:   4,
				ContributorsWithoutLoops: []timeline.Contribution{
					{Name: "Fan", TotalSeconds: 300},
					{Name: "Prepare", TotalSeconds: 200},
					{Name: "Finish", TotalSeconds: 100},
				},
				ContributorsWithLoops: []timeline.Contribution{{Name: "[LOOP] Poll|Wait", TotalSeconds: 420}},
				Steps: []report.StepReport{
					{Name: "Prepare", Attempts: 3, DurationSeconds: 200},
					{Name: "Fan", Attempts: 1, DurationSeconds: 300},
				},
				Loops: []report.LoopReport{{Label: "Poll|Wait", Iterations: 4, DurationSeconds: 420}},
				Aggregates: []report.AggregateReport{
					{Name: "Download", Statistics: report.Statistics{Count: 2, Mean: 360, Median: 360, Minimum: 300, Maximum: 420}},
				},
			},
		},
	}
}

func TestBuildRequestDigestsDocument(t *testing.T) {
	generator := Generator{Client: &stubChatClient{}}

	request, err := generator.BuildRequest(sampleDocument(), Options{Contributors: 2})
	require.NoError(t, err)

	require.Len(t, request.Messages, 2)
	require.Equal(t, "system", request.Messages[0].Role)
	content := request.Messages[1].Content
	require.Contains(t, content, "Profile run: run-7")
	require.Contains(t, content, "Status: SUCCEEDED")
	require.Contains(t, content, "- Fan: 300.00s")
	require.Contains(t, content, "- Prepare: 200.00s")
	require.NotContains(t, content, "- Finish")
	require.Contains(t, content, "- [LOOP] Poll|Wait: 420.00s")
	require.Contains(t, content, "Loop Poll|Wait: 4 iterations")
	require.Contains(t, content, "Retried step Prepare: 3 attempts")
	require.NotContains(t, content, "Retried step Fan")
	require.Contains(t, content, "Aggregated Download across 2 samples")
	require.Equal(t, defaultMaxTokens, request.MaxTokens)
}

func TestBuildRequestValidation(t *testing.T) {
	_, err := Generator{}.BuildRequest(sampleDocument(), Options{})
	require.Error(t, err)

	_, err = Generator{Client: &stubChatClient{}}.BuildRequest(report.Document{}, Options{})
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestGenerateCallsChatClient(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	client := &stubChatClient{response: "  Fan dominates the run.  "}
	temperature := 0.2
	generator := Generator{Client: client, Logger: zap.New(core)}

	result, err := generator.Generate(context.Background(), sampleDocument(), Options{MaxTokens: 64, Temperature: &temperature})
	require.NoError(t, err)
	require.Equal(t, "Fan dominates the run.", result.Narrative)
	require.Equal(t, 64, client.lastRequest.MaxTokens)
	require.Equal(t, &temperature, client.lastRequest.Temperature)
	require.Equal(t, 1, logs.FilterMessage("requesting profile narrative").Len())
}

func TestGenerateFailures(t *testing.T) {
	_, err := Generator{Client: &stubChatClient{err: errors.New("quota")}}.Generate(context.Background(), sampleDocument(), Options{})
	require.ErrorContains(t, err, "quota")

	_, err = Generator{Client: &stubChatClient{response: "   "}}.Generate(context.Background(), sampleDocument(), Options{})
	require.ErrorContains(t, err, "empty narrative")
}

func TestTruncateDigest(t *testing.T) {
	require.Equal(t, "abc", truncateDigest("abc", 5))
	require.Equal(t, "ab\n...", truncateDigest("abcdef", 2))
}

type stubChatClient struct {
	lastRequest llm.ChatRequest
	response    string
	err         error
}

func (client *stubChatClient) Chat(ctx context.Context, request llm.ChatRequest) (string, error) {
	client.lastRequest = request
	if client.err != nil {
		return "", client.err
	}
	return client.response, nil
}
