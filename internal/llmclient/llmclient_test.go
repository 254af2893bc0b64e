package llmclient_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/require"

	"github.com/jojoalpha/agent-harness/internal/llmclient"
)

type stubMessages struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessages) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestNewAnthropicClientRequiresMessagesAndModel(t *testing.T) {
	_, err := llmclient.NewAnthropicClient(nil, "claude-3-5-sonnet", 0)
	require.Error(t, err)

	_, err = llmclient.NewAnthropicClient(&stubMessages{}, "", 0)
	require.Error(t, err)
}

func TestGenerateUsesDefaultModelAndDecodesUsage(t *testing.T) {
	stub := &stubMessages{
		resp: &sdk.Message{
			Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello back"}},
			Model:   "claude-3-5-sonnet-20241022",
			Usage:   sdk.Usage{InputTokens: 12, OutputTokens: 4},
		},
	}
	client, err := llmclient.NewAnthropicClient(stub, "claude-3-5-sonnet-20241022", 256)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), llmclient.Request{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hello back", resp.Text)
	require.EqualValues(t, 12, resp.InputTokens)
	require.EqualValues(t, 4, resp.OutputTokens)
	require.Equal(t, sdk.Model("claude-3-5-sonnet-20241022"), stub.lastParams.Model)
}

func TestGenerateSurfacesUnderlyingError(t *testing.T) {
	stub := &stubMessages{err: errors.New("boom")}
	client, err := llmclient.NewAnthropicClient(stub, "claude-3-5-sonnet-20241022", 0)
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), llmclient.Request{Prompt: "hi"})
	require.Error(t, err)
}
