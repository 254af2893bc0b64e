// Package llmclient defines the minimal model-call surface the harness
// would drive if the embedded agent's planning loop were in scope. The
// planning loop itself is out of scope (spec.md §1): this package exists so
// a LlmCallStarted/LlmCallCompleted provenance pair has a concrete caller
// shape to be produced from, grounded on the teacher's
// features/model/anthropic/client.go adapter pattern (a narrow interface
// over the vendor SDK's message service, not the whole SDK surface).
package llmclient

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Request is one model call: a single-turn prompt plus the model class the
// caller wants, mirroring the subset of the teacher's model.Request this
// harness would need (no tool-calling, no streaming — this repo's tools
// are dispatched through internal/pipeline, not through the model).
type Request struct {
	Prompt    string
	Model     string
	MaxTokens int
}

// Response is the decoded result of a model call.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Client is the narrow model-call contract this package depends on.
// Implementations never see tool arguments in the clear; the caller is
// responsible for redacting the prompt before logging it to provenance.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// AnthropicMessages captures the subset of the Anthropic SDK used here,
// mirroring the teacher's MessagesClient seam so a mock can stand in for
// *sdk.MessageService in tests.
type AnthropicMessages interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// AnthropicClient implements Client on top of the Anthropic Messages API.
type AnthropicClient struct {
	msg          AnthropicMessages
	defaultModel string
	maxTokens    int64
}

// NewAnthropicClient builds an AnthropicClient. defaultModel is used for any
// Request with an empty Model field.
func NewAnthropicClient(msg AnthropicMessages, defaultModel string, maxTokens int64) (*AnthropicClient, error) {
	if msg == nil {
		return nil, errors.New("llmclient: anthropic messages client is required")
	}
	if defaultModel == "" {
		return nil, errors.New("llmclient: default model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{msg: msg, defaultModel: defaultModel, maxTokens: maxTokens}, nil
}

// Generate implements Client.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (Response, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	msg, err := c.msg.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return Response{}, err
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Text:         text,
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
