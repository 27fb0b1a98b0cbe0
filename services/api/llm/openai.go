package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// Client sends single-prompt completions to the OpenAI Responses API.
type Client struct {
	api         openai.Client
	model       string
	temperature float64
}

// NewClient builds a client for model with the given sampling temperature.
// Extra options (base URL, HTTP client) are passed through to the SDK.
func NewClient(apiKey, model string, temperature float64, opts ...option.RequestOption) *Client {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		api:         openai.NewClient(opts...),
		model:       model,
		temperature: temperature,
	}
}

// Complete returns the response text, or "" when the model produced none.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.Responses.New(ctx, responses.ResponseNewParams{
		Model:       shared.ResponsesModel(c.model),
		Input:       responses.ResponseNewParamsInputUnion{OfString: openai.String(prompt)},
		Temperature: openai.Float(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("create response: %w", err)
	}
	return resp.OutputText(), nil
}
