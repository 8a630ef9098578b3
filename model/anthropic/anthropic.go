// Package anthropic provides a model.Client implementation backed by the
// Anthropic Claude Messages API, trimmed to the planner/resolver's simpler
// prompt-in/text-out contract (single user turn, optional image, no tool
// use).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/guideforge/engine/model"
)

// MessagesClient captures the subset of the Anthropic SDK client used by the
// adapter, matching *sdk.MessageService so callers can substitute a mock in
// tests.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures the adapter's default model tiers and sampling
// parameters, used whenever a Request leaves the corresponding field unset.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int
	Temperature  float64
}

// Client implements model.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
}

// New builds an Anthropic-backed model client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("anthropic: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       maxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a client using the default Anthropic HTTP client,
// authenticated with the given apiKey via option.WithAPIKey.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, Options{DefaultModel: defaultModel})
}

// Execute issues a single Messages.New call and returns the concatenated
// text content of the reply.
func (c *Client) Execute(ctx context.Context, req model.Request) (model.Response, error) {
	return c.call(ctx, req)
}

// ExecuteTTSEnhancement issues a call tuned for narration text: it nudges
// the temperature up slightly from the planning default (when the caller
// left Temperature unset) to produce more natural-sounding phrasing.
func (c *Client) ExecuteTTSEnhancement(ctx context.Context, req model.Request) (model.Response, error) {
	if req.Temperature == 0 {
		req.Temperature = 0.7
	}
	return c.call(ctx, req)
}

func (c *Client) call(ctx context.Context, req model.Request) (model.Response, error) {
	params, err := c.prepareParams(req)
	if err != nil {
		return model.Response{}, err
	}
	msg, err := c.msg.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translate(msg), nil
}

func (c *Client) prepareParams(req model.Request) (sdk.MessageNewParams, error) {
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return sdk.MessageNewParams{}, errors.New("anthropic: model identifier is required")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}

	blocks := []sdk.ContentBlockParamUnion{sdk.NewTextBlock(req.UserPrompt)}
	if req.ImageBase64 != "" {
		blocks = append(blocks, sdk.NewImageBlockBase64(req.ImageMediaType, req.ImageBase64))
	}

	params := sdk.MessageNewParams{
		MaxTokens: int64(maxTokens),
		Model:     sdk.Model(modelID),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(blocks...),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temp
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}
	return params, nil
}

func (c *Client) resolveModelID(req model.Request) string {
	if req.Model != "" {
		return req.Model
	}
	switch req.ModelClass {
	case model.ModelClassHigh:
		if c.highModel != "" {
			return c.highModel
		}
	case model.ModelClassSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

func translate(msg *sdk.Message) model.Response {
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			text += block.Text
		}
	}
	return model.Response{
		Text:         text,
		StopReason:   string(msg.StopReason),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
