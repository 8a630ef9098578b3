// Package bedrock provides a model.Client implementation backed by the AWS
// Bedrock Converse API, trimmed to the planner/resolver's simpler
// single-turn, prompt-in/text-out contract.
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"

	"github.com/guideforge/engine/model"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client
// required by the adapter, matching *bedrockruntime.Client.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures the adapter's default model tiers and sampling
// parameters.
type Options struct {
	DefaultModel string
	HighModel    string
	SmallModel   string
	MaxTokens    int32
	Temperature  float32
}

// Client implements model.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime      RuntimeClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int32
	temp         float32
}

// New builds a Bedrock-backed model client from an *bedrockruntime.Client.
func New(rt *bedrockruntime.Client, opts Options) (*Client, error) {
	if rt == nil {
		return nil, errors.New("bedrock: runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("bedrock: default model identifier is required")
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Client{
		runtime:      rt,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       maxTokens,
		temp:         opts.Temperature,
	}, nil
}

// Execute issues a single Converse call and returns its concatenated text.
func (c *Client) Execute(ctx context.Context, req model.Request) (model.Response, error) {
	return c.call(ctx, req)
}

// ExecuteTTSEnhancement issues a call tuned for narration text, nudging
// temperature up when the caller left it unset.
func (c *Client) ExecuteTTSEnhancement(ctx context.Context, req model.Request) (model.Response, error) {
	if req.Temperature == 0 {
		req.Temperature = 0.7
	}
	return c.call(ctx, req)
}

func (c *Client) call(ctx context.Context, req model.Request) (model.Response, error) {
	input, err := c.buildInput(req)
	if err != nil {
		return model.Response{}, err
	}
	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		if isRateLimited(err) {
			return model.Response{}, fmt.Errorf("%w: %w", model.ErrRateLimited, err)
		}
		return model.Response{}, fmt.Errorf("bedrock: converse: %w", err)
	}
	return translate(out), nil
}

func (c *Client) buildInput(req model.Request) (*bedrockruntime.ConverseInput, error) {
	modelID := c.resolveModelID(req)
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}

	blocks := []brtypes.ContentBlock{
		&brtypes.ContentBlockMemberText{Value: req.UserPrompt},
	}
	if req.ImageBase64 != "" {
		format, err := imageFormat(req.ImageMediaType)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, &brtypes.ContentBlockMemberImage{
			Value: brtypes.ImageBlock{
				Format: format,
				Source: &brtypes.ImageSourceMemberBytes{Value: []byte(req.ImageBase64)},
			},
		})
	}

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []brtypes.Message{
			{Role: brtypes.ConversationRoleUser, Content: blocks},
		},
	}
	if req.SystemPrompt != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.SystemPrompt},
		}
	}

	maxTokens := int32(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	temp := float32(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	cfg := &brtypes.InferenceConfiguration{MaxTokens: aws.Int32(maxTokens)}
	if temp > 0 {
		cfg.Temperature = aws.Float32(temp)
	}
	input.InferenceConfig = cfg
	return input, nil
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

func imageFormat(mediaType string) (brtypes.ImageFormat, error) {
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return brtypes.ImageFormatJpeg, nil
	case "image/png":
		return brtypes.ImageFormatPng, nil
	default:
		return "", fmt.Errorf("bedrock: unsupported image media type %q", mediaType)
	}
}

func translate(out *bedrockruntime.ConverseOutput) model.Response {
	resp := model.Response{}
	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
				resp.Text += tb.Value
			}
		}
	}
	resp.StopReason = string(out.StopReason)
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return resp
}

func isRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ThrottlingException"
	}
	return false
}
