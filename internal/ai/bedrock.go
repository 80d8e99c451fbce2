package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	smithy "github.com/aws/smithy-go"
)

// bedrockProvider adapts AWS Bedrock's Converse/ConverseStream APIs to the
// plain-text chat this engine needs (no tool calling), grounded on the
// message-encoding and rate-limit-detection shape of the retrieved goa-ai
// Bedrock adapter, trimmed down from its tool-use/thinking machinery since
// retrieval-augmented answering never issues tool calls.
type bedrockProvider struct {
	runtime *bedrockruntime.Client
	cfg     Config
}

func newBedrock(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.ChatModel == "" {
		cfg.ChatModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "amazon.titan-embed-text-v1"
	}
	if cfg.Dim == 0 {
		cfg.Dim = 1536
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Location != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Location))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	if cfg.RoleARN != "" {
		stsClient := sts.NewFromConfig(awsCfg)
		awsCfg.Credentials = stscreds.NewAssumeRoleProvider(stsClient, cfg.RoleARN)
	}

	return &bedrockProvider{
		runtime: bedrockruntime.NewFromConfig(awsCfg),
		cfg:     cfg,
	}, nil
}

func (p *bedrockProvider) Dim() int { return p.cfg.Dim }

func (p *bedrockProvider) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	model := orDefault(req.Model, p.cfg.ChatModel)
	system, conv := splitSystemMessages(req.Messages)

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:  &model,
		Messages: conv,
	}
	if len(system) > 0 {
		input.System = system
	}
	maxTokens := int32(req.MaxTokens)
	temp := float32(req.Temperature)
	if maxTokens > 0 || temp > 0 {
		ic := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			ic.MaxTokens = &maxTokens
		}
		if temp > 0 {
			ic.Temperature = &temp
		}
		input.InferenceConfig = ic
	}

	v, err := withRetry(ctx, 30*time.Second, func() (any, error) {
		out, err := p.runtime.ConverseStream(ctx, input)
		if err != nil {
			if isBedrockRateLimited(err) {
				return nil, retryable(err)
			}
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock converse stream: %w", err)
	}
	out := v.(*bedrockruntime.ConverseStreamOutput)
	stream := out.GetStream()
	if stream == nil {
		return nil, errors.New("bedrock: stream output missing event stream")
	}
	return newBedrockStream(stream), nil
}

func splitSystemMessages(msgs []Message) ([]brtypes.SystemContentBlock, []brtypes.Message) {
	var system []brtypes.SystemContentBlock
	var conv []brtypes.Message
	for _, m := range msgs {
		if m.Role == "system" {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := brtypes.ConversationRoleUser
		if m.Role == "assistant" {
			role = brtypes.ConversationRoleAssistant
		}
		conv = append(conv, brtypes.Message{
			Role:    role,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return system, conv
}

func isBedrockRateLimited(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "TooManyRequestsException":
			return true
		}
	}
	return false
}

// bedrockStream adapts the Bedrock event stream's channel-based protocol
// into the engine's pull-based Stream interface with a one-fragment buffer.
type bedrockStream struct {
	events <-chan brtypes.ConverseStreamOutput
	errCh  func() error
	closer interface{ Close() error }
	mu     sync.Mutex
	closed bool
}

func newBedrockStream(s *bedrockruntime.ConverseStreamEventStream) *bedrockStream {
	return &bedrockStream{events: s.Events(), errCh: s.Err, closer: s}
}

func (s *bedrockStream) Next(ctx context.Context) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case ev, ok := <-s.events:
			if !ok {
				if err := s.errCh(); err != nil {
					return "", err
				}
				return "", io.EOF
			}
			if delta, ok := ev.(*brtypes.ConverseStreamOutputMemberContentBlockDelta); ok {
				if text, ok := delta.Value.Delta.(*brtypes.ContentBlockDeltaMemberText); ok && text.Value != "" {
					return text.Value, nil
				}
			}
			// Non-text event (message start/stop, metadata); keep reading.
		}
	}
}

func (s *bedrockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.closer.Close()
}

// Embed calls Bedrock's InvokeModel against a Titan-family embedding model.
// Bedrock embeddings are single-text-per-call, unlike the batched
// OpenAI-compatible surface, so texts are embedded sequentially.
func (p *bedrockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.EmbedQuery(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (p *bedrockProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	payload, _ := json.Marshal(map[string]string{"inputText": text})
	model := p.cfg.EmbedModel

	v, err := withRetry(ctx, 20*time.Second, func() (any, error) {
		resp, err := p.runtime.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     &model,
			Body:        payload,
			ContentType: strPtr("application/json"),
		})
		if err != nil {
			if isBedrockRateLimited(err) {
				return nil, retryable(err)
			}
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke model: %w", err)
	}
	resp := v.(*bedrockruntime.InvokeModelOutput)

	var decoded struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding bedrock embedding: %w", err)
	}
	return decoded.Embedding, nil
}

func strPtr(s string) *string { return &s }
