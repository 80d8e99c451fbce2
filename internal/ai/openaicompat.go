package ai

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// openAICompatClient is the shared transport for every provider that speaks
// the OpenAI chat/embeddings wire format (OpenAI, Azure OpenAI, OpenRouter,
// DashScope, a self-hosted "private model" endpoint, and Ollama's chat
// surface). Adapted from the teacher's OpenAIClient
// (internal/ai/openai.go), generalized from a hardcoded api.openai.com base
// URL to a configurable one and given real SSE streaming, which the
// teacher's Summarize never needed.
type openAICompatClient struct {
	cfg        Config
	baseURL    string
	authHeader func(*http.Request)
	http       *http.Client
}

func newOpenAICompatClient(cfg Config, baseURL string, authHeader func(*http.Request)) *openAICompatClient {
	transport := &http.Transport{}
	if skipTLS, _ := strconv.ParseBool(os.Getenv("ENGINE_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &openAICompatClient{
		cfg:        cfg,
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: authHeader,
		http:       &http.Client{Timeout: 60 * time.Second, Transport: transport},
	}
}

func (c *openAICompatClient) Dim() int { return c.cfg.Dim }

func (c *openAICompatClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := withRetry(ctx, 30*time.Second, func() (any, error) {
		return c.embedOnce(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return v.([][]float32), nil
}

func (c *openAICompatClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("no embedding returned")
	}
	return out[0], nil
}

func (c *openAICompatClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"input": texts,
		"model": c.cfg.EmbedModel,
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, retryable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	vecs := make([][]float32, len(out.Data))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			continue
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *openAICompatClient) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	payload := map[string]any{
		"model":       orDefault(req.Model, c.cfg.ChatModel),
		"messages":    toWireMessages(req.Messages),
		"temperature": req.Temperature,
		"stream":      true,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	b, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, retryable(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.statusError(resp)
	}
	return newSSEStream(resp.Body), nil
}

func toWireMessages(msgs []Message) []map[string]string {
	out := make([]map[string]string, len(msgs))
	for i, m := range msgs {
		out[i] = map[string]string{"role": m.Role, "content": m.Content}
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *openAICompatClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != nil {
		c.authHeader(req)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *openAICompatClient) statusError(resp *http.Response) error {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&e)
	msg := e.Error.Message
	if msg == "" {
		msg = resp.Status
	}
	err := fmt.Errorf("%s: %s", resp.Status, msg)
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return retryable(err)
	}
	return err
}

// sseStream parses a `data: {...}\n\n`-delimited Server-Sent Events body,
// terminated by the literal `data: [DONE]` line, into successive text
// fragments. Neither the teacher nor the other example repos implement
// real streaming, so the frame format here is taken directly from the
// OpenAI-compatible wire protocol itself.
type sseStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

func newSSEStream(body io.ReadCloser) *sseStream {
	return &sseStream{body: body, reader: bufio.NewReader(body)}
}

func (s *sseStream) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}
		var frame struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue // skip malformed keep-alive frames
		}
		if len(frame.Choices) == 0 {
			continue
		}
		if frag := frame.Choices[0].Delta.Content; frag != "" {
			return frag, nil
		}
		// delta carried no text (e.g. a role-only or finish frame); keep reading
	}
}

func (s *sseStream) Close() error { return s.body.Close() }
