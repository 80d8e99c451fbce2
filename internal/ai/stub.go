package ai

import "context"

// Stub is a deterministic Provider used by tests and by the config
// resolver when no provider is bound, mirroring the teacher's StubClient
// (internal/ai/client.go) extended with streaming chat.
type Stub struct {
	dim   int
	Reply string
}

// NewStub builds a Stub provider with the given embedding dimension.
func NewStub(dim int) *Stub {
	if dim == 0 {
		dim = 8
	}
	return &Stub{dim: dim, Reply: "stub response"}
}

func (s *Stub) Dim() int { return s.dim }

func (s *Stub) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

func (s *Stub) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *Stub) StreamChat(ctx context.Context, req ChatRequest) (Stream, error) {
	return newSliceStream(s.Reply), nil
}
