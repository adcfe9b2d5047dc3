package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiProvider generates looks with a Gemini image model.
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrMissingCredentials)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetCandidateCount(1)
	return &GeminiProvider{client: client, model: m, name: model}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Edit(ctx context.Context, req Request) (*Result, error) {
	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.Instruction))
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.ContentType, Data: img.Data})
	}

	resp, err := p.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGeminiError(ctx, err)
	}

	return imageFromResponse(resp)
}

func imageFromResponse(resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, rejected(0, "", "no content generated")
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if blob, ok := part.(genai.Blob); ok && strings.HasPrefix(blob.MIMEType, "image/") && len(blob.Data) > 0 {
			return &Result{Data: blob.Data, ContentType: blob.MIMEType}, nil
		}
	}
	return nil, rejected(0, "", "no image in response")
}

func classifyGeminiError(ctx context.Context, err error) *ProviderError {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return rejected(0, "content_policy_violation", blocked.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return classifyTransportError(ctx, err)
	}

	st, ok := status.FromError(err)
	if !ok {
		return transient(0, "request failed", err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted, codes.DeadlineExceeded:
		return transient(0, st.Message(), err)
	default:
		pe := rejected(0, st.Code().String(), st.Message())
		pe.Err = err
		return pe
	}
}
