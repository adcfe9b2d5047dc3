package generation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"outfit-studio/internal/config"

	"golang.org/x/oauth2"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func testGenerationConfig(endpoint string) config.GenerationConfig {
	return config.GenerationConfig{
		Endpoint:   endpoint,
		Deployment: "gpt-image-1",
		APIVersion: "2025-04-01-preview",
		Size:       "1024x1536",
		Quality:    "high",
	}
}

func newTestProvider(t *testing.T, handler http.HandlerFunc) *AzureOpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token", TokenType: "Bearer"})
	p, err := NewAzureOpenAIProvider(testGenerationConfig(srv.URL), tokens, srv.Client())
	if err != nil {
		t.Fatalf("NewAzureOpenAIProvider failed: %v", err)
	}
	return p
}

func writeImage(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(data)}},
	})
}

func TestAzureEditSendsMultipartRequest(t *testing.T) {
	var gotParts []string
	var gotFields = map[string]string{}

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openai/deployments/gpt-image-1/images/edits" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api-version") != "2025-04-01-preview" {
			t.Errorf("unexpected api version %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}

		mr, err := r.MultipartReader()
		if err != nil {
			t.Fatalf("expected multipart body: %v", err)
		}
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("failed to read part: %v", err)
			}
			data, _ := io.ReadAll(part)
			if part.FormName() == "image[]" {
				gotParts = append(gotParts, part.FileName()+"="+string(data))
				continue
			}
			gotFields[part.FormName()] = string(data)
		}
		writeImage(w, pngHeader)
	})

	res, err := p.Edit(context.Background(), Request{
		Instruction: "dress the model",
		Images: []Image{
			{Name: "hose.jpg", ContentType: "image/jpeg", Data: []byte("a")},
			{Name: "schuh.jpg", ContentType: "image/jpeg", Data: []byte("b")},
		},
	})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if res.ContentType != "image/png" {
		t.Errorf("expected image/png, got %s", res.ContentType)
	}

	if strings.Join(gotParts, ",") != "hose.jpg=a,schuh.jpg=b" {
		t.Errorf("image parts out of order: %v", gotParts)
	}
	want := map[string]string{"prompt": "dress the model", "n": "1", "size": "1024x1536", "quality": "high"}
	for k, v := range want {
		if gotFields[k] != v {
			t.Errorf("field %s: expected %q, got %q", k, v, gotFields[k])
		}
	}
}

func TestAzureEditClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		header    map[string]string
		transient bool
		code      string
		retry     time.Duration
	}{
		{name: "bad request", status: 400, body: `{"error":{"code":"invalid_request","message":"bad image"}}`, code: "invalid_request"},
		{name: "content policy", status: 400, body: `{"error":{"code":"content_policy_violation","message":"blocked"}}`, code: "content_policy_violation"},
		{name: "unauthorized", status: 401},
		{name: "too large", status: 413},
		{name: "timeout", status: 408, transient: true},
		{name: "throttled", status: 429, header: map[string]string{"Retry-After": "7"}, transient: true, retry: 7 * time.Second},
		{name: "throttled ms", status: 429, header: map[string]string{"retry-after-ms": "250"}, transient: true, retry: 250 * time.Millisecond},
		{name: "server error", status: 500, transient: true},
		{name: "unavailable", status: 503, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := p.Edit(context.Background(), Request{Instruction: "x"})
			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Transient() != tt.transient {
				t.Errorf("expected transient=%v, got %v", tt.transient, pe.Transient())
			}
			if !tt.transient && !errors.Is(err, ErrGenerationRejected) {
				t.Errorf("expected ErrGenerationRejected, got %v", err)
			}
			if pe.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, pe.StatusCode)
			}
			if tt.code != "" && pe.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, pe.Code)
			}
			if pe.RetryAfter != tt.retry {
				t.Errorf("expected retry-after %s, got %s", tt.retry, pe.RetryAfter)
			}
		})
	}
}

func TestAzureEditRejectsResponsesWithoutImage(t *testing.T) {
	bodies := []string{`{"data":[]}`, `{"data":[{"b64_json":""}]}`, `{"data":[{"b64_json":"%%%"}]}`, `not json`}
	for _, body := range bodies {
		p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, body)
		})
		if _, err := p.Edit(context.Background(), Request{Instruction: "x"}); !errors.Is(err, ErrGenerationRejected) {
			t.Errorf("body %q: expected ErrGenerationRejected, got %v", body, err)
		}
	}
}

func TestAzureEditTimeoutIsAmbiguous(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Edit(ctx, Request{Instruction: "x"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !pe.Transient() || !pe.Ambiguous {
		t.Errorf("expected ambiguous transient error, got %+v", pe)
	}
}

func TestClassifyTransportErrorDialTimeoutIsRetryable(t *testing.T) {
	dialErr := &url.Error{
		Op:  "Post",
		URL: "https://example.openai.azure.com/openai/deployments/gpt-image-1/images/edits",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: context.DeadlineExceeded},
	}

	pe := classifyTransportError(context.Background(), dialErr)
	if !pe.Transient() {
		t.Errorf("expected transient error, got %+v", pe)
	}
	if pe.Ambiguous {
		t.Errorf("dial timeout must not be ambiguous, got %+v", pe)
	}

	readErr := &url.Error{
		Op:  "Post",
		URL: dialErr.URL,
		Err: &net.OpError{Op: "read", Net: "tcp", Err: context.DeadlineExceeded},
	}
	if pe := classifyTransportError(context.Background(), readErr); !pe.Ambiguous {
		t.Errorf("read timeout must stay ambiguous, got %+v", pe)
	}
}

func TestAzureEditUnreachableHostIsNotAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	p, err := NewAzureOpenAIProvider(testGenerationConfig(endpoint), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"}), http.DefaultClient)
	if err != nil {
		t.Fatalf("NewAzureOpenAIProvider failed: %v", err)
	}

	_, err = p.Edit(context.Background(), Request{Instruction: "x"})
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !pe.Transient() || pe.Ambiguous {
		t.Errorf("expected unambiguous transient error, got %+v", pe)
	}
}

func TestNewTokenSource(t *testing.T) {
	ts, err := NewTokenSource(context.Background(), config.GenerationConfig{BearerToken: "abc"})
	if err != nil {
		t.Fatalf("NewTokenSource failed: %v", err)
	}
	tok, _ := ts.Token()
	if tok.AccessToken != "abc" {
		t.Errorf("expected static token, got %s", tok.AccessToken)
	}

	if _, err := NewTokenSource(context.Background(), config.GenerationConfig{}); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}
