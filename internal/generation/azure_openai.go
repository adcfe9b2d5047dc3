package generation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"outfit-studio/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxErrorBody = 64 << 10

// AzureOpenAIProvider calls the images/edits endpoint of an Azure OpenAI
// deployment with one multipart image part per garment.
type AzureOpenAIProvider struct {
	endpoint   string
	deployment string
	apiVersion string
	size       string
	quality    string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

func NewAzureOpenAIProvider(cfg config.GenerationConfig, tokens oauth2.TokenSource, httpClient *http.Client) (*AzureOpenAIProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("AOAI_API_BASE is required")
	}
	if tokens == nil {
		return nil, ErrMissingCredentials
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &AzureOpenAIProvider{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		deployment: cfg.Deployment,
		apiVersion: cfg.APIVersion,
		size:       cfg.Size,
		quality:    cfg.Quality,
		tokens:     tokens,
		httpClient: httpClient,
	}, nil
}

// NewTokenSource returns a static bearer token source when a token is
// configured, otherwise an Entra ID client-credentials source.
func NewTokenSource(ctx context.Context, cfg config.GenerationConfig) (oauth2.TokenSource, error) {
	if cfg.BearerToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"}), nil
	}
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID)),
		Scopes:       []string{cfg.Scope},
	}
	return cc.TokenSource(ctx), nil
}

func (p *AzureOpenAIProvider) Name() string {
	return "azure-openai"
}

func (p *AzureOpenAIProvider) url() string {
	return fmt.Sprintf("%s/openai/deployments/%s/images/edits?api-version=%s",
		p.endpoint, url.PathEscape(p.deployment), url.QueryEscape(p.apiVersion))
}

func (p *AzureOpenAIProvider) Edit(ctx context.Context, req Request) (*Result, error) {
	body, contentType, err := p.encode(req)
	if err != nil {
		return nil, rejected(0, "", err.Error())
	}

	tok, err := p.tokens.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode < 500 {
			return nil, rejected(retrieveErr.Response.StatusCode, retrieveErr.ErrorCode, "credential request refused")
		}
		return nil, transient(0, "failed to acquire token", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url(), body)
	if err != nil {
		return nil, rejected(0, "", err.Error())
	}
	httpReq.Header.Set("Content-Type", contentType)
	tok.SetAuthHeader(httpReq)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var payload struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, rejected(resp.StatusCode, "", "unreadable response body")
	}
	if len(payload.Data) == 0 || payload.Data[0].B64JSON == "" {
		return nil, rejected(resp.StatusCode, "", "no image in response")
	}

	data, err := base64.StdEncoding.DecodeString(payload.Data[0].B64JSON)
	if err != nil {
		return nil, rejected(resp.StatusCode, "", "image payload is not valid base64")
	}

	return &Result{Data: data, ContentType: http.DetectContentType(data)}, nil
}

func (p *AzureOpenAIProvider) encode(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"prompt", req.Instruction},
		{"n", "1"},
		{"size", p.size},
		{"quality", p.quality},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	for _, img := range req.Images {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename=%q`, img.Name))
		h.Set("Content-Type", img.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write image part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func classifyTransportError(ctx context.Context, err error) *ProviderError {
	pe := transient(0, "request failed", err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		pe.Reason = "request timed out"
		// A failed dial never reached the service. Any later deadline may fire
		// after the upload completed.
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			pe.Reason = "connect timed out"
			return pe
		}
		pe.Ambiguous = ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded)
	}
	return pe
}

func classifyStatus(resp *http.Response) *ProviderError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	reason := http.StatusText(resp.StatusCode)
	code := ""
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		reason = apiErr.Error.Message
		code = apiErr.Error.Code
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		pe := transient(resp.StatusCode, reason, nil)
		pe.Code = code
		pe.RetryAfter = retryAfter(resp.Header)
		return pe
	default:
		return rejected(resp.StatusCode, code, reason)
	}
}

func retryAfter(h http.Header) time.Duration {
	if ms := h.Get("retry-after-ms"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil && n >= 0 {
			return time.Duration(n) * time.Millisecond
		}
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
