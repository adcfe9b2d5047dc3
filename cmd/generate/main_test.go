package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"outfit-studio/internal/config"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/generation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const cliCatalog = `{
  "hosen": [
    {"id": "hosen-3", "name": "Wide Leg Jeans", "brand": "Levi's", "price": 59.99,
     "color": "Hellblau", "sizes": ["M"], "image": "hosen-3.jpg"}
  ],
  "schuhe": [
    {"id": "schuhe-7", "name": "Chelsea Boots", "brand": "Dr. Martens", "price": 169.00,
     "color": "Schwarz", "sizes": ["40"], "image": "schuhe-7.jpg"}
  ]
}`

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type cannedProvider struct {
	err    error
	images []string
}

func (p *cannedProvider) Name() string { return "canned" }

func (p *cannedProvider) Edit(_ context.Context, req generation.Request) (*generation.Result, error) {
	for _, img := range req.Images {
		p.images = append(p.images, img.Name)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &generation.Result{Data: pngBytes, ContentType: "image/png"}, nil
}

func cliConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(cliCatalog), 0o644))

	productsDir := filepath.Join(dir, "products")
	for _, ref := range []string{"hosen/hosen-3.jpg", "schuhe/schuhe-7.jpg"} {
		path := filepath.Join(productsDir, filepath.FromSlash(ref))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(ref), 0o644))
	}

	return &config.Config{
		Catalog:    config.CatalogConfig{Path: catalogPath, ProductsDir: productsDir},
		Generation: config.GenerationConfig{Timeout: time.Second, MaxAttempts: 1},
		Artifacts:  config.ArtifactConfig{Backend: "file", Dir: filepath.Join(dir, "generated"), URLPrefix: "/generated"},
	}
}

func TestGenerateStoresArtifact(t *testing.T) {
	cfg := cliConfig(t)
	provider := &cannedProvider{}

	artifact, err := generate(context.Background(), cfg, []string{"schuhe-7", "hosen-3"}, provider, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(artifact.Ref, "/generated/generated_"))
	assert.True(t, strings.HasSuffix(artifact.Ref, ".png"))
	assert.Len(t, provider.images, 2)
	_, err = os.Stat(filepath.Join(cfg.Artifacts.Dir, artifact.Name))
	assert.NoError(t, err)
}

func TestGenerateExitCodes(t *testing.T) {
	rejected := &generation.ProviderError{Kind: generation.ErrGenerationRejected, StatusCode: 400, Code: "content_policy_violation"}
	transient := &generation.ProviderError{Kind: generation.ErrTransientProvider, StatusCode: 503}

	tests := []struct {
		name     string
		ids      []string
		provider *cannedProvider
		mutate   func(*config.Config)
		want     int
	}{
		{"unknown item", []string{"hosen-99"}, &cannedProvider{}, nil, exitBadInput},
		{"duplicate item", []string{"hosen-3", "hosen-3"}, &cannedProvider{}, nil, exitBadInput},
		{"missing image file", []string{"hosen-3"}, &cannedProvider{}, func(c *config.Config) { c.Catalog.ProductsDir = t.TempDir() }, exitBadInput},
		{"missing catalog", []string{"hosen-3"}, &cannedProvider{}, func(c *config.Config) { c.Catalog.Path = "/nonexistent/catalog.json" }, exitConfig},
		{"rejected", []string{"hosen-3"}, &cannedProvider{err: rejected}, nil, exitRejected},
		{"transient", []string{"hosen-3"}, &cannedProvider{err: transient}, nil, exitTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cliConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			_, err := generate(context.Background(), cfg, tt.ids, tt.provider, zap.NewNop())
			require.Error(t, err)
			assert.Equal(t, tt.want, exitCode(err))
		})
	}
}

func TestExitCodeForSentinels(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitBadInput, exitCode(domain.ErrInvalidSelection))
	assert.Equal(t, exitTransient, exitCode(context.DeadlineExceeded))
	assert.Equal(t, exitConfig, exitCode(errors.New("disk full")))
}

func TestRunRequiresItemIDs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, &stdout, &stderr)

	assert.Equal(t, exitBadInput, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "usage")
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"hosen-3", "schuhe-7", "jacken-1"}, splitIDs([]string{"hosen-3, schuhe-7", "jacken-1", ","}))
}
