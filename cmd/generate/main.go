// Command generate composes one look from catalog item ids without the HTTP
// server and prints the artifact reference.
//
//	generate [--env-file .env] [--verbose] hosen-3 schuhe-7
//
// Exit status: 0 success, 1 configuration error, 2 bad input, 3 transient
// provider failure, 4 rejected by the provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/config"
	"outfit-studio/internal/domain"
	"outfit-studio/internal/generation"
	"outfit-studio/internal/logger"
	"outfit-studio/internal/prompt"
	"outfit-studio/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const (
	exitOK = iota
	exitConfig
	exitBadInput
	exitTransient
	exitRejected
)

// errConfig marks failures that are fixed by changing configuration.
var errConfig = errors.New("configuration error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	envFile := flags.String("env-file", ".env", "dotenv file to load before reading the environment")
	verbose := flags.BoolP("verbose", "v", false, "log progress to stderr")
	provider := flags.String("provider", "", "override GENERATION_PROVIDER (azure-openai or gemini)")
	if err := flags.Parse(args); err != nil {
		return exitBadInput
	}

	ids := splitIDs(flags.Args())
	if len(ids) == 0 {
		fmt.Fprintln(stderr, "usage: generate [flags] <product-id>...")
		return exitBadInput
	}

	log, err := logger.NewCLI(*verbose)
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return exitConfig
	}
	defer log.Sync()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "failed to read %s: %v\n", *envFile, err)
		return exitConfig
	}
	cfg := config.Load()
	if *provider != "" {
		cfg.Generation.Provider = *provider
	}

	artifact, err := generate(ctx, cfg, ids, nil, log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}

	fmt.Fprintln(stdout, artifact.Ref)
	return exitOK
}

// generate runs one generation. A nil provider selects the configured one.
func generate(ctx context.Context, cfg *config.Config, ids []string, provider generation.Provider, log *zap.Logger) (domain.ImageArtifact, error) {
	selection, err := domain.NewSelection(ids...)
	if err != nil {
		return domain.ImageArtifact{}, err
	}

	accessor, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("%w: %w", errConfig, err)
	}
	items, err := catalog.Resolve(ctx, accessor, selection.IDs())
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	p, err := prompt.NewBuilder(cfg.Prompt.ModelDescription).Build(items)
	if err != nil {
		return domain.ImageArtifact{}, err
	}

	if provider == nil {
		var closeProvider func() error
		provider, closeProvider, err = generation.NewProvider(ctx, cfg.Generation)
		if err != nil {
			return domain.ImageArtifact{}, fmt.Errorf("%w: %w", errConfig, err)
		}
		defer closeProvider()
	}

	store, err := storage.New(ctx, cfg.Artifacts)
	if err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("%w: %w", errConfig, err)
	}

	client := generation.NewClient(provider, generation.NewFileImageSource(cfg.Catalog.ProductsDir), store, cfg.Generation, nil, log)
	return client.Generate(ctx, p.Instruction, p.ImageRefs)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConfig):
		return exitConfig
	case errors.Is(err, domain.ErrInvalidSelection):
		return exitBadInput
	case errors.Is(err, generation.ErrGenerationRejected):
		return exitRejected
	case errors.Is(err, generation.ErrGenerationFailed),
		errors.Is(err, generation.ErrTransientProvider),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return exitTransient
	default:
		return exitConfig
	}
}

// splitIDs accepts ids as separate arguments or comma separated.
func splitIDs(args []string) []string {
	var ids []string
	for _, arg := range args {
		for _, id := range strings.Split(arg, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
