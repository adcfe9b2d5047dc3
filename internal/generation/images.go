package generation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ImageSource loads product images by asset reference.
type ImageSource interface {
	Load(ctx context.Context, refs []string) ([]Image, error)
}

// FileImageSource reads "<category>/<file>" references below a root dir.
type FileImageSource struct {
	root string
}

func NewFileImageSource(root string) *FileImageSource {
	return &FileImageSource{root: root}
}

// Exists reports whether ref resolves to a readable file.
func (s *FileImageSource) Exists(ref string) bool {
	path, err := s.resolve(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load reads all refs concurrently, keeping the input order.
func (s *FileImageSource) Load(ctx context.Context, refs []string) ([]Image, error) {
	images := make([]Image, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := s.resolve(ref)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
				}
				return fmt.Errorf("failed to read image %s: %w", ref, err)
			}
			images[i] = Image{
				Name:        filepath.Base(path),
				ContentType: contentType(path),
				Data:        data,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

func (s *FileImageSource) resolve(ref string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(ref))
	if ref == "" || clean == string(filepath.Separator) || strings.Contains(ref, "..") {
		return "", fmt.Errorf("%w: %q", ErrImageNotFound, ref)
	}
	return filepath.Join(s.root, clean), nil
}

func contentType(path string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); ct != "" {
		return ct
	}
	return "image/jpeg"
}
