// Package generation performs the round trip to the external image editing
// service: load the product images, call the provider with bounded retries,
// and persist the result as an artifact.
package generation

import "context"

// Image is one input garment photo, submitted in request order.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type Request struct {
	Instruction string
	Images      []Image
}

// Result holds the decoded image returned by a provider.
type Result struct {
	Data        []byte
	ContentType string
}

// Provider performs exactly one generation attempt. Failures must be
// returned as *ProviderError so the client can classify them.
type Provider interface {
	Name() string
	Edit(ctx context.Context, req Request) (*Result, error)
}
