// Package vision captions images and generates new ones.
package vision

import "context"

// Captioner describes the image at a URL. An empty caption means the image
// could not be described.
type Captioner interface {
	Caption(ctx context.Context, imageURL string) (string, error)
}

// ImageGenerator renders a prompt to an image and returns its public URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
