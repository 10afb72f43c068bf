package llm

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Client.
type Middleware func(Client) Client

// Wrap applies middlewares left to right: Wrap(inner, A, B) is A(B(inner)).
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// RateLimit shares one budget of rps calls per second between text and image
// calls. An image call weighs ImageCallWeight. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, budget: newBucket(rps, burst)}
	}
}

type rateLimited struct {
	next   Client
	budget *bucket
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error { return c.next.Close() }

func (c *rateLimited) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	if err := c.budget.wait(ctx, 1); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, req)
}

func (c *rateLimited) GenerateImage(ctx context.Context, req ImageRequest) (Image, error) {
	if err := c.budget.wait(ctx, ImageCallWeight); err != nil {
		return Image{}, err
	}
	return c.next.GenerateImage(ctx, req)
}

// WithLogging logs request size, latency and failures. Image bytes are
// counted, never logged.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger.With(zap.String("client", next.Name()))}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateJSON(ctx context.Context, req JSONRequest) (json.RawMessage, error) {
	text, images := promptBytes(req.Parts)
	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, req)
	fields := []zap.Field{
		zap.String("phase", req.Phase),
		zap.Int("prompt_bytes", text),
		zap.Int("image_bytes", images),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("llm json request failed", append(fields, zap.Error(err))...)
		return nil, err
	}
	l.log.Debug("llm json request", append(fields, zap.Int("response_bytes", len(raw)))...)
	return raw, nil
}

func (l *logging) GenerateImage(ctx context.Context, req ImageRequest) (Image, error) {
	text, images := promptBytes(req.Parts)
	start := time.Now()
	img, err := l.next.GenerateImage(ctx, req)
	fields := []zap.Field{
		zap.String("phase", req.Phase),
		zap.Int("prompt_bytes", text),
		zap.Int("reference_images", countImages(req.Parts)),
		zap.Int("image_bytes", images),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("llm image request failed", append(fields, zap.Error(err))...)
		return Image{}, err
	}
	l.log.Debug("llm image request", append(fields, zap.String("mime", img.MIMEType), zap.Int("response_bytes", len(img.Data)))...)
	return img, nil
}

func countImages(parts []Part) int {
	n := 0
	for _, p := range parts {
		if p.IsImage() {
			n++
		}
	}
	return n
}
