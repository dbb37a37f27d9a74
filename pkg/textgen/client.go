package textgen

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/router"
)

// Client resolves model aliases through the router and falls back across
// providers on retryable failures.
type Client struct {
	router  *router.Router
	gens    map[string]Generator
	rankers map[string]Ranker
	log     *zap.Logger
}

var (
	_ Generator = (*Client)(nil)
	_ Ranker    = (*Client)(nil)
)

// New builds a backend for every configured provider.
func New(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		router:  router.New(cfg),
		gens:    make(map[string]Generator, len(cfg.Providers)),
		rankers: make(map[string]Ranker, len(cfg.Providers)),
		log:     log.Named("textgen"),
	}
	for _, p := range cfg.Providers {
		switch p.Type {
		case config.ProviderGemini:
			g, err := NewGeminiClient(ctx, p.APIKey, p.URL)
			if err != nil {
				return nil, fmt.Errorf("provider %s: %w", p.Name, err)
			}
			c.gens[p.Name] = g
		default:
			hf := NewHFClient(httpClient, p.URL, p.APIKey)
			c.gens[p.Name] = hf
			c.rankers[p.Name] = hf
		}
	}
	return c, nil
}

func (c *Client) Generate(ctx context.Context, prompt, model string, params Params) ([]string, error) {
	routes, err := c.router.Resolve(model)
	if err != nil {
		return nil, err
	}
	return router.Try(ctx, c.log, routes, func(ctx context.Context, r router.Route) ([]string, error) {
		return c.gens[r.Provider.Name].Generate(ctx, prompt, r.Model, params)
	})
}

func (c *Client) Rank(ctx context.Context, prior, candidate, model string) (float64, error) {
	routes, err := c.router.Resolve(model)
	if err != nil {
		return 0, err
	}
	return router.Try(ctx, c.log, routes, func(ctx context.Context, r router.Route) (float64, error) {
		rk, ok := c.rankers[r.Provider.Name]
		if !ok {
			return 0, fmt.Errorf("rank with %s: %w", r.Provider.Name, ErrUnsupported)
		}
		return rk.Rank(ctx, prior, candidate, r.Model)
	})
}
