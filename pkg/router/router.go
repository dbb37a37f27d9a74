package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pario-ai/persona/pkg/config"
	"github.com/pario-ai/persona/pkg/httputil"
)

// ErrNoProviders is returned when no provider is configured.
var ErrNoProviders = errors.New("no providers configured")

// Route represents a resolved provider and model to try.
type Route struct {
	Provider config.ProviderConfig
	Model    string
}

// Router resolves model aliases to ordered provider+model chains.
type Router struct {
	providers map[string]config.ProviderConfig
	first     *config.ProviderConfig
	routes    map[string][]config.RouteTarget
}

// New creates a Router from the given configuration.
func New(cfg *config.Config) *Router {
	r := &Router{
		providers: make(map[string]config.ProviderConfig, len(cfg.Providers)),
		routes:    make(map[string][]config.RouteTarget, len(cfg.Router.Routes)),
	}
	for i, p := range cfg.Providers {
		r.providers[p.Name] = p
		if i == 0 {
			r.first = &cfg.Providers[0]
		}
	}
	for _, route := range cfg.Router.Routes {
		r.routes[route.Model] = route.Targets
	}
	return r
}

// Resolve returns an ordered list of routes for the requested model.
// If the model matches a configured route, the route's targets are returned.
// Otherwise, the first provider is used with the original model name.
func (r *Router) Resolve(requestedModel string) ([]Route, error) {
	if r.first == nil {
		return nil, ErrNoProviders
	}

	targets, ok := r.routes[requestedModel]
	if !ok {
		return []Route{{Provider: *r.first, Model: requestedModel}}, nil
	}

	var routes []Route
	for _, target := range targets {
		provider, ok := r.providers[target.Provider]
		if !ok {
			continue // skip unknown providers
		}
		model := target.Model
		if model == "" {
			model = requestedModel
		}
		routes = append(routes, Route{Provider: provider, Model: model})
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("route %q: all providers unknown", requestedModel)
	}
	return routes, nil
}

// Try calls fn for each route in order until one succeeds or fails with an
// error that is not worth retrying elsewhere. The last error is returned when
// every route fails.
func Try[T any](ctx context.Context, log *zap.Logger, routes []Route, fn func(context.Context, Route) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for _, route := range routes {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(ctx, route)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !httputil.IsRetryable(err) {
			return zero, err
		}
		log.Warn("upstream failed, trying next",
			zap.String("provider", route.Provider.Name),
			zap.String("model", route.Model),
			zap.Error(err))
	}
	if lastErr == nil {
		return zero, ErrNoProviders
	}
	return zero, fmt.Errorf("all upstream providers failed: %w", lastErr)
}
