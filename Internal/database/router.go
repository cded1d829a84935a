package datafeed

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Router dispatches each request to the provider registered for the longest matching
// ticker prefix, then the longest matching suffix (exchange codes like ".DE"), falling
// back to the default provider.
type Router struct {
	fallback BarProvider
	prefixes []string
	routes   map[string]BarProvider
	suffixes []string
	bySuffix map[string]BarProvider
}

func NewRouter(fallback BarProvider) *Router {
	return &Router{
		fallback: fallback,
		routes:   make(map[string]BarProvider),
		bySuffix: make(map[string]BarProvider),
	}
}

// Route registers p for tickers starting with prefix.
func (r *Router) Route(prefix string, p BarProvider) *Router {
	if _, ok := r.routes[prefix]; !ok {
		r.prefixes = append(r.prefixes, prefix)
		sort.Slice(r.prefixes, func(i, j int) bool { return len(r.prefixes[i]) > len(r.prefixes[j]) })
	}
	r.routes[prefix] = p
	return r
}

// RouteSuffix registers p for tickers ending with suffix.
func (r *Router) RouteSuffix(suffix string, p BarProvider) *Router {
	if _, ok := r.bySuffix[suffix]; !ok {
		r.suffixes = append(r.suffixes, suffix)
		sort.Slice(r.suffixes, func(i, j int) bool { return len(r.suffixes[i]) > len(r.suffixes[j]) })
	}
	r.bySuffix[suffix] = p
	return r
}

func (r *Router) providerFor(ticker string) BarProvider {
	for _, prefix := range r.prefixes {
		if strings.HasPrefix(ticker, prefix) {
			return r.routes[prefix]
		}
	}
	for _, suffix := range r.suffixes {
		if strings.HasSuffix(ticker, suffix) {
			return r.bySuffix[suffix]
		}
	}
	return r.fallback
}

func (r *Router) GetBars(ctx context.Context, req BarRequest) ([]Bar, error) {
	p := r.providerFor(req.Ticker)
	if p == nil {
		return nil, fmt.Errorf("no provider for %s: %w", req.Ticker, ErrFeedDown)
	}
	return p.GetBars(ctx, req)
}
