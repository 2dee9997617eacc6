package fetcher

import (
	"context"
	"errors"
	"fmt"

	"idealista-scraper/internal/observability"
)

// ErrUnavailable: no resolver in the chain produced markup.
var ErrUnavailable = errors.New("page unavailable")

var errCacheMiss = errors.New("no cached copy")

// Имена резолверов, они же значение source в логах и статистике.
const (
	SourceFetch = "fetch"
	SourceCache = "cache"
)

type Outcome int

const (
	Resolved Outcome = iota // markup получен
	TryNext                 // мягкий отказ, пробуем следующий
	Stop                    // жёсткий отказ, дальше не идём
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case TryNext:
		return "try_next"
	case Stop:
		return "stop"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Resolution struct {
	Outcome Outcome
	Markup  string
	Err     error
}

// Resolver is one tier of the fetch → cache → give-up chain.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, url string) Resolution
}

// PageStore is what the chain needs from the page cache.
type PageStore interface {
	Save(url, markup string)
	Load(url string) (string, bool, error)
}

// Chain tries resolvers in order until one resolves or stops.
type Chain struct {
	resolvers []Resolver
	logger    *observability.Logger
}

func NewChain(logger *observability.Logger, resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers, logger: logger}
}

// NewFetchOrCacheChain builds the standard chain: network first, then cache.
func NewFetchOrCacheChain(f PageFetcher, store PageStore, logger *observability.Logger) *Chain {
	return NewChain(logger, &FetchResolver{Fetcher: f, Store: store}, &CacheResolver{Store: store})
}

// Resolve returns the markup and the name of the resolver that produced it.
func (c *Chain) Resolve(ctx context.Context, url string) (string, string, error) {
	var errs []error
	for _, r := range c.resolvers {
		res := r.Resolve(ctx, url)
		switch res.Outcome {
		case Resolved:
			return res.Markup, r.Name(), nil
		case Stop:
			return "", r.Name(), fmt.Errorf("%s: %w", r.Name(), res.Err)
		default:
			c.logger.Debug("Resolver gave up, trying next",
				"resolver", r.Name(),
				"url", url,
				"error", errString(res.Err),
			)
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", r.Name(), res.Err))
			}
		}
	}
	return "", "", errors.Join(append([]error{ErrUnavailable}, errs...)...)
}

// FetchResolver fetches from the network and writes the result through to Store.
type FetchResolver struct {
	Fetcher PageFetcher
	Store   PageStore
}

func (r *FetchResolver) Name() string { return SourceFetch }

func (r *FetchResolver) Resolve(ctx context.Context, url string) Resolution {
	markup, err := r.Fetcher.FetchPage(ctx, url)
	if err != nil {
		if errors.Is(err, ErrInvalidURL) {
			return Resolution{Outcome: Stop, Err: err}
		}
		return Resolution{Outcome: TryNext, Err: err}
	}
	if r.Store != nil {
		r.Store.Save(url, markup)
	}
	return Resolution{Outcome: Resolved, Markup: markup}
}

// CacheResolver serves the last saved copy.
type CacheResolver struct {
	Store PageStore
}

func (r *CacheResolver) Name() string { return SourceCache }

func (r *CacheResolver) Resolve(_ context.Context, url string) Resolution {
	markup, found, err := r.Store.Load(url)
	if err != nil {
		return Resolution{Outcome: TryNext, Err: err}
	}
	if !found {
		return Resolution{Outcome: TryNext, Err: errCacheMiss}
	}
	return Resolution{Outcome: Resolved, Markup: markup}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
