package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.NewsItem) (*types.NewsItem, error)
}

// DropFunc is notified when a middleware drops an item.
type DropFunc func(stage string, item *types.NewsItem)

// Pipeline chains middleware processors together. It is safe for
// concurrent use when every middleware is.
type Pipeline struct {
	middlewares []Middleware
	onDrop      DropFunc
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// OnDrop registers a callback for dropped items.
func (p *Pipeline) OnDrop(fn DropFunc) {
	p.onDrop = fn
}

// Process runs the item through all middleware in order.
func (p *Pipeline) Process(item *types.NewsItem) (*types.NewsItem, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Item:  current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "link", item.Link)
			if p.onDrop != nil {
				p.onDrop(mw.Name(), item)
			}
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// NewNewsPipeline returns the standard acceptance chain: trim, title words,
// body floor for crawled pages, time window, then link dedup.
func NewNewsPipeline(window types.TimeWindow, minBody int, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&TitleWordsMiddleware{MinWords: 2})
	p.Use(&MinBodyMiddleware{MinChars: minBody})
	p.Use(&WindowMiddleware{Window: window})
	p.Use(NewDedupMiddleware())
	return p
}
