// Package orchestrator drives a chunk translator over every chunk of a
// document. Chunks are independent, so they may run in parallel; results are
// handed back in index order and the first unrecoverable failure aborts the
// whole batch.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/valpere/graphtran/internal"
	"github.com/valpere/graphtran/internal/assembler"
	"github.com/valpere/graphtran/internal/chunker"
	"github.com/valpere/graphtran/internal/postprocess"
	"github.com/valpere/graphtran/internal/translator"
)

type Config struct {
	// Concurrency bounds in-flight calls. 1 keeps strict index order.
	Concurrency int
	// MaxAttempts counts the first call; retriable failures are retried
	// until it is reached.
	MaxAttempts int
	// RetryDelay is the pause before the second attempt and doubles after
	// each further one.
	RetryDelay time.Duration
	// Timeout bounds a single call. Zero means no per-call deadline.
	Timeout time.Duration
	// RequestsPerMinute throttles calls across all workers. Zero disables it.
	RequestsPerMinute int
}

// Cache stores sanitized chunk outputs. Implementations derive their key
// from the reference text and chunk text plus whatever backend scope they
// were created with.
type Cache interface {
	Get(ctx context.Context, reference, chunk string) (string, bool, error)
	Put(ctx context.Context, reference, chunk, text string) error
}

// Result is the outcome of a completed batch.
type Result struct {
	Parts     []assembler.Part
	Calls     int
	CacheHits int
}

type Runner struct {
	tr      translator.ChunkTranslator
	config  Config
	cache   Cache
	limiter *rate.Limiter
	logger  *zap.Logger
}

type Option func(*Runner)

func WithCache(c Cache) Option {
	return func(r *Runner) { r.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(tr translator.ChunkTranslator, config Config, opts ...Option) *Runner {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	r := &Runner{tr: tr, config: config, logger: zap.NewNop()}
	if config.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(config.RequestsPerMinute)), 1)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	text   string
	cached bool
}

// Run translates every chunk and returns the sanitized outputs ordered by
// index. Any chunk that still fails after the retry policy cancels the rest
// and is returned as *internal.TranslationError.
func (r *Runner) Run(ctx context.Context, chunks []chunker.Chunk, reference string) (*Result, error) {
	outcomes := make([]outcome, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for i, c := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.logger.Info("processing chunk",
				zap.Int("chunk", c.Index+1),
				zap.Int("total", len(chunks)))
			text, cached, err := r.translateChunk(gctx, c, reference)
			if err != nil {
				return err
			}
			outcomes[i] = outcome{text: text, cached: cached}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Parts: make([]assembler.Part, len(chunks))}
	for i, c := range chunks {
		result.Parts[i] = assembler.Part{Index: c.Index, Text: outcomes[i].text}
		if outcomes[i].cached {
			result.CacheHits++
		} else {
			result.Calls++
		}
	}
	return result, nil
}

func (r *Runner) translateChunk(ctx context.Context, c chunker.Chunk, reference string) (string, bool, error) {
	if r.cache != nil {
		text, ok, err := r.cache.Get(ctx, reference, c.Text)
		if err != nil {
			r.logger.Warn("cache lookup failed", zap.Int("chunk", c.Index+1), zap.Error(err))
		} else if ok {
			r.logger.Debug("cache hit", zap.Int("chunk", c.Index+1))
			return text, true, nil
		}
	}

	req := translator.ChunkRequest{Index: c.Index, Text: c.Text, Reference: reference}
	delay := r.config.RetryDelay
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", false, r.chunkError(c, err)
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return "", false, r.chunkError(c, err)
			}
		}

		res, err := r.call(ctx, req)
		if err == nil {
			text := postprocess.Clean(res.RawText)
			r.logger.Debug("chunk translated",
				zap.Int("chunk", c.Index+1),
				zap.Int("attempt", attempt),
				zap.Duration("latency", res.Latency))
			if r.cache != nil {
				if err := r.cache.Put(ctx, reference, c.Text, text); err != nil {
					r.logger.Warn("cache store failed", zap.Int("chunk", c.Index+1), zap.Error(err))
				}
			}
			return text, false, nil
		}

		lastErr = err
		if ctx.Err() != nil || !translator.IsRetriable(err) || attempt == r.config.MaxAttempts {
			break
		}
		r.logger.Warn("chunk failed, retrying",
			zap.Int("chunk", c.Index+1),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", false, r.chunkError(c, ctx.Err())
		case <-t.C:
		}
		delay *= 2
	}
	return "", false, r.chunkError(c, lastErr)
}

func (r *Runner) call(ctx context.Context, req translator.ChunkRequest) (*translator.ChunkResult, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	return r.tr.Translate(ctx, req)
}

func (r *Runner) chunkError(c chunker.Chunk, err error) error {
	te := &internal.TranslationError{ChunkIndex: c.Index, Sent: c.Text, Err: err}
	var se *translator.StatusError
	if errors.As(err, &se) {
		te.Received = se.Body
	}
	return te
}
