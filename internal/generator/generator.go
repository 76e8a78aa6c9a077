// Package generator wires the adapter pipeline: resolve model, translate
// canonical history, send, and normalize the provider's answer back into
// canonical events.
//
// FLOW:
//  1. resolver picks the concrete model id (aliases, preview, fallback)
//  2. translate builds the chat-completions body
//  3. transport posts it (batch JSON or SSE)
//  4. normalize reassembles tool calls, maps finish reasons, accounts usage
//
// The generator holds no per-request state and never retries; retry and
// model-downgrade policy belong to the caller, which re-invokes with
// FallbackMode set after capacity errors.
package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/monitoring"
	"github.com/genbridge/genbridge/internal/normalize"
	"github.com/genbridge/genbridge/internal/resolver"
	"github.com/genbridge/genbridge/internal/transport"
	"github.com/genbridge/genbridge/internal/translate"
	"github.com/genbridge/genbridge/internal/wire"
)

// Request is one generation call. History and tools follow the canonical
// model; sampling options pass through uninterpreted.
type Request struct {
	History []canonical.Message
	Tools   []canonical.ToolDeclaration

	Model       string
	MaxTokens   int
	Temperature *float64
	TopP        *float64

	// Routing flags, consulted before the request is built.
	PreviewEnabled bool
	FallbackMode   bool
	ClassifierHint string
}

// Generator is the cross-provider generation adapter facade.
type Generator struct {
	client     *transport.Client
	translator *translate.Translator
	normalizer *normalize.Normalizer
	metrics    *monitoring.MetricsCollector
	usageLog   *monitoring.UsageLog
	log        zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithUsageLog attaches a persistent usage log. Writes are best-effort.
func WithUsageLog(u *monitoring.UsageLog) Option {
	return func(g *Generator) { g.usageLog = u }
}

// WithTranslator overrides the request translator.
func WithTranslator(t *translate.Translator) Option {
	return func(g *Generator) { g.translator = t }
}

// New creates a Generator for one provider endpoint.
func New(cfg transport.Config, opts ...Option) *Generator {
	g := &Generator{
		client:  transport.New(cfg),
		log:     log.Logger,
		metrics: monitoring.NewMetricsCollector(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.translator == nil {
		g.translator = translate.New(translate.WithLogger(g.log))
	}
	if g.normalizer == nil {
		g.normalizer = normalize.NewNormalizer(normalize.WithLogger(g.log))
	}
	return g
}

// buildRequest resolves the model and serializes the provider body.
func (g *Generator) buildRequest(req Request) (model string, body []byte, err error) {
	model = resolver.Resolve(req.Model, resolver.Options{
		PreviewEnabled: req.PreviewEnabled,
		FallbackMode:   req.FallbackMode,
		ClassifierHint: req.ClassifierHint,
	})

	wireReq := g.translator.Translate(req.History, req.Tools, translate.GenConfig{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	body, err = json.Marshal(wireReq)
	if err != nil {
		return model, nil, &transport.Error{Code: "marshal_error", Message: err.Error()}
	}
	return model, body, nil
}

// Generate performs a batch generation. The only errors are transport-level
// failures; every provider-side anomaly degrades into the returned response.
func (g *Generator) Generate(ctx context.Context, req Request) (canonical.Response, error) {
	start := time.Now()
	requestID := requestIDFrom(ctx)

	model, body, err := g.buildRequest(req)
	if err != nil {
		return canonical.Response{}, err
	}

	raw, err := g.client.Complete(ctx, body)
	if err != nil {
		g.metrics.RecordRequest(false, time.Since(start))
		return canonical.Response{}, err
	}

	var comp wire.ChatCompletion
	if err := json.Unmarshal(raw, &comp); err != nil {
		g.metrics.RecordRequest(false, time.Since(start))
		return canonical.Response{}, &transport.Error{Code: "decode_error", Message: err.Error()}
	}

	resp := g.normalizer.Batch(comp, model, string(body))
	g.record(requestID, model, false, resp, time.Since(start))
	return resp, nil
}

// GenerateStream performs a streaming generation. The returned Stream is a
// lazy, finite, single-consumer sequence that always terminates with an
// event carrying a finish reason — unless the caller cancels, which aborts
// without a synthetic terminal event.
func (g *Generator) GenerateStream(ctx context.Context, req Request) (*Stream, error) {
	start := time.Now()
	requestID := requestIDFrom(ctx)

	model, body, err := g.buildRequest(req)
	if err != nil {
		return nil, err
	}

	rc, err := g.client.StreamCompletion(ctx, body)
	if err != nil {
		g.metrics.RecordRequest(false, time.Since(start))
		return nil, err
	}
	g.metrics.RecordStream()

	return newStream(ctx, g, rc, g.normalizer.Stream(model, string(body)), streamMeta{
		requestID: requestID,
		model:     model,
		start:     start,
	}), nil
}

// record accounts a finished generation in metrics and the usage log.
func (g *Generator) record(requestID, model string, streamed bool, resp canonical.Response, elapsed time.Duration) {
	g.metrics.RecordRequest(true, elapsed)

	var usage canonical.UsageStats
	if resp.Usage != nil {
		usage = *resp.Usage
	}
	g.metrics.RecordTokens(usage.PromptTokens, usage.CompletionTokens)

	finish := canonical.FinishNone
	if len(resp.Candidates) > 0 {
		finish = resp.Candidates[0].FinishReason
	}
	g.log.Debug().
		Str("request_id", requestID).
		Str("model", resp.ModelVersion).
		Str("finish_reason", string(finish)).
		Int("total_tokens", usage.TotalTokens).
		Dur("duration", elapsed).
		Msg("generation finished")

	if g.usageLog == nil {
		return
	}
	if err := g.usageLog.Record(monitoring.GenerationRecord{
		RequestID:        requestID,
		Model:            model,
		Streamed:         streamed,
		FinishReason:     string(finish),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		Duration:         elapsed,
	}); err != nil {
		g.log.Warn().Err(err).Msg("usage log write failed")
	}
}

func requestIDFrom(ctx context.Context) string {
	if id := monitoring.RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}
