// genbridge CLI — one-shot generation driver for the adapter library.
//
// Usage:
//
//	genbridge -config config.yaml -prompt "..." [-model alias] [-stream] [-fallback]
//
// The CLI is a thin excluded-layer driver: it loads configuration, runs one
// generation, and prints text (deltas, when streaming) to stdout. Tool calls
// in the response are printed as structured log lines; dispatching them is a
// caller concern the CLI does not implement.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/genbridge/genbridge/internal/canonical"
	"github.com/genbridge/genbridge/internal/config"
	"github.com/genbridge/genbridge/internal/generator"
	"github.com/genbridge/genbridge/internal/monitoring"
	"github.com/genbridge/genbridge/internal/transport"
)

// loadEnvFiles loads .env from standard locations.
func loadEnvFiles() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		_ = godotenv.Load()
		return
	}
	configEnv := filepath.Join(homeDir, ".config", "genbridge", ".env")
	if _, err := os.Stat(configEnv); err == nil {
		_ = godotenv.Load(configEnv)
	}
	// Local .env can override.
	_ = godotenv.Load()
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to YAML config")
		prompt     = flag.String("prompt", "", "user prompt (required)")
		system     = flag.String("system", "", "optional system prompt")
		model      = flag.String("model", "", "model or alias, overrides config")
		stream     = flag.Bool("stream", true, "stream the response")
		fallback   = flag.Bool("fallback", false, "force fallback-mode model resolution")
		maxTokens  = flag.Int("max-tokens", 0, "max completion tokens (0 = provider default)")
	)
	loadEnvFiles()
	flag.Parse()

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "usage: genbridge -prompt \"...\" [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Console output when attached to a terminal, JSON otherwise.
	logCfg := cfg.Logging
	if logCfg.Format == "" && term.IsTerminal(int(os.Stderr.Fd())) {
		logCfg.Format = "console"
	}
	if logCfg.Output == "" {
		logCfg.Output = "stderr"
	}
	monitoring.Global(logCfg)

	gen, cleanup, err := buildGenerator(cfg)
	if err != nil {
		log.Error().Err(err).Msg("setup failed")
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := generator.Request{
		History:        buildHistory(*system, *prompt),
		Model:          pick(*model, cfg.Provider.Model),
		MaxTokens:      *maxTokens,
		PreviewEnabled: cfg.Routing.PreviewEnabled,
		ClassifierHint: cfg.Routing.ClassifierHint,
		FallbackMode:   *fallback,
	}

	if *stream {
		err = runStreaming(ctx, gen, req)
	} else {
		err = runBatch(ctx, gen, req)
	}
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		os.Exit(1)
	}
}

func buildGenerator(cfg *config.Config) (*generator.Generator, func(), error) {
	tc := transport.Config{
		Endpoint:     cfg.Provider.Endpoint,
		APIKey:       cfg.Provider.APIKey,
		Organization: cfg.Provider.Organization,
		Project:      cfg.Provider.Project,
		Timeout:      cfg.Provider.Timeout,
	}
	if cfg.Provider.AWS != nil {
		rt, err := transport.NewSigV4Transport(cfg.Provider.AWS.Service, cfg.Provider.AWS.Region, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("sigv4 transport: %w", err)
		}
		tc.HTTPClient = &http.Client{Transport: rt}
	}

	opts := []generator.Option{generator.WithLogger(log.Logger)}
	cleanup := func() {}
	if cfg.UsageLog.Enabled {
		ulog, err := monitoring.OpenUsageLog(cfg.UsageLog.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("usage log: %w", err)
		}
		opts = append(opts, generator.WithUsageLog(ulog))
		cleanup = func() { _ = ulog.Close() }
	}
	return generator.New(tc, opts...), cleanup, nil
}

func buildHistory(system, prompt string) []canonical.Message {
	var history []canonical.Message
	if system != "" {
		history = append(history, canonical.Message{
			Role:  canonical.RoleSystem,
			Parts: []canonical.ContentPart{canonical.TextPart{Text: system}},
		})
	}
	return append(history, canonical.Message{
		Role:  canonical.RoleUser,
		Parts: []canonical.ContentPart{canonical.TextPart{Text: prompt}},
	})
}

func runStreaming(ctx context.Context, gen *generator.Generator, req generator.Request) error {
	s, err := gen.GenerateStream(ctx, req)
	if err != nil {
		return err
	}
	defer s.Close()

	for s.Next() {
		ev := s.Event()
		fmt.Print(ev.Text())
		printCalls(ev.FunctionCalls())
	}
	fmt.Println()
	return s.Err()
}

func runBatch(ctx context.Context, gen *generator.Generator, req generator.Request) error {
	resp, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println(resp.Text())
	printCalls(resp.FunctionCalls())
	if resp.Usage != nil {
		log.Info().
			Int("prompt_tokens", resp.Usage.PromptTokens).
			Int("completion_tokens", resp.Usage.CompletionTokens).
			Str("model", resp.ModelVersion).
			Msg("usage")
	}
	return nil
}

func printCalls(calls []canonical.FunctionCallPart) {
	for _, c := range calls {
		args, _ := json.Marshal(c.Args)
		log.Info().
			Str("id", c.ID).
			Str("tool", c.Name).
			RawJSON("args", args).
			Msg("model requested tool call")
	}
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
