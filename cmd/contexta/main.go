package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/markdave123-py/contexta/internal/app"
	"github.com/markdave123-py/contexta/internal/config"
	"github.com/markdave123-py/contexta/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta/internal/core/retrieval"
	"github.com/markdave123-py/contexta/internal/models"
	"github.com/markdave123-py/contexta/internal/services"
)

func main() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCLI().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCLI() *cli.App {
	return &cli.App{
		Name:  "contexta",
		Usage: "Document knowledge base with retrieval-augmented answers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "watch",
						Usage: "Also ingest files dropped into this directory",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest a single pdf, txt or markdown file",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Document title (defaults to the file name)"},
					&cli.StringFlag{Name: "source-type", Usage: "pdf, txt or markdown (defaults to the extension)"},
					&cli.StringFlag{Name: "user", Usage: "Owner recorded on the document"},
				},
			},
			{
				Name:      "query",
				Usage:     "Answer a question from the ingested documents",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of passages to ground the answer on",
						Value: retrieval.DefaultTopK,
					},
					&cli.Float64Flag{
						Name:  "lambda",
						Usage: "MMR trade-off between relevance (1) and diversity (0)",
						Value: retrieval.DefaultLambda,
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Restrict the search, as key=value (source_type, user_id, document_id, title, source)",
					},
					&cli.BoolFlag{
						Name:  "retrieve-only",
						Usage: "Print the nearest passages without generating an answer",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Ingest files dropped into a directory",
				ArgsUsage: "<dir>",
				Action:    watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Owner recorded on ingested documents"},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg, slog.Default())
}

func serveCommand(c *cli.Context) error {
	a, err := loadApp(c.Context)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	return a.Run(c.Context, app.RunOptions{Serve: true, WatchDir: c.String("watch")})
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("ingest expects exactly one file, got %d arguments", c.NArg())
	}
	a, err := loadApp(c.Context)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	report, err := a.Documents.Ingest(c.Context, ingestion_engine.IngestRequest{
		FilePath:   c.Args().First(),
		Title:      c.String("title"),
		SourceType: c.String("source-type"),
		UserID:     c.String("user"),
	})
	if err != nil {
		return err
	}
	return printJSON(report)
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("query expects a question")
	}
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}
	a, err := loadApp(c.Context)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	if c.Bool("retrieve-only") {
		cands, err := a.Answers.Retrieve(c.Context, question, c.Int("top-k"), filters)
		if err != nil {
			return err
		}
		return printJSON(cands)
	}

	lambda := c.Float64("lambda")
	answer, err := a.Answers.Answer(c.Context, question, services.AskOptions{
		TopK:    c.Int("top-k"),
		Lambda:  &lambda,
		Filters: filters,
	})
	if err != nil {
		return err
	}
	return printJSON(answer)
}

func watchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("watch expects exactly one directory, got %d arguments", c.NArg())
	}
	a, err := loadApp(c.Context)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.Close()

	return a.Run(c.Context, app.RunOptions{WatchDir: c.Args().First(), WatchUserID: c.String("user")})
}

// parseFilters turns key=value pairs into search filters.
func parseFilters(pairs []string) (models.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := models.Filters{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("filter %q is not key=value", p)
		}
		filters[k] = strings.TrimSpace(v)
	}
	if unknown := filters.UnknownKeys(); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown filter keys %v", unknown)
	}
	return filters, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
