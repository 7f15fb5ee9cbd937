package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	clisession "github.com/kirillkom/student-tax-advisor/internal/adapters/cli"
	mcpadapter "github.com/kirillkom/student-tax-advisor/internal/adapters/mcp"
	"github.com/kirillkom/student-tax-advisor/internal/bootstrap"
	"github.com/kirillkom/student-tax-advisor/internal/config"
	"github.com/kirillkom/student-tax-advisor/internal/core/domain"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/manifest"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/profile/jsonfile"
	"github.com/kirillkom/student-tax-advisor/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/student-tax-advisor/internal/observability/logging"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "advisor",
		Usage:   "Tax guidance for international students from official IRS publications",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Collect a student profile and answer questions interactively",
				Action: chatCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "profile",
						Usage: "Profile id to load and save",
						Value: jsonfile.DefaultID,
					},
					&cli.BoolFlag{
						Name:  "no-color",
						Usage: "Disable colored output",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Extract, chunk and embed the documents listed in the corpus manifest",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "manifest",
						Aliases: []string{"m"},
						Usage:   "Path to the corpus manifest (defaults to MANIFEST_PATH)",
					},
					&cli.BoolFlag{
						Name:  "verify-only",
						Usage: "Only compare the manifest with the files on disk",
					},
				},
			},
			{
				Name:   "eval",
				Usage:  "Score retrieval against a ground-truth question set",
				Action: evalCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "ground-truth",
						Aliases:  []string{"g"},
						Usage:    "Path to a JSON array of {question, expected_keywords}",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "xlsx",
						Usage: "Also write the report to this spreadsheet",
					},
					&cli.BoolFlag{
						Name:  "generate",
						Usage: "Generate answers and score relevance and faithfulness",
					},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve the search and ask tools over MCP stdio",
				Action: mcpCommand,
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := c.String("log-level")
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "advisor", level))
	return nil
}

func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func chatCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	profileID := c.String("profile")
	var stored *domain.StudentProfile
	stored, err = app.Profiles.GetProfile(ctx, profileID)
	if err != nil && !domain.IsKind(err, domain.ErrProfileNotFound) {
		return fmt.Errorf("load profile: %w", err)
	}

	colorize := !color.NoColor && !c.Bool("no-color")
	session := clisession.NewSession(os.Stdin, os.Stdout, app.Advisor, app.Feedback, colorize)
	profile, err := session.Intake(stored)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	profile.ID = profileID
	if err := app.Profiles.SaveProfile(ctx, profile); err != nil {
		slog.Warn("profile_save_failed", "profile_id", profileID, "error", err)
	}
	return session.Loop(ctx, profile)
}

func ingestCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	cfg := config.Load()
	manifestPath := c.String("manifest")
	if manifestPath == "" {
		manifestPath = cfg.ManifestPath
	}
	docs, err := manifest.Load(manifestPath)
	if err != nil {
		return err
	}

	ingest, err := bootstrap.NewIngest(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer ingest.Close()

	if c.Bool("verify-only") {
		missing, unlisted, err := ingest.UseCase.Verify(ctx, docs)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, domain.IngestReport{
			Documents:     len(docs),
			MissingFiles:  missing,
			UnlistedFiles: unlisted,
		})
	}

	report, err := ingest.UseCase.Ingest(ctx, docs)
	if err != nil {
		return err
	}
	slog.Info("corpus_ingested", "chunks", report.Chunks, "path", ingest.Corpus.Path())
	return printJSON(c.App.Writer, report)
}

func evalCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	cases, err := loadGroundTruth(c.String("ground-truth"))
	if err != nil {
		return err
	}

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	report, err := app.Evaluator(c.Bool("generate")).Run(ctx, cases)
	if err != nil {
		return err
	}
	if path := c.String("xlsx"); path != "" {
		if err := xlsx.SaveAs(path, *report); err != nil {
			return fmt.Errorf("write xlsx report: %w", err)
		}
	}
	return printJSON(c.App.Writer, report)
}

func mcpCommand(c *cli.Context) error {
	ctx, stop := signalContext(c)
	defer stop()

	cfg := config.Load()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: slog.Default()})
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	return mcpadapter.NewServer(app.Advisor, app.Advisor, app.Profiles, cfg.RAGTopK).ServeStdio(version)
}

func loadGroundTruth(path string) ([]domain.GroundTruthCase, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var cases []domain.GroundTruthCase
	if err := json.Unmarshal(raw, &cases); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode ground truth", err)
	}
	return cases, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
