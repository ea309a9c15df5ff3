package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/urfave/cli/v3"
	"golang.org/x/time/rate"

	"github.com/kuichiro/combogen/internal/command"
	"github.com/kuichiro/combogen/internal/config"
	"github.com/kuichiro/combogen/internal/corpus"
	"github.com/kuichiro/combogen/internal/duration"
	"github.com/kuichiro/combogen/internal/ledger"
	"github.com/kuichiro/combogen/internal/logger"
	"github.com/kuichiro/combogen/internal/model"
	"github.com/kuichiro/combogen/internal/repository/sqlite"
	"github.com/kuichiro/combogen/internal/scan"
	"github.com/kuichiro/combogen/internal/service"
	storage "github.com/kuichiro/combogen/internal/storage/minio"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
)

// app holds everything an invocation needs, wired once per run.
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	conn       *sqlite.Connection
	ledger     *ledger.Ledger
	extraction *service.Extraction
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	conn, err := sqlite.NewConnection(ctx, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}

	l, err := ledger.New(ctx, sqlite.NewLedgerRepository(conn), log, cfg.OperatorID)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}

	registry := command.NewRegistry()
	c := corpus.New(cfg.Corpus.RawDir, cfg.Corpus.DeliveredDir, log)
	coordinator := scan.NewCoordinator(c, registry, cfg.Scan.Workers, log)

	var archive model.Storage
	if cfg.Archive.Enabled {
		minioClient, err := minio.New(cfg.Archive.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.Archive.AccessKey, cfg.Archive.SecretKey, ""),
			Secure: cfg.Archive.UseSSL,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create minio client: %w", err)
		}
		archive, err = storage.NewClient(ctx, minioClient, cfg.Archive.Bucket)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize archive client: %w", err)
		}
	}

	var limiter *rate.Limiter
	if cfg.Scan.DeliveryPause > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Scan.DeliveryPause), 1)
	}

	return &app{
		cfg:        cfg,
		logger:     log,
		conn:       conn,
		ledger:     l,
		extraction: service.NewExtraction(l, registry, c, coordinator, archive, limiter, log),
	}, nil
}

func (a *app) close() {
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close ledger database", "error", err)
	}
}

// run wraps an action with app setup and teardown.
func run(fn func(ctx context.Context, cmd *cli.Command, a *app) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a)
	}
}

func userFlag() *cli.IntFlag {
	return &cli.IntFlag{Name: "user", Usage: "numeric user id", Required: true}
}

func durationFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "duration",
		Usage:    `grant duration, e.g. "30days 12hours"`,
		Required: true,
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "combogen",
		Usage:   "keyword extraction over line-oriented credential corpora",
		Version: fmt.Sprintf("%s (built %s)", buildVersion, buildDate),
		Commands: []*cli.Command{
			keyCommand(),
			extractCommand(),
			historyCommand(),
			availableCommand(),
			auditCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func keyCommand() *cli.Command {
	return &cli.Command{
		Name:  "key",
		Usage: "manage access codes and grants",
		Commands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "generate a redeemable access code",
				Flags: []cli.Flag{durationFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					d, err := duration.Parse(cmd.String("duration"))
					if err != nil {
						return err
					}
					code, expiresAt, err := a.ledger.Issue(ctx, d)
					if err != nil {
						return err
					}
					fmt.Printf("code: %s\nexpires: %s\n", code, expiresAt.Format("2006-01-02 15:04:05"))
					return nil
				}),
			},
			{
				Name:  "redeem",
				Usage: "redeem a code for a user",
				Flags: []cli.Flag{
					userFlag(),
					&cli.StringFlag{Name: "code", Usage: "access code", Required: true},
				},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					result, err := a.ledger.Redeem(ctx, cmd.String("code"), cmd.Int("user"))
					if err != nil {
						return err
					}
					switch result.Status {
					case model.RedeemSuccess:
						fmt.Printf("redeemed, grant active until %s\n", result.ExpiresAt.Format("2006-01-02 15:04:05"))
					case model.RedeemAlreadyUsed:
						fmt.Println("code already used")
					default:
						fmt.Println("code invalid or expired")
					}
					return nil
				}),
			},
			{
				Name:  "extend",
				Usage: "extend a user's grant",
				Flags: []cli.Flag{userFlag(), durationFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					d, err := duration.Parse(cmd.String("duration"))
					if err != nil {
						return err
					}
					expiresAt, err := a.ledger.Extend(ctx, cmd.Int("user"), d)
					if err != nil {
						return err
					}
					fmt.Printf("grant now expires %s\n", expiresAt.Format("2006-01-02 15:04:05"))
					return nil
				}),
			},
			{
				Name:  "deduct",
				Usage: "shorten a user's grant",
				Flags: []cli.Flag{userFlag(), durationFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					d, err := duration.Parse(cmd.String("duration"))
					if err != nil {
						return err
					}
					expiresAt, err := a.ledger.Deduct(ctx, cmd.Int("user"), d)
					if err != nil {
						return err
					}
					fmt.Printf("grant now expires %s\n", expiresAt.Format("2006-01-02 15:04:05"))
					return nil
				}),
			},
			{
				Name:  "pause",
				Usage: "suspend a user's grant",
				Flags: []cli.Flag{userFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					return a.ledger.Pause(ctx, cmd.Int("user"))
				}),
			},
			{
				Name:  "resume",
				Usage: "lift a pause",
				Flags: []cli.Flag{userFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					if err := a.ledger.Resume(ctx, cmd.Int("user")); err != nil {
						if errors.Is(err, model.ErrNotFound) {
							return fmt.Errorf("user %d is not paused", cmd.Int("user"))
						}
						return err
					}
					return nil
				}),
			},
			{
				Name:  "revoke",
				Usage: "remove a user's grant and history",
				Flags: []cli.Flag{userFlag()},
				Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
					if err := a.ledger.Revoke(ctx, cmd.Int("user")); err != nil {
						if errors.Is(err, model.ErrNotFound) {
							return fmt.Errorf("user %d has no grant", cmd.Int("user"))
						}
						return err
					}
					return nil
				}),
			},
			{
				Name:  "remaining",
				Usage: "show time left on a user's grant",
				Flags: []cli.Flag{userFlag()},
				Action: run(func(_ context.Context, cmd *cli.Command, a *app) error {
					remaining, err := a.ledger.Remaining(cmd.Int("user"))
					if err != nil {
						return err
					}
					fmt.Printf("%d days %d hours %d minutes %d seconds\n",
						remaining.Days, remaining.Hours, remaining.Minutes, remaining.Seconds)
					return nil
				}),
			},
			{
				Name:  "users",
				Usage: "list active grants",
				Action: run(func(_ context.Context, _ *cli.Command, a *app) error {
					grants := a.ledger.ActiveGrants()
					if len(grants) == 0 {
						fmt.Println("no active grants")
						return nil
					}
					for _, g := range grants {
						state := "active"
						if g.Paused {
							state = "paused"
						}
						fmt.Printf("%d\t%s\t%s\n", g.UserID, g.ExpiresAt.Format("2006-01-02 15:04:05"), state)
					}
					return nil
				}),
			},
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "scan the corpus for keyword matches and deliver a result file",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "name", Usage: "display name recorded in history"},
			&cli.StringFlag{Name: "keyword", Usage: "case-insensitive keyword", Required: true},
			&cli.IntFlag{Name: "quota", Usage: "maximum number of records", Required: true},
			&cli.StringFlag{Name: "output", Usage: "delivered file name", Value: "Results.txt"},
		},
		Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
			summary, _, err := a.extraction.Generate(ctx, service.GenerateParams{
				RequesterID: cmd.Int("user"),
				DisplayName: cmd.String("name"),
				Keyword:     cmd.String("keyword"),
				Quota:       int(cmd.Int("quota")),
				OutputName:  cmd.String("output"),
			})
			if err != nil {
				if errors.Is(err, model.ErrSuperseded) {
					fmt.Println("superseded by a newer command, nothing delivered")
					return nil
				}
				return err
			}
			fmt.Printf("delivered %s with %d lines\n", summary.Name, summary.TotalLines)
			return nil
		}),
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "show a user's generation counters",
		Flags: []cli.Flag{userFlag()},
		Action: run(func(_ context.Context, cmd *cli.Command, a *app) error {
			stats, err := a.ledger.Stats(cmd.Int("user"))
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					fmt.Println("no history")
					return nil
				}
				return err
			}
			fmt.Printf("%s: %d generations, %d lines\n", stats.DisplayName, stats.Generations, stats.TotalLines)
			return nil
		}),
	}
}

func availableCommand() *cli.Command {
	return &cli.Command{
		Name:  "available",
		Usage: "count undelivered keyword matches in the raw corpus",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "keyword", Usage: "case-insensitive keyword", Required: true},
		},
		Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
			available, err := a.extraction.CountAvailable(ctx, cmd.Int("user"), cmd.String("keyword"))
			if err != nil {
				return err
			}
			fmt.Printf("%d lines available for %q\n", available, cmd.String("keyword"))
			return nil
		}),
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "validate identifiers of a delivered file",
		Flags: []cli.Flag{
			userFlag(),
			&cli.StringFlag{Name: "file", Usage: "delivered file name", Required: true},
		},
		Action: run(func(ctx context.Context, cmd *cli.Command, a *app) error {
			report, err := a.extraction.AuditDelivered(ctx, cmd.Int("user"), cmd.String("file"))
			if err != nil {
				return err
			}
			fmt.Printf("valid: %d\ninvalid: %d\n", report.Valid, report.Invalid)
			for _, sample := range report.InvalidSamples {
				fmt.Printf("  %s\n", sample)
			}
			return nil
		}),
	}
}
