package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/kotrzina/flower-cart/pkg/browser"
	"github.com/kotrzina/flower-cart/pkg/price"
	"github.com/kotrzina/flower-cart/pkg/promector"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API and the periodic catalog check",
		Action: func(c *cli.Context) error {
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			deps, err := buildDependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.close()

			if deps.conf.CheckInterval > 0 {
				deps.checker.Start(ctx, deps.conf.CheckInterval)
			}

			StartServer(NewRouter(&HandlerRepository{
				checker:   deps.checker,
				promector: promector.NewPromector(ctx, deps.conf, deps.logger),
				storage:   deps.storage,
				profile:   deps.profile,
				config:    deps.conf,
				monitor:   deps.monitor,
				logger:    deps.logger,
			}), deps.conf.Port, cancel, deps.logger)

			return nil
		},
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Run a single catalog check and print the report",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			deps, err := buildDependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.close()

			report, err := deps.checker.Run(ctx)
			if err != nil {
				return err
			}

			if err := printJSON(c, report); err != nil {
				return err
			}

			if !report.OK() {
				return cli.Exit(fmt.Sprintf("catalog check found %d problems", len(report.Problems)), 2)
			}
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse price texts and print normalized amounts",
		ArgsUsage: "TEXT...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "reject a single comma followed by exactly three digits as ambiguous",
			},
			&cli.StringFlag{
				Name:  "decimal",
				Usage: `decimal separator: "," or "." (default: detect)`,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("at least one price text is required", 1)
			}

			separator, err := price.ParseSeparator(c.String("decimal"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			parser := price.Parser{Strict: c.Bool("strict"), Decimal: separator}

			failed := 0
			for _, text := range c.Args().Slice() {
				amount, convention, err := parser.ParseWithConvention(text)
				if err != nil {
					failed++
					fmt.Fprintf(c.App.ErrWriter, "%s\t%s\n", text, errorCode(err))
					continue
				}
				fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", text, price.Format(amount), convention)
			}

			if failed > 0 {
				return cli.Exit(fmt.Sprintf("%d of %d texts could not be parsed", failed, c.NArg()), 1)
			}
			return nil
		},
	}
}

func scenarioCommand() *cli.Command {
	return &cli.Command{
		Name:  "scenario",
		Usage: "Run the browser cart scenario against the shop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "category",
				Usage:    "category name from the profile",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "number of products to add",
				Value: 2,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c.Int("count") < 1 {
				return cli.Exit("count has to be at least 1", 1)
			}

			deps, err := buildDependencies(ctx)
			if err != nil {
				return err
			}
			defer deps.close()

			category, ok := deps.profile.FindCategory(c.String("category"))
			if !ok {
				return cli.Exit(fmt.Sprintf("unknown category %q", c.String("category")), 1)
			}

			session, err := browser.Launch(deps.profile, browser.Options{
				Headless:      deps.conf.Headless,
				ScreenshotDir: deps.conf.ScreenshotDir,
				Discord:       deps.discord,
				Monitor:       deps.monitor,
				Logger:        deps.logger,
			})
			if err != nil {
				return err
			}
			defer session.Close() //nolint: errcheck

			result, err := browser.RunCartScenario(ctx, session, category, c.Int("count"))
			if perr := printJSON(c, result); perr != nil {
				deps.logger.Warnf("could not print scenario result: %v", perr)
			}

			return err
		},
	}
}

func printJSON(c *cli.Context, v interface{}) error {
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// errorCode maps parse errors to codes used by the API and CLI.
func errorCode(err error) string {
	if errors.Is(err, price.ErrAmbiguousGrouping) {
		return "ambiguous_grouping"
	}
	return "invalid_amount"
}
