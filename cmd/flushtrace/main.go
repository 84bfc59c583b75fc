package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/delaneyj/tickwatch/cmd/flushtrace/scenario"
	"github.com/delaneyj/tickwatch/cmd/flushtrace/templates"
)

const (
	scenarioKey = "scenario"
	formatKey   = "format"
	limitKey    = "limit"
	devKey      = "dev"
	logLevelKey = "log-level"
)

func main() {
	cmd := &cli.Command{
		Name:  "flushtrace",
		Usage: "Replay scheduler scenarios and print what ran",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a YAML scenario through a scheduler",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     scenarioKey,
						Usage:    "Path to the scenario file",
						Required: true,
					},
					&cli.StringFlag{
						Name:  formatKey,
						Usage: "Output format: table or markdown",
						Value: "table",
					},
					&cli.IntFlag{
						Name:  limitKey,
						Usage: "Recursion limit override, 0 keeps the scenario's",
					},
					&cli.BoolFlag{
						Name:  devKey,
						Usage: "Log misuse warnings at warn level",
					},
					&cli.StringFlag{
						Name:  logLevelKey,
						Usage: "Minimum log level",
						Value: "warn",
					},
				},
				Action: run,
			},
		},
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level, err := zerolog.ParseLevel(cmd.String(logLevelKey))
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()

	sc, err := scenario.Load(cmd.String(scenarioKey))
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := scenario.Run(sc,
		scenario.WithLogger(log),
		scenario.WithDev(cmd.Bool(devKey)),
		scenario.WithLimit(int(cmd.Int(limitKey))),
	)
	if err != nil {
		return err
	}
	log.Info().
		Str("run", res.RunID.String()).
		Dur("took", time.Since(start)).
		Msg("scenario replayed")

	switch format := cmd.String(formatKey); format {
	case "table":
		renderTable(os.Stdout, res)
	case "markdown":
		templates.WriteMarkdown(os.Stdout, res)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}

func renderTable(w io.Writer, res *scenario.Result) {
	fmt.Fprintf(w, "%s (run %s, recursion limit %d)\n", res.Scenario, res.RunID, res.Limit)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"step", "pass", "event", "job"})
	for i, step := range res.Steps {
		table.Append([]string{
			strconv.Itoa(i + 1),
			humanize.Ordinal(step.Pass),
			step.Kind.String(),
			step.Job,
		})
	}
	table.Render()

	st := res.Stats
	summary := tablewriter.NewWriter(w)
	summary.SetHeader([]string{"flushes", "passes", "jobs", "pre", "post", "skipped", "errors"})
	summary.Append([]string{
		humanize.Comma(int64(st.Flushes)),
		humanize.Comma(int64(st.Passes)),
		humanize.Comma(int64(st.Jobs)),
		humanize.Comma(int64(st.PreCbs)),
		humanize.Comma(int64(st.PostCbs)),
		humanize.Comma(int64(st.Skipped)),
		humanize.Comma(int64(st.Errors)),
	})
	summary.Render()
}
