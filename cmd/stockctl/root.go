package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockanalysis/internal/app"
	"stockanalysis/internal/config"
	"stockanalysis/internal/csvclean"
	"stockanalysis/internal/ingest"
	"stockanalysis/internal/logging"
	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
	"stockanalysis/internal/stocks"
)

// cli holds what every subcommand needs once flags are parsed.
type cli struct {
	cfg config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Operator tasks for the stock analysis API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Level = "debug"
			}
			c.cfg = cfg
			c.log = logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Console: cmd.ErrOrStderr()})
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "config file (.json or .yaml); defaults to $CONFIG_FILE")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")

	root.AddCommand(c.cleanCmd(), c.initDBCmd(), c.ingestCmd(), c.fetchCmd())
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) cleanCmd() *cobra.Command {
	var raw, out string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Normalize raw CSV exports into the served data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cl := &csvclean.Cleaner{RawDir: c.cfg.Data.RawDir, CleanDir: c.cfg.Server.DataDir, Log: c.log}
			if raw != "" {
				cl.RawDir = raw
			}
			if out != "" {
				cl.CleanDir = out
			}
			if cl.CleanDir == "" {
				return errors.New("no output directory: set DATA_DIR or pass --out")
			}
			rep, err := cl.Run(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVar(&raw, "raw", "", "raw CSV directory (default from config)")
	cmd.Flags().StringVar(&out, "out", "", "clean CSV directory (default DATA_DIR, the directory the API serves)")
	return cmd
}

func (c *cli) initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the companies and daily_prices tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is not set")
			}
			st, err := app.OpenStore(cmd.Context(), c.cfg)
			if err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			defer st.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database tables created")
			return nil
		},
	}
}

func (c *cli) ingestCmd() *cobra.Command {
	var symbols, period string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch daily bars once and store them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.cfg
			if symbols != "" {
				cfg.Ingest.Symbols = strings.Split(symbols, ",")
			}
			if period != "" {
				cfg.Ingest.Period = period
			}
			cfg.Ingest.Enabled = true
			if err := cfg.Validate(); err != nil {
				return err
			}

			src, err := app.NewSource(cfg, c.log)
			if err != nil {
				return err
			}
			st, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			job := &ingest.Job{
				Source:  src,
				Store:   st,
				Symbols: cfg.Ingest.Symbols,
				Period:  series.MustPeriod(cfg.Ingest.Period),
				Log:     c.log,
			}
			res, err := job.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&symbols, "symbols", "", "comma-separated symbols (default from config)")
	cmd.Flags().StringVar(&period, "period", "", "lookback period (default from config)")
	return cmd
}

func (c *cli) fetchCmd() *cobra.Command {
	var period string
	var latest bool
	cmd := &cobra.Command{
		Use:   "fetch SYMBOL",
		Short: "Print normalized bars or the latest-price summary for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Validate(); err != nil {
				return err
			}
			if _, err := source.ValidateSymbol(args[0]); err != nil {
				return err
			}
			if _, err := series.ParsePeriod(period); err != nil {
				return err
			}
			src, err := app.NewSource(c.cfg, c.log)
			if err != nil {
				return err
			}
			svc := stocks.NewService(src, c.log)

			if latest {
				sum, err := svc.Latest(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			bars, err := svc.Historical(cmd.Context(), args[0], period)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bars)
		},
	}
	cmd.Flags().StringVar(&period, "period", "1mo", "lookback period (1d 5d 1mo 3mo 6mo 1y 2y 5y 10y ytd max)")
	cmd.Flags().BoolVar(&latest, "latest", false, "print price, change and sparkline instead of bars")
	return cmd
}
