package cmd

import (
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"geosnap/config"
	"geosnap/photo"
	"geosnap/pipeline"
	"geosnap/store"
	"geosnap/utils"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	noHistory  bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "geosnap",
		Short: "Map geotagged photos to KMZ overlays and spreadsheets",
		Long: `GeoSnap reads the capture position, time and camera bearing of a folder of
photos and writes a Google Earth overlay (KMZ) and a photo listing (XLSX).

The listing can be edited and fed back to rebuild the overlay, optionally
with a printable photo-caption document.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides the configuration")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (text or json)")
	cmd.PersistentFlags().BoolVar(&opts.noHistory, "no-history", false, "Do not record this run in the history ledger")

	cmd.AddCommand(newPhotosCmd(opts))
	cmd.AddCommand(newSheetCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newBatchCmd(opts))
	cmd.AddCommand(newHistoryCmd(opts))

	return cmd
}

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg    *config.Config
	log    *logrus.Logger
	ledger *store.Ledger
}

func (o *rootOptions) setup(cmd *cobra.Command, withLedger bool) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	log, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}

	e := &env{cfg: cfg, log: log}
	if withLedger && !o.noHistory {
		ledger, err := store.Open(cfg.Ledger)
		if err != nil {
			// History is best effort; the reports are what matter.
			log.WithField("path", cfg.Ledger).WithError(err).Warn("run history disabled")
		} else {
			e.ledger = ledger
		}
	}
	return e, nil
}

func (e *env) service() *pipeline.Service {
	svc := pipeline.New(e.cfg, e.log, nil)
	if e.ledger != nil {
		svc.WithRecorder(e.ledger)
	}
	return svc
}

func (e *env) close() {
	if e.ledger != nil {
		_ = e.ledger.Close()
	}
}

// printProgress writes one line per progress update.
func printProgress(w io.Writer) photo.ProgressFunc {
	return func(current, total int, message string) {
		fmt.Fprintf(w, "[%d/%d] %s\n", current, total, message)
	}
}
