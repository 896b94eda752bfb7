package cmd

import (
	"github.com/atopx/mockphone"
	"github.com/atopx/mockphone/internal/config"
	"github.com/atopx/mockphone/internal/logging"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// RootCmd is the mockphone command. Flags override MOCKPHONE_* environment
// variables, which override the config file.
func RootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:          "mockphone",
		Short:        "mockphone bulk-loads random mobile phone numbers into a SQLite table.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			if err := logging.Configure(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := mockphone.Run(ctx, cfg.Options())
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), report, cfg.JSON)
		},
	}

	flags := cmd.Flags()
	flags.StringP(config.FileKey, "c", "", "yaml config file")
	flags.StringP("output", "o", config.DefaultOutput, "SQLite database file to load into")
	flags.Int64P("total", "n", config.DefaultTotal, "number of phone numbers to generate")
	flags.IntP("workers", "w", 0, "number of producers (default number of CPUs)")
	flags.String("engine", string(mockphone.EngineSQLite), "storage engine: sqlite or raw")
	flags.Uint64("seed", 0, "random seed (default random)")
	flags.Bool("json", false, "print the run report as JSON")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format: text or json")

	config.SetDefaults(v)
	bindFlags(v, flags)
	return cmd
}

// bindFlags binds every flag to the viper key of the same name,
// with dashes becoming dots for nested settings.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		must(v.BindPFlag(strings.ReplaceAll(f.Name, "-", "."), f))
	})
}

func printReport(w io.Writer, report *mockphone.Report, asJSON bool) error {
	if !asJSON {
		_, err := io.WriteString(w, report.String()+"\n")
		return err
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Execute runs RootCmd and exits non-zero on failure.
func Execute() {
	if err := RootCmd().Execute(); err != nil {
		log.WithError(err).Error("mockphone failed")
		os.Exit(1)
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
