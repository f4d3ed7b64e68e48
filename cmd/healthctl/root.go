package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
)

type globalOptions struct {
	samples  string
	subject  string
	asOf     string
	lang     string
	output   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "healthctl",
		Short: "Ask questions about health metrics from the terminal",
		Long: `healthctl runs the health query pipeline locally.

Data comes from a JSON sample export (--samples) or, when no file is given,
from the Postgres metric store named by DATABASE_URL.

Commands:
  ask        Answer a free-form question
  trend      Daily values and change rate for one metric
  compare    Current window against the previous one
  insights   Ranked insights across all metrics`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.samples, "samples", "", "JSON sample export to load instead of DATABASE_URL")
	flags.StringVar(&opts.subject, "subject", "", "Subject whose data is read (default: STORE_SUBJECT)")
	flags.StringVar(&opts.asOf, "as-of", "", "Anchor date in YYYY-MM-DD (default: today)")
	flags.StringVar(&opts.lang, "lang", "zh", "Response language (zh or en)")
	flags.StringVarP(&opts.output, "output", "o", "json", "Output format (json or yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level for pipeline diagnostics")

	root.AddCommand(
		newAskCmd(opts),
		newTrendCmd(opts),
		newCompareCmd(opts),
		newInsightsCmd(opts),
	)
	return root
}

func (o *globalOptions) anchor() (time.Time, error) {
	raw := strings.TrimSpace(o.asOf)
	if raw == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation("2006-01-02", raw, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: use YYYY-MM-DD", raw)
	}
	// End of day so the whole anchor day falls inside the window.
	return day.Add(24*time.Hour - time.Second), nil
}

func (o *globalOptions) print(w io.Writer, value any) error {
	switch strings.ToLower(o.output) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(value); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(value)
	default:
		return fmt.Errorf("unsupported output format %q (use json or yaml)", o.output)
	}
}

func addDaysFlag(cmd *cobra.Command, days *int) {
	cmd.Flags().IntVarP(days, "days", "d", intent.DefaultDays, "Window length in days")
}

func validDays(days int) error {
	if days < 1 || days > 365 {
		return fmt.Errorf("--days must be between 1 and 365")
	}
	return nil
}
