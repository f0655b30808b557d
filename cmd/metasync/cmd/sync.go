package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/agentstation/utc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meTasking/sync/internal/config"
	"github.com/meTasking/sync/internal/output"
	"github.com/meTasking/sync/internal/providers/jira"
	"github.com/meTasking/sync/internal/providers/jsonl"
	"github.com/meTasking/sync/internal/providers/metasking"
	"github.com/meTasking/sync/internal/providers/sqlite"
	"github.com/meTasking/sync/internal/providers/toggl"
	"github.com/meTasking/sync/pkg/errors"
	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/logging"
	"github.com/meTasking/sync/pkg/provider"
	"github.com/meTasking/sync/pkg/reconcile"
)

var (
	flagFrom     string
	flagTo       string
	flagAccuracy string
	flagSince    string
	flagUntil    string
	flagDryRun   bool
	flagNoDelete bool

	flagTogglSplitName   bool
	flagJSONNoInput      bool
	flagJSONNoOutput     bool
	flagJSONOnlyModified bool
)

// sinceUntilLayouts are the accepted flag formats, most specific first.
var sinceUntilLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the destination platform against the source",
	Long: `Sync dumps all work intervals from the source and destination
backends within the requested time window, matches them by rounded
start and end time, and applies the resulting creates, updates, and
deletes to the destination. The source is never modified.

The report of everything that changed is printed to stderr so that the
JSON line-stream backend can keep stdout for data.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVar(&flagFrom, "from", "", "source backend (metasking, toggl, jira, jsonl, sqlite)")
	syncCmd.Flags().StringVar(&flagTo, "to", "", "destination backend")
	syncCmd.Flags().StringVar(&flagAccuracy, "accuracy", interval.AccuracyMinute.String(),
		"matching accuracy: minute, second, or microsecond")
	syncCmd.Flags().StringVar(&flagSince, "since", "", "only sync data since this time (RFC3339 or YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&flagUntil, "until", "", "only sync data until this time (RFC3339 or YYYY-MM-DD)")
	syncCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "compute changes but do not apply them")
	syncCmd.Flags().BoolVar(&flagNoDelete, "no-delete", false,
		"keep destination records that have no source counterpart")

	syncCmd.Flags().String("metasking-server", "", "meTasking server address")
	syncCmd.Flags().String("toggl-token", "", "Toggl API token")
	syncCmd.Flags().String("toggl-workspace-id", "", "Toggl workspace id")
	syncCmd.Flags().BoolVar(&flagTogglSplitName, "toggl-split-name", false,
		"split the Toggl description into name and description")
	syncCmd.Flags().String("jira-server", "", "Jira server address")
	syncCmd.Flags().String("jira-username", "", "Jira username (email)")
	syncCmd.Flags().String("jira-token", "", "Jira API token")
	syncCmd.Flags().String("sqlite-path", "", "SQLite database path")
	syncCmd.Flags().BoolVar(&flagJSONNoInput, "json-no-input", false,
		"do not read records from standard input")
	syncCmd.Flags().BoolVar(&flagJSONNoOutput, "json-no-output", false,
		"do not write records to standard output")
	syncCmd.Flags().BoolVar(&flagJSONOnlyModified, "json-only-modifications", false,
		"write only modified records to standard output")

	bindProviderFlags(syncCmd)

	_ = syncCmd.MarkFlagRequired("from")
	_ = syncCmd.MarkFlagRequired("to")
}

// bindProviderFlags makes every provider setting reachable through
// Viper so config files and environment variables work too.
func bindProviderFlags(cmd *cobra.Command) {
	for _, key := range []string{
		"metasking-server",
		"toggl-token", "toggl-workspace-id",
		"jira-server", "jira-username", "jira-token",
		"sqlite-path",
	} {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(key)); err != nil {
			panic(fmt.Sprintf("Failed to bind %s flag: %v", key, err))
		}
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	log := logging.Default()
	ctx := cmd.Context()

	accuracy, err := interval.ParseAccuracy(flagAccuracy)
	if err != nil {
		return err
	}

	opts, err := parseWindow()
	if err != nil {
		return err
	}
	opts.DryRun = flagDryRun
	opts.AllowDelete = !flagNoDelete

	if opts.Since == nil && opts.Until == nil {
		log.Warn().Msg("no --since/--until given; all comparisons happen in memory, " +
			"a bounded window keeps the run fast")
	}

	if flagFrom == flagTo {
		return errors.NewValidationError("to", flagTo,
			"source and destination backend must differ")
	}

	source, err := newProvider(provider.ID(flagFrom), opts)
	if err != nil {
		return err
	}
	defer closeProvider(source)
	destination, err := newProvider(provider.ID(flagTo), opts)
	if err != nil {
		return err
	}
	defer closeProvider(destination)

	if err := source.Open(ctx); err != nil {
		return err
	}
	if err := destination.Open(ctx); err != nil {
		return err
	}

	reconciler, err := reconcile.New(accuracy, reconcile.WithLogger(*log))
	if err != nil {
		return err
	}
	if _, err := reconciler.Run(source, destination); err != nil {
		return err
	}

	return applyAndReport(ctx, source, destination, os.Stderr, output.DetectFormat(flagOutput))
}

// applyAndReport applies the queued changes and prints the destination
// report. The report is printed even when an apply fails; a partially
// applied run is when the operator needs it most.
func applyAndReport(ctx context.Context, source, destination provider.Provider, w io.Writer, format output.Format) error {
	applyErr := destination.Apply(ctx)
	// The source holds no changes, but stream-backed sources write
	// their output on apply.
	if err := source.Apply(ctx); err != nil && applyErr == nil {
		applyErr = err
	}

	if err := output.WriteReport(w, format, destination.Report()); err != nil && applyErr == nil {
		applyErr = err
	}
	return applyErr
}

// parseWindow converts the since/until flags into provider options.
func parseWindow() (provider.Options, error) {
	var opts provider.Options
	if flagSince != "" {
		t, err := parseFlagTime("since", flagSince)
		if err != nil {
			return opts, err
		}
		opts.Since = &t
	}
	if flagUntil != "" {
		t, err := parseFlagTime("until", flagUntil)
		if err != nil {
			return opts, err
		}
		opts.Until = &t
	}
	return opts, opts.Validate()
}

func parseFlagTime(field, value string) (utc.Time, error) {
	for _, layout := range sinceUntilLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return interval.Time(t), nil
		}
	}
	return utc.Time{}, errors.NewValidationError(field, value, "unrecognized time format")
}

// newProvider constructs the backend for an id from flags, config, and
// environment.
func newProvider(id provider.ID, opts provider.Options) (provider.Provider, error) {
	switch id {
	case provider.MeTaskingID:
		server := config.GetString("metasking-server")
		if server == "" {
			server = "http://localhost:8000"
		}
		return metasking.New(opts, metasking.Config{Server: server})

	case provider.TogglID:
		return toggl.New(opts, toggl.Config{
			Token:       config.GetString("toggl-token"),
			WorkspaceID: config.GetString("toggl-workspace-id"),
			SplitName:   flagTogglSplitName,
		})

	case provider.JiraID:
		server := config.GetString("jira-server")
		if server == "" {
			server = "https://atlassian.net"
		}
		return jira.New(opts, jira.Config{
			Server:   server,
			Username: config.GetString("jira-username"),
			Token:    config.GetString("jira-token"),
		})

	case provider.JSONLID:
		var (
			input io.Reader = os.Stdin
			out   io.Writer = os.Stdout
		)
		if flagJSONNoInput {
			input = nil
		}
		if flagJSONNoOutput {
			out = nil
		}
		return jsonl.New(opts, jsonl.Config{
			Input:             input,
			Output:            out,
			OnlyModifications: flagJSONOnlyModified,
		})

	case provider.SQLiteID:
		return sqlite.New(opts, sqlite.Config{Path: config.GetString("sqlite-path")})

	default:
		return nil, errors.NewValidationError("provider", id, "unknown provider backend")
	}
}

// closeProvider releases backend resources for providers that hold any.
func closeProvider(p provider.Provider) {
	if closer, ok := p.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logging.Warn().Err(err).Str("provider", p.ID().String()).Msg("failed to close provider")
		}
	}
}
