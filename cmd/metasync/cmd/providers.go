package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/meTasking/sync/internal/output"
	"github.com/meTasking/sync/pkg/provider"
)

// providerInfo describes one backend for the listing.
var providerInfo = map[provider.ID]struct {
	Settings string
	Notes    string
}{
	provider.MeTaskingID: {
		Settings: "METASKING_SERVER",
		Notes:    "meTasking work log server",
	},
	provider.TogglID: {
		Settings: "TOGGL_TOKEN, TOGGL_WORKSPACE_ID",
		Notes:    "Toggl Track time entries",
	},
	provider.JiraID: {
		Settings: "ATLASSIAN_JIRA_SERVER, ATLASSIAN_JIRA_USERNAME, ATLASSIAN_JIRA_TOKEN",
		Notes:    "Jira worklogs, record name must be an issue key",
	},
	provider.JSONLID: {
		Settings: "",
		Notes:    "JSON line stream on stdin/stdout",
	},
	provider.SQLiteID: {
		Settings: "SYNC_SQLITE_PATH",
		Notes:    "local SQLite mirror",
	},
}

// providersCmd represents the providers command.
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List all available backends",
	Long: `List the backends that can act as a source or destination of a
sync run, together with the settings each one needs.`,
	RunE: runProviders,
}

func init() {
	rootCmd.AddCommand(providersCmd)
}

func runProviders(*cobra.Command, []string) error {
	title := cases.Title(language.English)

	td := &output.TableData{
		Headers: []string{"Backend", "Name", "Settings", "Notes"},
	}
	for _, id := range provider.IDs() {
		info := providerInfo[id]
		td.Rows = append(td.Rows, []string{
			id.String(),
			title.String(id.String()),
			info.Settings,
			info.Notes,
		})
	}

	return output.NewFormatter(output.DetectFormat(flagOutput)).Format(os.Stdout, td)
}
