package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/angelospk/subdl/internal/constants"
	"github.com/angelospk/subdl/pkg/core/matcher"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/prompt"
)

var (
	searchYear  int
	searchLimit int
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search the SubSource catalog for a title",
	Long: `Searches SubSource for films and series and prints them ranked the same
way the downloader ranks them.

Examples:
  subdl search "Great Movie" --year 2023
  subdl search Show S02E03`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	RootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVar(&searchYear, "year", 0, "release year")
	searchCmd.Flags().IntVar(&searchLimit, "limit", matcher.MaxTitleChoices, "maximum number of results to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	logger, closeLog := newLogger(cmd.ErrOrStderr())
	defer closeLog()

	apiKey := viper.GetString(CfgKeyAPIKey)
	if apiKey == "" {
		return configError("SubSource API key not configured. Run 'subdl login' or set %s", constants.APIKeyEnv)
	}
	client, err := clientFor(apiKey, logger)
	if err != nil {
		return err
	}

	// The query is parsed like a filename, so "Show S02E03" ranks series first.
	query := metadata.Parse(strings.Join(args, " "))
	if query.Title == "" {
		query.Title = strings.Join(args, " ")
	}
	if searchYear > 0 {
		query.Year = searchYear
	}

	titles, err := client.SearchTitles(cmd.Context(), query.Title, query.Year)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(titles) == 0 {
		fmt.Fprintf(out, "No titles found for %q.\n", query.String())
		return nil
	}

	ranked := matcher.RankTitles(query, titles)
	shown := matcher.Top(ranked, searchLimit)
	fmt.Fprintf(out, "Found %d titles (showing %d):\n", len(ranked), len(shown))

	rows := make([][]string, len(shown))
	for i, r := range shown {
		year := "-"
		if r.Candidate.ReleaseYear > 0 {
			year = strconv.Itoa(r.Candidate.ReleaseYear)
		}
		rows[i] = []string{r.Candidate.ID, r.Candidate.Title, year, string(r.Candidate.MediaType), fmt.Sprintf("%.2f", r.Score)}
	}
	fmt.Fprintln(out, prompt.RenderTable(
		[]string{"ID", "Title", "Year", "Type", "Score"},
		rows,
		[]prompt.Alignment{prompt.AlignRight, prompt.AlignLeft, prompt.AlignRight, prompt.AlignLeft, prompt.AlignRight},
	))
	return nil
}
