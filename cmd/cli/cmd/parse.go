package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/angelospk/subdl/internal/constants"
	"github.com/angelospk/subdl/pkg/core/fileops"
	"github.com/angelospk/subdl/pkg/core/metadata"
	"github.com/angelospk/subdl/pkg/core/prompt"
)

var parseCmd = &cobra.Command{
	Use:   "parse <filename>...",
	Short: "Show what would be searched for each filename",
	Long: `Parses video filenames offline and prints the title, year and episode
the downloader would search for, with the release attributes it recognises.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rows := make([][]string, 0, len(args))
		for _, name := range args {
			q := metadata.Parse(name)
			rel := metadata.DescribeRelease(name)

			title := q.Title
			if title == "" {
				title = "(none)"
			}
			year := ""
			if q.Year > 0 {
				year = strconv.Itoa(q.Year)
			}
			rows = append(rows, []string{
				filepath.Base(name),
				title,
				year,
				string(q.Episode),
				rel.Resolution,
				rel.Source,
				rel.ReleaseGroup,
				filepath.Base(fileops.SubtitlePath(name, constants.SubtitleExt)),
			})
		}

		fmt.Fprintln(cmd.OutOrStdout(), prompt.RenderTable(
			[]string{"File", "Title", "Year", "Episode", "Resolution", "Source", "Group", "Saves as"},
			rows, nil,
		))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(parseCmd)
}
