package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/marsfed/marsdata"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Prints the stored Mars record.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.close()

		store, err := marsdata.NewStore(env.cfg.Store.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		record, err := store.Get()
		if err != nil {
			return err
		}
		if record == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No Mars data yet. Run marsfed scrape first.")
			return nil
		}

		printRecord(cmd.OutOrStdout(), record)
		return nil
	},
}

const unavailable = "(unavailable)"

func orUnavailable(s *string) string {
	if s == nil {
		return unavailable
	}
	return *s
}

// printRecord writes record as a two column table.
func printRecord(out io.Writer, record *marsdata.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})

	t.AppendRow(table.Row{"News title", orUnavailable(record.NewsTitle)})
	t.AppendRow(table.Row{"News teaser", orUnavailable(record.NewsParagraph)})
	t.AppendRow(table.Row{"Featured image", orUnavailable(record.FeaturedImageURL)})
	t.AppendSeparator()
	for _, h := range record.Hemispheres {
		if !h.Complete() {
			t.AppendRow(table.Row{"Hemisphere", unavailable})
			continue
		}
		t.AppendRow(table.Row{*h.Title, *h.ImageURL})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"Weather", record.WeatherText})

	facts := unavailable
	if record.FactsTable != nil {
		facts = "present"
	}
	t.AppendRow(table.Row{"Facts table", facts})
	t.AppendRow(table.Row{"Last updated", record.LastUpdated.Format("2006-01-02 15:04:05 MST")})

	t.Render()
}
