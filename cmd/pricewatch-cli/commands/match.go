package commands

import (
	"fmt"
	"os"

	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/sqliteutil"
	"pricewatch-backend/services/pricedb"
	"pricewatch-backend/services/pricedb/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	matchDb    *string
	matchMajor *string
)

func init() {
	matchDb = matchCmd.Flags().String("db", "results.db", "The database to inspect.")
	matchMajor = matchCmd.Flags().String("major", "", "Restrict the report to one major category.")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match [--db <path/to/results.db>] [--major <name>]",
	Short: "Reports specifications whose unit could not be matched from the listing view.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		out, err := sqliteutil.OpenAndApply(db.Schema, *matchDb, "")
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		store := pricedb.NewStore(out)
		records, err := store.UnresolvedUnits(ctx, *matchMajor)
		if err != nil {
			serviceutil.Fatal("failed to query unresolved units", err)
		}
		if len(records) == 0 {
			fmt.Println("every stored specification has a resolved unit")
			return
		}

		type key struct{ major, middle, sub, spec string }
		counts := map[key]int{}
		details := map[key]string{}
		var order []key
		for _, r := range records {
			k := key{r.Major, r.Middle, r.Sub, r.Specification}
			if counts[k] == 0 {
				order = append(order, k)
				details[k] = r.DetailSpec
			}
			counts[k]++
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"major", "middle", "sub", "specification", "detail", "records"})
		for _, k := range order {
			t.AppendRow(table.Row{k.major, k.middle, k.sub, k.spec, details[k], counts[k]})
		}
		t.AppendFooter(table.Row{"", "", "", "", "total", len(records)})
		t.Render()
	},
}
