package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"pricewatch-backend/lib/configutil"
	"pricewatch-backend/lib/scrapers/kpi"
	"pricewatch-backend/lib/serviceutil"
	"pricewatch-backend/lib/sqliteutil"
	"pricewatch-backend/lib/telemetry"
	"pricewatch-backend/services/crawler"
	"pricewatch-backend/services/pricecache"
	"pricewatch-backend/services/pricedb"
	"pricewatch-backend/services/pricedb/db"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

var (
	crawlDb          *string
	crawlDbUrl       *string
	crawlFilter      *string
	crawlProgress    *string
	crawlState       *string
	crawlFrom        *string
	crawlMajor       *string
	crawlMiddle      *string
	crawlConcurrency *int
	crawlHeadless    *bool
	crawlRedisAddr   *string
	crawlRedisDb     *int
)

func init() {
	crawlDb = crawlCmd.Flags().String("db", "results.db", "The database to write crawl results to.")
	crawlDbUrl = crawlCmd.Flags().String("db-url", "", "A sqld URL to write to instead of a local file.")
	crawlFilter = crawlCmd.Flags().String("filter", "filter.json5", "The inclusion filter declaring what to crawl.")
	crawlProgress = crawlCmd.Flags().String("progress", "progress.json", "The progress checkpoint file.")
	crawlState = crawlCmd.Flags().String("state", ".dev/kpi-session.json", "Where to persist session cookies between runs.")
	crawlFrom = crawlCmd.Flags().String("from", "2020-01", "The first year-month of price history to request.")
	crawlMajor = crawlCmd.Flags().String("major", "", "Restrict the crawl to one major category.")
	crawlMiddle = crawlCmd.Flags().String("middle", "", "Restrict the crawl to one middle category.")
	crawlConcurrency = crawlCmd.Flags().Int("concurrency", 3, "How many sub-categories to extract at once.")
	crawlHeadless = crawlCmd.Flags().Bool("headless", true, "Run the browser without a window.")
	crawlRedisAddr = crawlCmd.Flags().String("redis-addr", "", "Redis address for cache invalidation, disabled when empty.")
	crawlRedisDb = crawlCmd.Flags().Int("redis-db", 0, "Redis database number.")
	rootCmd.AddCommand(crawlCmd)
}

// credentials come from config.json5, with KPI_USERNAME/KPI_PASSWORD
// taking precedence so deployments never have to write secrets to disk.
func loadCredentials() kpi.Credentials {
	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		serviceutil.Fatal("failed to read config", err)
	}

	creds := kpi.Credentials{Username: cfg.Username, Password: cfg.Password}
	if v := os.Getenv("KPI_USERNAME"); v != "" {
		creds.Username = v
	}
	if v := os.Getenv("KPI_PASSWORD"); v != "" {
		creds.Password = v
	}
	if creds.Username == "" || creds.Password == "" {
		serviceutil.Fatal("no credentials configured", kpi.ErrMissingCredentials)
	}
	return creds
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--db <path/to/output.db>] [--filter <path/to/filter.json5>]",
	Short: "Crawls the price catalog according to the inclusion filter and writes to a database.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx)

		creds := loadCredentials()

		start, err := kpi.ParseYearMonth(*crawlFrom)
		if err != nil {
			serviceutil.Fatal("invalid --from value", err)
		}

		filter, err := crawler.LoadFilter(*crawlFilter)
		if err != nil {
			slog.Warn("could not read inclusion filter, nothing will be crawled",
				"path", *crawlFilter, "err", err)
		}

		out, err := sqliteutil.OpenAndApply(db.Schema, *crawlDb, *crawlDbUrl)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer out.Close()

		var cache *pricecache.Invalidator
		if *crawlRedisAddr != "" {
			cache, err = pricecache.NewInvalidator(ctx, pricecache.Options{
				Addr: *crawlRedisAddr,
				DB:   *crawlRedisDb,
			})
			if err != nil {
				serviceutil.Fatal("failed to connect to cache", err)
			}
		}

		client, err := kpi.NewClient(ctx, kpi.ClientOptions{Headless: *crawlHeadless})
		if err != nil {
			serviceutil.Fatal("failed to start browser", err)
		}
		defer client.Close()

		if err := client.EnsureSession(ctx, creds, *crawlState); err != nil {
			serviceutil.Fatal("failed to establish session", err)
		}

		c := crawler.New(client, pricedb.NewStore(out), cache, filter, crawler.Config{
			Concurrency:  *crawlConcurrency,
			Start:        start,
			TargetMajor:  *crawlMajor,
			TargetMiddle: *crawlMiddle,
			ProgressPath: *crawlProgress,
		})

		t1 := time.Now()
		snap, err := c.Run(ctx)
		t2 := time.Now()
		if err != nil {
			serviceutil.Fatal("crawl aborted", err)
		}

		printCrawlSummary(snap, t2.Sub(t1))
	},
}

func printCrawlSummary(snap crawler.Progress, took time.Duration) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"metric", "value"})
	t.AppendRows([]table.Row{
		{"major categories", snap.ExtractionInfo.MajorCount},
		{"middle categories", snap.ExtractionInfo.MiddleCount},
		{"sub-categories", snap.ExtractionInfo.SubCount},
		{"specifications", snap.ExtractionInfo.TotalSpecifications},
		{"matched units", snap.ExtractionInfo.MatchedUnits},
	})
	t.AppendFooter(table.Row{"took", took.Round(time.Second)})
	t.Render()
}
