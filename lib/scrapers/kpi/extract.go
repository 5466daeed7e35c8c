package kpi

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"pricewatch-backend/lib/browser"
	"pricewatch-backend/lib/htmlutil"
	"pricewatch-backend/lib/specmatch"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const detailPath = "/price/detail.php"

const specOptionsJS = `
Array.from(document.querySelectorAll('select#spec_list option'))
	.filter(o => o.value !== '')
	.map(o => ({value: o.value, text: o.textContent.trim()}))`

// optionDelimiter splits a dropdown entry into product name and
// specification detail. Entries without it keep the full text as the
// product name.
const optionDelimiter = " - "

// PricePoint is one numeric cell of the trend table, already expanded
// to its date and region.
type PricePoint struct {
	Date   string
	Region string
	Price  int64
}

// SubcategoryData is everything extracted for one sub-category: both
// views plus the per-option price points. Points are keyed by the
// option's dropdown value.
type SubcategoryData struct {
	Category CategoryNode
	Options  []specmatch.SpecificationOption
	Products []specmatch.ProductRow
	Points   map[string][]PricePoint
}

// YearMonth is the start of the reporting range. The end is always the
// source's latest available period.
type YearMonth struct {
	Year  int
	Month int
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

func ParseYearMonth(s string) (YearMonth, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return YearMonth{}, fmt.Errorf("invalid year-month %q, want YYYY-MM", s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return YearMonth{}, fmt.Errorf("invalid month in %q", s)
	}
	return YearMonth{Year: year, Month: month}, nil
}

// ExtractSubcategory runs the trend-view side of the dual extraction on
// a dedicated tab. allow, when non-nil, drops dropdown entries before
// any price query is made for them. Failures before per-option
// processing begins are returned to the caller (which retries the unit
// as a whole); a single option's timeout or parse failure only skips
// that option.
func (c *Client) ExtractSubcategory(tab context.Context, node CategoryNode, start YearMonth, allow func(specmatch.SpecificationOption) bool) (*SubcategoryData, error) {
	ctx, span := tracer.Start(tab, "client:ExtractSubcategory")
	defer span.End()
	span.SetAttributes(attribute.String("category", node.Path()))

	data := &SubcategoryData{
		Category: node,
		Points:   map[string][]PricePoint{},
	}

	nctx, cancel := context.WithTimeout(ctx, time.Second*30)
	err := chromedp.Run(nctx, chromedp.Navigate(c.absURL(detailPath)+"?cate_code="+node.Code))
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, "failed to open sub-category")
		return nil, err
	}
	browser.DismissPopups(ctx)

	// the trend view sits behind a tab control; a missing control means
	// this sub-category has no price trend at all
	if err := browser.WaitStable(ctx, "a#tab_trend", time.Second*10); err != nil {
		span.SetStatus(codes.Error, "trend tab control missing")
		return nil, fmt.Errorf("trend control missing for %q: %w", node.Path(), err)
	}
	cctx, cancel := context.WithTimeout(ctx, time.Second*10)
	err = chromedp.Run(cctx, chromedp.Click("a#tab_trend", chromedp.ByQuery))
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, "trend tab click failed")
		return nil, err
	}
	if err := browser.WaitStable(ctx, "select#spec_list", time.Second*10); err != nil {
		span.SetStatus(codes.Error, "specification dropdown missing")
		return nil, fmt.Errorf("specification dropdown missing for %q: %w", node.Path(), err)
	}

	var rawOptions []struct {
		Value string `json:"value"`
		Text  string `json:"text"`
	}
	ectx, cancel := context.WithTimeout(ctx, time.Second*10)
	err = chromedp.Run(ectx, chromedp.Evaluate(specOptionsJS, &rawOptions))
	cancel()
	if err != nil {
		span.SetStatus(codes.Error, "failed to read dropdown options")
		return nil, err
	}

	// an empty dropdown is a successful zero-output unit, not an error
	if len(rawOptions) == 0 {
		span.SetAttributes(attribute.Int("options", 0))
		return data, nil
	}

	for _, raw := range rawOptions {
		opt := parseOption(raw.Value, raw.Text)
		if allow != nil && !allow(opt) {
			continue
		}
		data.Options = append(data.Options, opt)
	}
	span.SetAttributes(attribute.Int("options", len(data.Options)))

	for i, opt := range data.Options {
		points, err := c.queryOption(ctx, opt, i == 0, start)
		if err != nil {
			slog.WarnContext(ctx, "specification option skipped",
				"category", node.Path(),
				"option", opt.FullText,
				"err", err,
			)
			continue
		}
		if len(points) > 0 {
			data.Points[opt.Value] = points
		}
	}

	return data, nil
}

func parseOption(value, text string) specmatch.SpecificationOption {
	opt := specmatch.SpecificationOption{Value: value, FullText: text}
	if name, detail, ok := strings.Cut(text, optionDelimiter); ok {
		opt.ProductName = strings.TrimSpace(name)
		opt.SpecificationDetail = strings.TrimSpace(detail)
	} else {
		opt.ProductName = strings.TrimSpace(text)
	}
	return opt
}

// queryOption selects one dropdown entry, submits the query and parses
// the resulting date×region table. A timeout waiting for rows means "no
// data in range": zero points, no error.
func (c *Client) queryOption(ctx context.Context, opt specmatch.SpecificationOption, first bool, start YearMonth) ([]PricePoint, error) {
	actions := []chromedp.Action{
		chromedp.SetValue("select#spec_list", opt.Value, chromedp.ByQuery),
	}
	if first {
		// the date range only needs to be set once per sub-category;
		// the end always stays at the site's latest available period
		actions = append(actions,
			chromedp.SetValue("select#sdate_year", strconv.Itoa(start.Year), chromedp.ByQuery),
			chromedp.SetValue("select#sdate_month", fmt.Sprintf("%02d", start.Month), chromedp.ByQuery),
		)
	}
	actions = append(actions, chromedp.Click("a.btn_search", chromedp.ByQuery))

	sctx, cancel := context.WithTimeout(ctx, time.Second*15)
	err := chromedp.Run(sctx, actions...)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("submit query: %w", err)
	}

	// rows appearing within the bound means data; a timeout means the
	// option has no data in range and is skipped, not retried
	if err := browser.WaitStable(ctx, "table.tbl_price tbody tr", time.Second*10); err != nil {
		slog.DebugContext(ctx, "no data rows in range", "option", opt.FullText)
		return nil, nil
	}

	var tableHTML string
	hctx, cancel := context.WithTimeout(ctx, time.Second*10)
	err = chromedp.Run(hctx, chromedp.OuterHTML("table.tbl_price", &tableHTML, chromedp.ByQuery))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("read trend table: %w", err)
	}

	return ParsePriceTable(ctx, tableHTML)
}

// ParsePriceTable parses the trend table: the first column is the
// reporting date, every following column is either a region (from the
// fixed region set) or a plain price column with nationwide semantics.
// Every numeric cell becomes one price point.
func ParsePriceTable(ctx context.Context, tableHTML string) ([]PricePoint, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return nil, fmt.Errorf("parse trend table html: %w", err)
	}

	var regions []string
	doc.Find("thead th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			// date column
			return
		}
		header := htmlutil.CleanText(th.Text())
		region, known := ClassifyHeader(header)
		if !known {
			suggestion, sim := ClosestRegion(header)
			slog.WarnContext(ctx, "unrecognized price column header",
				"header", header,
				"closest_region", suggestion,
				"similarity", sim,
			)
		}
		regions = append(regions, region)
	})

	var points []PricePoint
	doc.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			return
		}
		date := htmlutil.CleanText(cells.First().Text())
		if date == "" {
			return
		}

		cells.Each(func(i int, td *goquery.Selection) {
			if i == 0 || i > len(regions) {
				return
			}
			price, ok := parsePrice(td.Text())
			if !ok {
				return
			}
			points = append(points, PricePoint{
				Date:   date,
				Region: regions[i-1],
				Price:  price,
			})
		})
	})

	return points, nil
}

// parsePrice turns a table cell like "1,234" into an integer price.
// Empty cells and dash placeholders are not data.
func parsePrice(s string) (int64, bool) {
	s = htmlutil.CleanText(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" {
		return 0, false
	}
	price, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
