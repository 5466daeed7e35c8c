package kpi

import (
	"bytes"
	"context"
	"fmt"

	"pricewatch-backend/lib/htmlutil"
	"pricewatch-backend/lib/specmatch"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const listingPath = "/price/list.php"

// ProductRows fetches the flat listing view for a sub-category over the
// authenticated HTTP session and parses it into product rows. This is
// the second half of the dual extraction; it is independent of the
// trend view and may run before or interleaved with it.
func (c *Client) ProductRows(ctx context.Context, node CategoryNode) ([]specmatch.ProductRow, error) {
	ctx, span := tracer.Start(ctx, "client:ProductRows")
	defer span.End()
	span.SetAttributes(attribute.String("category", node.Path()))

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("cate_code", node.Code).
		Get(listingPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch listing view")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "listing view returned error status")
		return nil, fmt.Errorf("listing view for %q: status %s", node.Path(), res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse listing html")
		return nil, err
	}

	rows := ParseProductListing(doc)
	span.SetAttributes(attribute.Int("rows", len(rows)))
	return rows, nil
}

// ParseProductListing reads the product table: name, free-text
// specification and unit of measure per row. The unit cell may be
// empty.
func ParseProductListing(doc *goquery.Document) []specmatch.ProductRow {
	var rows []specmatch.ProductRow
	doc.Find("table.tbl_list tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return
		}
		name := htmlutil.CleanText(cells.Eq(0).Text())
		if name == "" {
			return
		}
		rows = append(rows, specmatch.ProductRow{
			Name:              name,
			SpecificationText: htmlutil.CleanText(cells.Eq(1).Text()),
			Unit:              htmlutil.CleanText(cells.Eq(2).Text()),
		})
	})
	return rows
}
