// Package pricedb owns the durable price store. Records are keyed by
// their natural key (major, middle, sub, specification, region, date) so
// repeated crawls upsert instead of duplicating.
package pricedb

import (
	"context"
	"database/sql"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/pricedb")

// PriceRecord is one price observation. Immutable once written; a later
// crawl supersedes it via the natural-key upsert rather than mutating
// it in place.
type PriceRecord struct {
	Major         string
	Middle        string
	Sub           string
	Specification string
	Region        string
	DetailSpec    string
	Date          string
	Price         int64
	Unit          string
	// HasUnit distinguishes "unresolved unit" (false, stored as NULL)
	// from a genuinely empty unit string.
	HasUnit bool
}

type Store struct {
	db *sql.DB
}

func NewStore(database *sql.DB) Store {
	return Store{db: database}
}

const upsertQuery = `
INSERT INTO price_records (major, middle, sub, specification, region, detail_spec, date, price, unit)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (major, middle, sub, specification, region, date) DO UPDATE SET
	price = excluded.price,
	unit = excluded.unit,
	detail_spec = excluded.detail_spec,
	updated_at = strftime('%s', 'now')`

// UpsertBatch writes one middle-category aggregate in a single
// transaction. An empty batch is a no-op, not an error.
func (s Store) UpsertBatch(ctx context.Context, records []PriceRecord) error {
	ctx, span := tracer.Start(ctx, "store:UpsertBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("records", len(records)))

	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.SetStatus(codes.Error, "failed to begin tx")
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery)
	if err != nil {
		span.SetStatus(codes.Error, "failed to prepare upsert")
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		detail := sql.NullString{String: r.DetailSpec, Valid: r.DetailSpec != ""}
		unit := sql.NullString{String: r.Unit, Valid: r.HasUnit}
		_, err := stmt.ExecContext(ctx,
			r.Major, r.Middle, r.Sub,
			r.Specification, r.Region, detail,
			r.Date, r.Price, unit,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to upsert record")
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "committed price batch", "records", len(records))
	return nil
}

// Count reports how many records exist below the given category scope.
// Empty strings widen the scope.
func (s Store) Count(ctx context.Context, major, middle, sub string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM price_records
		WHERE (? = '' OR major = ?)
		  AND (? = '' OR middle = ?)
		  AND (? = '' OR sub = ?)`,
		major, major, middle, middle, sub, sub,
	).Scan(&count)
	return count, err
}

// UnresolvedUnits lists specifications persisted with a NULL unit so
// downstream consumers can tell "no price data" apart from "unresolved
// unit".
func (s Store) UnresolvedUnits(ctx context.Context, major string) ([]PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT major, middle, sub, specification, region, COALESCE(detail_spec, ''), date, price
		FROM price_records
		WHERE unit IS NULL AND (? = '' OR major = ?)
		ORDER BY major, middle, sub, specification, date`,
		major, major,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PriceRecord
	for rows.Next() {
		var r PriceRecord
		err := rows.Scan(
			&r.Major, &r.Middle, &r.Sub,
			&r.Specification, &r.Region, &r.DetailSpec,
			&r.Date, &r.Price,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
