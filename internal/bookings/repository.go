package bookings

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

var bookingsTracer = otel.Tracer("dental.internal.bookings")

type bookingsDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const listBookingsBase = `
	SELECT b.id::text, b.created_at, b.customer_name, b.customer_email, b.customer_phone,
	       b.start_time, b.status, b.doctor_id::text, b.service_id, b.service_name,
	       s.name_en, s.name_lv, s.name_ru, s.price_cents, s.duration_minutes,
	       p.full_name
	FROM bookings b
	LEFT JOIN clinic_services s ON s.id = b.service_id
	LEFT JOIN profiles p ON p.id = b.doctor_id`

// Repository reads bookings joined with their service and provider rows.
type Repository struct {
	db bookingsDB
}

// NewRepository creates a repository backed by pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db bookingsDB) *Repository {
	return &Repository{db: db}
}

// buildListQuery renders the filtered booking select and its arguments.
func buildListQuery(q ListQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	if !q.AllDoctors() {
		args = append(args, strings.TrimSpace(q.DoctorID))
		where = append(where, fmt.Sprintf("b.doctor_id::text = $%d", len(args)))
	}
	if q.Range != nil {
		args = append(args, q.Range.Start)
		where = append(where, fmt.Sprintf("b.start_time >= $%d", len(args)))
		args = append(args, q.Range.End)
		where = append(where, fmt.Sprintf("b.start_time <= $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString(listBookingsBase)
	if len(where) > 0 {
		sb.WriteString("\n\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\n\tORDER BY b.start_time ASC")
	return sb.String(), args
}

// List returns bookings matching q, ordered by start time ascending.
func (r *Repository) List(ctx context.Context, q ListQuery) ([]RawRow, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.list")
	defer span.End()
	span.SetAttributes(attribute.String("dental.doctor_id", q.DoctorID))

	query, args := buildListQuery(q)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: query list: %w", err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		row, err := scanRawRow(rows)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: iterate list: %w", err)
	}
	span.SetAttributes(attribute.Int("dental.bookings.count", len(out)))
	return out, nil
}

func scanRawRow(rows pgx.Rows) (RawRow, error) {
	var (
		row                      RawRow
		status                   string
		email, phone             sql.NullString
		doctorID, serviceID      sql.NullString
		nameEN, nameLV, nameRU   sql.NullString
		priceCents, durationMins sql.NullInt32
		doctorName               sql.NullString
	)
	if err := rows.Scan(
		&row.ID, &row.CreatedAt, &row.CustomerName, &email, &phone,
		&row.StartTime, &status, &doctorID, &serviceID, &row.LegacyServiceName,
		&nameEN, &nameLV, &nameRU, &priceCents, &durationMins,
		&doctorName,
	); err != nil {
		return RawRow{}, fmt.Errorf("bookings: scan row: %w", err)
	}

	row.Status = Status(strings.ToLower(strings.TrimSpace(status)))
	row.CustomerEmail = email.String
	row.CustomerPhone = phone.String
	row.DoctorID = doctorID.String
	row.ServiceID = serviceID.String

	// name_en is NOT NULL, so a null here means the join found no service.
	if nameEN.Valid {
		names := map[locale.Language]string{locale.EN: nameEN.String}
		if nameLV.Valid {
			names[locale.LV] = nameLV.String
		}
		if nameRU.Valid {
			names[locale.RU] = nameRU.String
		}
		row.Service = &ServiceJoin{
			Name:            locale.Localized(names),
			PriceCents:      int(priceCents.Int32),
			DurationMinutes: int(durationMins.Int32),
		}
	}
	if doctorName.Valid {
		row.Doctor = &DoctorJoin{FullName: doctorName.String}
	}
	return row, nil
}

// UpdateStatus transitions a booking. The live change feed picks up the write.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status) error {
	ctx, span := bookingsTracer.Start(ctx, "bookings.update_status")
	defer span.End()

	bookingID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	span.SetAttributes(
		attribute.String("dental.booking_id", bookingID.String()),
		attribute.String("dental.status", string(status)),
	)

	tag, err := r.db.Exec(ctx, `UPDATE bookings SET status = $2 WHERE id = $1`, bookingID, string(status))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("bookings: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
