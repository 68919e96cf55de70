package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
)

var catalogTracer = otel.Tracer("dental.internal.catalog")

type catalogDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const activeServicesQuery = `
	SELECT id::text, name_en, name_lv, name_ru,
	       description_en, description_lv, description_ru,
	       price_cents, duration_minutes, category, icon
	FROM clinic_services
	WHERE is_active = true
	ORDER BY display_order ASC
`

const activeSpecialistsQuery = `
	SELECT id::text, name, role_en, role_lv, role_ru, photo_url, specialty_ids
	FROM clinic_specialists
	WHERE is_active = true
	ORDER BY display_order ASC
`

// PostgresSource reads catalogs from the clinic_services and clinic_specialists tables.
type PostgresSource struct {
	db catalogDB
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresSource{db: pool}
}

// NewPostgresSourceWithDB allows injecting mocks for tests.
func NewPostgresSourceWithDB(db catalogDB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) ActiveServices(ctx context.Context) ([]Service, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.active_services")
	defer span.End()

	rows, err := s.db.Query(ctx, activeServicesQuery)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: query services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var (
			id, nameEN, nameLV       string
			nameRU                   sql.NullString
			descEN, descLV, descRU   sql.NullString
			priceCents, durationMins int
			category, icon           sql.NullString
		)
		if err := rows.Scan(&id, &nameEN, &nameLV, &nameRU, &descEN, &descLV, &descRU,
			&priceCents, &durationMins, &category, &icon); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, Service{
			ID: id,
			Name: locale.Localized(map[locale.Language]string{
				locale.EN: nameEN,
				locale.LV: nameLV,
				locale.RU: orText(nameRU, nameEN),
			}),
			Description: locale.Localized(map[locale.Language]string{
				locale.EN: descEN.String,
				locale.LV: descLV.String,
				locale.RU: orText(descRU, descEN.String),
			}),
			Price:           PriceFromCents(priceCents),
			PriceCents:      priceCents,
			DurationMinutes: durationMins,
			Category:        category.String,
			Icon:            icon.String,
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: iterate services: %w", err)
	}
	span.SetAttributes(attribute.Int("dental.catalog.count", len(out)))
	return out, nil
}

func (s *PostgresSource) ActiveSpecialists(ctx context.Context) ([]Specialist, error) {
	ctx, span := catalogTracer.Start(ctx, "catalog.active_specialists")
	defer span.End()

	rows, err := s.db.Query(ctx, activeSpecialistsQuery)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: query specialists: %w", err)
	}
	defer rows.Close()

	var out []Specialist
	for rows.Next() {
		var (
			id, name               string
			roleEN, roleLV, roleRU sql.NullString
			photoURL               sql.NullString
			specialties            []string
		)
		if err := rows.Scan(&id, &name, &roleEN, &roleLV, &roleRU, &photoURL, &specialties); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("catalog: scan specialist: %w", err)
		}
		out = append(out, Specialist{
			ID:   id,
			Name: name,
			Role: locale.Localized(map[locale.Language]string{
				locale.EN: roleEN.String,
				locale.LV: roleLV.String,
				locale.RU: orText(roleRU, roleEN.String),
			}),
			PhotoURL:    photoURL.String,
			Specialties: specialties,
		})
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("catalog: iterate specialists: %w", err)
	}
	span.SetAttributes(attribute.Int("dental.catalog.count", len(out)))
	return out, nil
}

// orText returns t when set and non-empty, otherwise fallback.
func orText(t sql.NullString, fallback string) string {
	if t.Valid && t.String != "" {
		return t.String
	}
	return fallback
}
