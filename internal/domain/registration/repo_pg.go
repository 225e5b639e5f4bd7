package registration

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campadventure/signup/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type registrationRepoPG struct{ pool *pgxpool.Pool }

// NewRegistrationRepoPG stores registrations in PostgreSQL. The aggregate
// slices are kept as JSONB columns.
func NewRegistrationRepoPG(pool *pgxpool.Pool) RegistrationRepository {
	return &registrationRepoPG{pool: pool}
}

func (r *registrationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const registrationCols = `id, session_id, personal_info, medical_info, activities,
	emergency_contact, badge_blob_id, confirmation_id, created_at`

func (r *registrationRepoPG) scanRow(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(&reg.ID, &reg.SessionID, &reg.PersonalInfo, &reg.MedicalInfo, &reg.Activities,
		&reg.EmergencyContact, &reg.BadgeBlobID, &reg.ConfirmationID, &reg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRegistrationNotFound
	}
	return &reg, err
}

func (r *registrationRepoPG) Create(ctx context.Context, reg *Registration) error {
	reg.ID = uuid.New()
	if reg.Activities == nil {
		reg.Activities = Activities{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO registration (id, session_id, personal_info, medical_info, activities,
			emergency_contact, badge_blob_id, confirmation_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		reg.ID, reg.SessionID, reg.PersonalInfo, reg.MedicalInfo, reg.Activities,
		reg.EmergencyContact, reg.BadgeBlobID, reg.ConfirmationID).Scan(&reg.CreatedAt)
}

func (r *registrationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+registrationCols+` FROM registration WHERE id = $1`, id))
}

func (r *registrationRepoPG) List(ctx context.Context, limit, offset int) ([]*Registration, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM registration`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+registrationCols+` FROM registration ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := []*Registration{}
	for rows.Next() {
		reg, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, reg)
	}
	return items, total, rows.Err()
}
