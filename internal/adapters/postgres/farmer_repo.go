package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// FarmerRepo implements ports.FarmerRepository with pgx.
type FarmerRepo struct {
	db *DB
}

// NewFarmerRepo creates a new FarmerRepo.
func NewFarmerRepo(db *DB) *FarmerRepo {
	return &FarmerRepo{db: db}
}

const upsertFarmerSQL = `
	INSERT INTO farmers (id, name, phone, village, notes)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET name = EXCLUDED.name, phone = EXCLUDED.phone,
	    village = EXCLUDED.village, notes = EXCLUDED.notes
	RETURNING created_at
`

// Upsert inserts or updates a single farmer.
func (r *FarmerRepo) Upsert(ctx context.Context, f *domain.Farmer) error {
	return r.db.Pool.QueryRow(ctx, upsertFarmerSQL,
		f.ID, f.Name, f.Phone, f.Village, f.Notes,
	).Scan(&f.CreatedAt)
}

// UpsertBatch inserts many farmers using pgx.Batch.
func (r *FarmerRepo) UpsertBatch(ctx context.Context, farmers []domain.Farmer) error {
	batch := &pgx.Batch{}
	for _, f := range farmers {
		batch.Queue(upsertFarmerSQL, f.ID, f.Name, f.Phone, f.Village, f.Notes)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range farmers {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a farmer by ID.
func (r *FarmerRepo) GetByID(ctx context.Context, id string) (*domain.Farmer, error) {
	var f domain.Farmer
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(village, ''), COALESCE(notes, ''), created_at
		FROM farmers WHERE id = $1
	`, id).Scan(&f.ID, &f.Name, &f.Phone, &f.Village, &f.Notes, &f.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// List returns all farmers ordered by name.
func (r *FarmerRepo) List(ctx context.Context) ([]domain.Farmer, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, name, COALESCE(phone, ''), COALESCE(village, ''), COALESCE(notes, ''), created_at
		FROM farmers ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var farmers []domain.Farmer
	for rows.Next() {
		var f domain.Farmer
		if err := rows.Scan(&f.ID, &f.Name, &f.Phone, &f.Village, &f.Notes, &f.CreatedAt); err != nil {
			return nil, err
		}
		farmers = append(farmers, f)
	}
	return farmers, rows.Err()
}
