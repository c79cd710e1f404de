package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// FarmRepo implements ports.FarmRepository with pgx.
type FarmRepo struct {
	db *DB
}

// NewFarmRepo creates a new FarmRepo.
func NewFarmRepo(db *DB) *FarmRepo {
	return &FarmRepo{db: db}
}

const farmColumns = `id, farmer_id, name, COALESCE(address, ''), lat, lon, flock_size, created_at`

const upsertFarmSQL = `
	INSERT INTO farms (id, farmer_id, name, address, lat, lon, flock_size)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE
	SET farmer_id = EXCLUDED.farmer_id, name = EXCLUDED.name,
	    address = EXCLUDED.address, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
	    flock_size = EXCLUDED.flock_size
	RETURNING created_at
`

// Upsert inserts or updates a single farm.
func (r *FarmRepo) Upsert(ctx context.Context, f *domain.Farm) error {
	lat, lon := coords(f.Location)
	err := r.db.Pool.QueryRow(ctx, upsertFarmSQL,
		f.ID, f.FarmerID, f.Name, f.Address, lat, lon, f.FlockSize,
	).Scan(&f.CreatedAt)
	return writeErr(err)
}

// UpsertBatch inserts many farms using pgx.Batch.
func (r *FarmRepo) UpsertBatch(ctx context.Context, farms []domain.Farm) error {
	batch := &pgx.Batch{}
	for _, f := range farms {
		lat, lon := coords(f.Location)
		batch.Queue(upsertFarmSQL, f.ID, f.FarmerID, f.Name, f.Address, lat, lon, f.FlockSize)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range farms {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", writeErr(err))
		}
	}
	return nil
}

func scanFarm(row pgx.Row) (domain.Farm, error) {
	var (
		f        domain.Farm
		lat, lon *float64
	)
	if err := row.Scan(&f.ID, &f.FarmerID, &f.Name, &f.Address, &lat, &lon, &f.FlockSize, &f.CreatedAt); err != nil {
		return f, err
	}
	f.Location = point(lat, lon)
	return f, nil
}

func collectFarms(rows pgx.Rows) ([]domain.Farm, error) {
	defer rows.Close()
	var farms []domain.Farm
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, err
		}
		farms = append(farms, f)
	}
	return farms, rows.Err()
}

// GetByID returns a farm by ID.
func (r *FarmRepo) GetByID(ctx context.Context, id string) (*domain.Farm, error) {
	f, err := scanFarm(r.db.Pool.QueryRow(ctx, `SELECT `+farmColumns+` FROM farms WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// GetByIDs returns multiple farms by ID, in arbitrary order.
func (r *FarmRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Farm, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT `+farmColumns+` FROM farms WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	return collectFarms(rows)
}

// List returns every farm in insertion order, so reconciliation ties are stable.
func (r *FarmRepo) List(ctx context.Context) ([]domain.Farm, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+farmColumns+` FROM farms ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return collectFarms(rows)
}

// ListInBounds returns located farms inside a lat/lon box.
func (r *FarmRepo) ListInBounds(ctx context.Context, minLat, minLon, maxLat, maxLon float64) ([]domain.Farm, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+farmColumns+`
		FROM farms
		WHERE lat BETWEEN $1 AND $3 AND lon BETWEEN $2 AND $4
		ORDER BY created_at, id
	`, minLat, minLon, maxLat, maxLon)
	if err != nil {
		return nil, err
	}
	return collectFarms(rows)
}
