package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"tyforge-web/internal/domain"
)

// LeadRepository define el contrato de persistencia para leads.
type LeadRepository interface {
	Create(ctx context.Context, lead domain.Lead) error
	ListBySource(ctx context.Context, source string, limit int) ([]domain.Lead, error)
}

// PgLeadRepository implementa LeadRepository usando pgxpool.
type PgLeadRepository struct {
	pool *pgxpool.Pool
}

func NewPgLeadRepository(pool *pgxpool.Pool) *PgLeadRepository {
	return &PgLeadRepository{pool: pool}
}

func (r *PgLeadRepository) Create(ctx context.Context, lead domain.Lead) error {
	const query = `
		INSERT INTO leads (id, source, name, email, phone, plan_name, subject, body, device_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		lead.ID,
		lead.Source,
		lead.Name,
		nullable(lead.Email),
		nullable(lead.Phone),
		nullable(lead.PlanName),
		nullable(lead.Subject),
		lead.Body,
		nullable(lead.DeviceID),
		lead.CreatedAt,
	)
	return err
}

func (r *PgLeadRepository) ListBySource(ctx context.Context, source string, limit int) ([]domain.Lead, error) {
	const query = `
		SELECT id, source, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(plan_name, ''),
		       COALESCE(subject, ''), body, COALESCE(device_id, ''), created_at
		FROM leads
		WHERE source = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, query, source, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		err = rows.Scan(
			&l.ID,
			&l.Source,
			&l.Name,
			&l.Email,
			&l.Phone,
			&l.PlanName,
			&l.Subject,
			&l.Body,
			&l.DeviceID,
			&l.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func nullable(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

// MemoryLeadRepository guarda leads en memoria cuando no hay DATABASE_URL.
type MemoryLeadRepository struct {
	mu    sync.Mutex
	leads []domain.Lead
}

func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{}
}

func (r *MemoryLeadRepository) Create(_ context.Context, lead domain.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leads = append(r.leads, lead)
	return nil
}

func (r *MemoryLeadRepository) ListBySource(_ context.Context, source string, limit int) ([]domain.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Lead
	for i := len(r.leads) - 1; i >= 0 && len(out) < limit; i-- {
		if r.leads[i].Source == source {
			out = append(out, r.leads[i])
		}
	}
	return out, nil
}
