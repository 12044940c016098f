package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"vetdesk/backend/internal/domain"
	"vetdesk/backend/internal/store"
)

type VetRepo struct {
	db *bun.DB
}

func NewVetRepo(db *bun.DB) *VetRepo {
	return &VetRepo{db: db}
}

func (r *VetRepo) Get(ctx context.Context, id uuid.UUID) (domain.Vet, error) {
	var m domain.Vet
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Vet{}, store.ErrNotFound
		}
		return domain.Vet{}, err
	}
	return m, nil
}

func (r *VetRepo) ListQualified(ctx context.Context, visitType string) ([]domain.Vet, error) {
	var rows []domain.Vet
	err := r.db.NewSelect().
		Model(&rows).
		Where("cardinality(visit_types) = 0 OR ? = ANY(visit_types)", visitType).
		OrderExpr("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
