package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/liliganster/tp-companion/internal/core/domain"
)

// DocumentRepository records the receipts a user extracted synchronously.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) CreateRef(ctx context.Context, ref *domain.DocumentRef) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_refs (id, user_id, storage_path, kind, trip_id, project_id, amount, currency, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		ref.ID, ref.UserID, ref.StoragePath, string(ref.Kind), nullString(ref.TripID), nullString(ref.ProjectID),
		ref.Amount, nullString(ref.Currency), ref.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document ref: %w", err)
	}
	return nil
}
