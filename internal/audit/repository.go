package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	Insert(ctx context.Context, entry *Entry) (int64, error)
	ListByEntity(ctx context.Context, entityName, entityID string) ([]Entry, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Insert(ctx context.Context, entry *Entry) (int64, error) {
	query := `
		INSERT INTO audit_logs (action, entity_name, entity_id, user_id, user_email, old_values, new_values, changes, timestamp, ip_address, user_agent, additional_info)
		VALUES (:action, :entity_name, :entity_id, :user_id, :user_email, :old_values, :new_values, :changes, :timestamp, :ip_address, :user_agent, :additional_info)
		RETURNING id
	`

	rows, err := r.db.NamedQueryContext(ctx, query, entry)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to insert audit entry: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("repository: insert returned no id")
	}

	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("repository: failed to scan audit entry id: %w", err)
	}
	entry.ID = id

	return id, nil
}

func (r *postgresRepository) ListByEntity(ctx context.Context, entityName, entityID string) ([]Entry, error) {
	query := `
		SELECT id, action, entity_name, entity_id, user_id, user_email, old_values, new_values, changes, timestamp, ip_address, user_agent, additional_info
		FROM audit_logs
		WHERE entity_name = $1 AND entity_id = $2
		ORDER BY timestamp
	`

	entries := make([]Entry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, entityName, entityID); err != nil {
		return nil, fmt.Errorf("repository: failed to list audit entries: %w", err)
	}

	return entries, nil
}
