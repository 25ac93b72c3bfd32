// Package items provides PostgreSQL-backed storage for frozen package
// item payloads.
package items

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/editorial-eng/packsync/internal/common"
	"github.com/editorial-eng/packsync/internal/dbx"
	"github.com/editorial-eng/packsync/internal/server/models"
)

// PostgresRepository implements item storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, item *models.PackageItem) error {
	data, err := json.Marshal(item.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	query := `
		INSERT INTO package_items (id, data_type, data, file_name, mime_type, tags)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.DataType, data, item.FileName, item.MimeType, rawTags)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByVersion(ctx context.Context, versionID string) ([]*models.PackageItem, error) {
	query := `
		SELECT i.id, i.data_type, i.data, i.file_name, i.mime_type, i.tags FROM package_items i
		JOIN package_version_items vi ON vi.item_id = i.id
		WHERE vi.version_id=$1
		ORDER BY i.file_name;
	`
	rows, err := r.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []*models.PackageItem
	for rows.Next() {
		var item models.PackageItem
		var data, tags []byte
		if err := rows.Scan(&item.ID, &item.DataType, &data, &item.FileName, &item.MimeType, &tags); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &item.Data); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
		if err := json.Unmarshal(tags, &item.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) UpdateData(ctx context.Context, id string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	query := `
		UPDATE package_items SET data=$2
		WHERE id=$1;
	`
	res, err := r.db.ExecContext(ctx, query, id, raw)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
