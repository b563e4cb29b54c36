package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

func (s *PostgresStore) ListDropdownOptions(ctx context.Context, category string) ([]DropdownOption, error) {
	query := s.sb.Select("category", "value", "label", "sort_order").
		From("dropdown_options").
		OrderBy("category ASC", "sort_order ASC", "label ASC")
	if category != "" {
		query = query.Where(sq.Eq{"category": category})
	}

	sqlText, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build dropdown query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("list dropdown options: %w", err)
	}
	defer rows.Close()

	options := make([]DropdownOption, 0)
	for rows.Next() {
		var opt DropdownOption
		if err := rows.Scan(&opt.Category, &opt.Value, &opt.Label, &opt.SortOrder); err != nil {
			return nil, fmt.Errorf("scan dropdown option: %w", err)
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}

func (s *PostgresStore) UpsertDropdownOption(ctx context.Context, opt DropdownOption) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dropdown_options (category, value, label, sort_order)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category, value) DO UPDATE SET label=EXCLUDED.label, sort_order=EXCLUDED.sort_order
	`, opt.Category, opt.Value, opt.Label, opt.SortOrder)
	if err != nil {
		return fmt.Errorf("upsert dropdown option: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteDropdownOption(ctx context.Context, category, value string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dropdown_options WHERE category=$1 AND value=$2`, category, value)
	if err != nil {
		return fmt.Errorf("delete dropdown option: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key=$1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
