package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kakeibo/internal/model"
)

// entryTables は種別ごとの格納テーブル名。
// テーブル名はSQLに埋め込むため、ここに列挙したもの以外は受け付けない。
var entryTables = map[model.EntryKind]string{
	model.EntryKindIncome:  "incomes",
	model.EntryKindExpense: "expenses",
}

// PostgresEntryRepo はPostgreSQLを使用した収入・支出リポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

func tableFor(kind model.EntryKind) (string, error) {
	table, ok := entryTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown entry kind: %q", kind)
	}
	return table, nil
}

// ListByUserID は指定ユーザーが所有するエントリを登録順で返す。
// 該当がない場合は空スライスを返す。
func (r *PostgresEntryRepo) ListByUserID(ctx context.Context, kind model.EntryKind, userID string) ([]*model.Entry, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, description, entry_date, amount, category, created_at
		 FROM `+table+`
		 WHERE user_id = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]*model.Entry, 0)
	for rows.Next() {
		e := &model.Entry{Kind: kind}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.Date, &e.Amount, &e.Category, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", table, err)
	}

	return entries, nil
}

// Create はエントリを作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.Entry) error {
	table, err := tableFor(entry.Kind)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, user_id, description, entry_date, amount, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.Description, entry.Date, entry.Amount, entry.Category, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
