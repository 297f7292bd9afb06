package token

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/nao1215/stationgate/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore はSQLiteに永続化するアクティブセット。
// Gatewayを再起動してもログイン状態が維持される。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore はSQLiteデータベースを開き、マイグレーションを適用する。
// pathに ":memory:" を指定するとインメモリDBになる。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別のDBになるため1接続に固定する
	db.SetMaxOpenConns(1)

	if err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Add はトークンを登録する。
func (s *SQLiteStore) Add(ctx context.Context, token, subject string, issuedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO refresh_tokens (fingerprint, subject, issued_at) VALUES (?, ?, ?)`,
		fingerprint(token), subject, issuedAt.UTC())
	if err != nil {
		return fmt.Errorf("リフレッシュトークンの保存に失敗: %w", err)
	}
	return nil
}

// Contains はトークンが登録済みかを返す。
func (s *SQLiteStore) Contains(ctx context.Context, token string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens WHERE fingerprint = ?`, fingerprint(token)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("リフレッシュトークンの参照に失敗: %w", err)
	}
	return n > 0, nil
}

// Remove はトークンを除去する。
func (s *SQLiteStore) Remove(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE fingerprint = ?`, fingerprint(token)); err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
