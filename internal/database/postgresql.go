package database

import (
	"context"
	"embed"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"linkpulse/internal/types"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Database is the registry of measured accounts and their published links.
// Event data never lives here; that is the event store's job.
type Database struct {
	db *sqlx.DB
}

func ConnectPostgres(url string) (*Database, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, err
	}

	pg := &Database{db: db}

	if err := pg.RunMigrations(); err != nil {
		return nil, err
	}

	return pg, nil
}

func (db *Database) RunMigrations() error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.db.DB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance(
		"iofs", d,
		"postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	slog.Info("Database migrations applied successfully")
	return nil
}

// EnsureAccount creates the account bound to a Telegram chat when it does
// not exist yet.
func (db *Database) EnsureAccount(ctx context.Context, accountID string, telegramID int64) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO accounts (id, telegram_id) VALUES ($1, $2)
		 ON CONFLICT (telegram_id) DO NOTHING`,
		accountID, telegramID)
	return err
}

func (db *Database) GetAccountByTelegramID(ctx context.Context, telegramID int64) (*types.Account, error) {
	var account types.Account
	err := db.db.GetContext(ctx, &account,
		`SELECT id, telegram_id, created_at FROM accounts WHERE telegram_id = $1`,
		telegramID)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (db *Database) RegisterLink(ctx context.Context, link types.Link) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO links (id, account_id, title, url) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, url = EXCLUDED.url`,
		link.ID, link.AccountID, link.Title, link.URL)
	return err
}

func (db *Database) GetLinksByAccount(ctx context.Context, accountID string) ([]types.Link, error) {
	var links []types.Link
	err := db.db.SelectContext(ctx, &links,
		`SELECT id, account_id, title, url, created_at FROM links
		 WHERE account_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}
