package postgres

import (
	"context"
	"database/sql"
	"time"

	"mailsorter/internal/model"
)

type PostgresMailAccountRepository struct {
	db *sql.DB
}

func NewPostgresMailAccountRepository(db *sql.DB) *PostgresMailAccountRepository {
	return &PostgresMailAccountRepository{db: db}
}

const accountColumns = `id, user_id, email, access_token, refresh_token, token_expiry, created_at, updated_at`

func scanAccount(row scanner) (*model.MailAccount, error) {
	account := &model.MailAccount{}
	var expiry sql.NullTime
	err := row.Scan(
		&account.ID, &account.UserID, &account.Email,
		&account.AccessToken, &account.RefreshToken, &expiry,
		&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if expiry.Valid {
		account.TokenExpiry = expiry.Time
	}
	return account, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (r *PostgresMailAccountRepository) Upsert(ctx context.Context, account *model.MailAccount) (*model.MailAccount, error) {
	query := `
		INSERT INTO mail_accounts (id, user_id, email, access_token, refresh_token, token_expiry, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (email) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), mail_accounts.refresh_token),
			token_expiry = EXCLUDED.token_expiry,
			updated_at = NOW()
		RETURNING ` + accountColumns
	row := r.db.QueryRowContext(ctx, query,
		account.ID, account.UserID, account.Email,
		account.AccessToken, account.RefreshToken, nullTime(account.TokenExpiry),
		account.CreatedAt, account.UpdatedAt)
	return scanAccount(row)
}

func (r *PostgresMailAccountRepository) FindByID(ctx context.Context, id string) (*model.MailAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM mail_accounts WHERE id = $1`
	return scanAccount(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresMailAccountRepository) FindByEmail(ctx context.Context, email string) (*model.MailAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM mail_accounts WHERE lower(email) = lower($1)`
	return scanAccount(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresMailAccountRepository) FindByUserID(ctx context.Context, userID string) ([]*model.MailAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM mail_accounts WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*model.MailAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (r *PostgresMailAccountRepository) UpdateToken(ctx context.Context, account *model.MailAccount) error {
	query := `
		UPDATE mail_accounts SET
			access_token = $1,
			refresh_token = COALESCE(NULLIF($2, ''), refresh_token),
			token_expiry = $3,
			updated_at = NOW()
		WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query,
		account.AccessToken, account.RefreshToken, nullTime(account.TokenExpiry), account.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresMailAccountRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM mail_accounts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
