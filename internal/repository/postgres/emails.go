package postgres

import (
	"context"
	"database/sql"

	"mailsorter/internal/model"
	"mailsorter/internal/repository"
)

type PostgresEmailRepository struct {
	db *sql.DB
}

func NewPostgresEmailRepository(db *sql.DB) *PostgresEmailRepository {
	return &PostgresEmailRepository{db: db}
}

const emailColumns = `id, user_id, account_id, message_id, thread_id, subject, sender_name, sender_email,
	body, summary, category_id, received_at, processed, archived,
	has_unsubscribe_link, unsubscribe_link, unsubscribe_status, created_at, updated_at`

func scanEmail(row scanner) (*model.Email, error) {
	email := &model.Email{}
	var status string
	err := row.Scan(
		&email.ID, &email.UserID, &email.AccountID, &email.MessageID, &email.ThreadID,
		&email.Subject, &email.SenderName, &email.SenderEmail,
		&email.Body, &email.Summary, &email.CategoryID, &email.ReceivedAt,
		&email.Processed, &email.Archived,
		&email.HasUnsubscribeLink, &email.UnsubscribeLink, &status,
		&email.CreatedAt, &email.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	email.UnsubscribeStatus = model.UnsubscribeStatus(status)
	return email, nil
}

func (r *PostgresEmailRepository) query(ctx context.Context, query string, args ...interface{}) ([]*model.Email, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []*model.Email
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

func (r *PostgresEmailRepository) Create(ctx context.Context, email *model.Email) error {
	query := `
		INSERT INTO emails (` + emailColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (user_id, message_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		email.ID, email.UserID, email.AccountID, email.MessageID, email.ThreadID,
		email.Subject, email.SenderName, email.SenderEmail,
		email.Body, email.Summary, email.CategoryID, email.ReceivedAt,
		email.Processed, email.Archived,
		email.HasUnsubscribeLink, email.UnsubscribeLink, string(email.UnsubscribeStatus),
		email.CreatedAt, email.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

func (r *PostgresEmailRepository) FindByID(ctx context.Context, id string) (*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE id = $1`
	return scanEmail(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresEmailRepository) FindByUserID(ctx context.Context, userID string) ([]*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE user_id = $1 ORDER BY received_at DESC`
	return r.query(ctx, query, userID)
}

func (r *PostgresEmailRepository) FindByCategoryID(ctx context.Context, userID, categoryID string) ([]*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE user_id = $1 AND category_id = $2 ORDER BY received_at DESC`
	return r.query(ctx, query, userID, categoryID)
}

func (r *PostgresEmailRepository) FindByMessageID(ctx context.Context, userID, messageID string) (*model.Email, error) {
	query := `SELECT ` + emailColumns + ` FROM emails WHERE user_id = $1 AND message_id = $2`
	return scanEmail(r.db.QueryRowContext(ctx, query, userID, messageID))
}

func (r *PostgresEmailRepository) CountByCategory(ctx context.Context, userID string) (map[string]int, error) {
	query := `
		SELECT category_id, COUNT(*) FROM emails
		WHERE user_id = $1 AND category_id IS NOT NULL
		GROUP BY category_id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var categoryID string
		var count int
		if err := rows.Scan(&categoryID, &count); err != nil {
			return nil, err
		}
		counts[categoryID] = count
	}
	return counts, rows.Err()
}

func (r *PostgresEmailRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresEmailRepository) MarkArchived(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE emails SET archived = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresEmailRepository) ApplyClassification(ctx context.Context, id, summary, categoryID string) error {
	var category interface{}
	if categoryID != "" {
		category = categoryID
	}
	// A category deleted while the model was answering leaves the email uncategorized.
	query := `
		UPDATE emails SET summary = $1,
			category_id = (SELECT c.id FROM categories c WHERE c.id = $2 AND c.user_id = emails.user_id),
			processed = TRUE, updated_at = NOW()
		WHERE id = $3`
	return r.exec(ctx, query, summary, category, id)
}

func (r *PostgresEmailRepository) SetUnsubscribeStatus(ctx context.Context, id string, status model.UnsubscribeStatus) error {
	query := `UPDATE emails SET unsubscribe_status = $1, updated_at = NOW() WHERE id = $2`
	return r.exec(ctx, query, string(status), id)
}

func (r *PostgresEmailRepository) ClearCategory(ctx context.Context, userID, categoryID string) (int, error) {
	query := `UPDATE emails SET category_id = NULL, updated_at = NOW() WHERE user_id = $1 AND category_id = $2`
	res, err := r.db.ExecContext(ctx, query, userID, categoryID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresEmailRepository) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, `DELETE FROM emails WHERE id = $1`, id)
}
