package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vibeconnect/social-backend/internal/models"
)

// ErrVerificationCodeNotFound нет подходящего непросроченного кода.
var ErrVerificationCodeNotFound = errors.New("verification code not found")

// VerificationRepository хранит коды подтверждения email.
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// UpsertCode сохраняет код для email, заменяя предыдущий: действует только последний выданный.
func (r *VerificationRepository) UpsertCode(ctx context.Context, pv *models.PendingVerification) error {
	pv.Email = strings.ToLower(strings.TrimSpace(pv.Email))
	query := `
		INSERT INTO pending_verifications (email, code, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, pv.Email, pv.Code, pv.CreatedAt, pv.ExpiresAt); err != nil {
		return fmt.Errorf("verification repository: upsert code %w", err)
	}
	return nil
}

// ConsumeCode атомарно удаляет совпавший непросроченный код.
// Из двух конкурентных запросов с одним кодом успешен только один.
func (r *VerificationRepository) ConsumeCode(ctx context.Context, email, code string, now time.Time) (*models.PendingVerification, error) {
	var pv models.PendingVerification
	err := r.db.GetContext(ctx, &pv, `
		DELETE FROM pending_verifications
		WHERE email = LOWER($1) AND code = $2 AND expires_at > $3
		RETURNING email, code, created_at, expires_at
	`, strings.TrimSpace(email), code, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVerificationCodeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verification repository: consume code %w", err)
	}
	return &pv, nil
}
