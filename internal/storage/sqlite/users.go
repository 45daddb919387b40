package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/halverapp/halver-backend/internal/models"
	"github.com/halverapp/halver-backend/internal/storage"
)

// CreateUser persists a user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, phone, default_authorization_code, default_recipient_code, device_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.Phone,
		nullable(user.DefaultAuthorizationCode), nullable(user.DefaultRecipientCode),
		nullable(user.DeviceToken), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	var authCode, recipientCode, deviceToken sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, default_authorization_code, default_recipient_code, device_token, created_at
		 FROM users WHERE id = ?`,
		userID,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Phone, &authCode, &recipientCode, &deviceToken, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", userID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	user.DefaultAuthorizationCode = authCode.String
	user.DefaultRecipientCode = recipientCode.String
	user.DeviceToken = deviceToken.String
	return user, nil
}

// CreateUnregisteredParticipant persists a phone-only participant stub.
func (s *SQLiteStore) CreateUnregisteredParticipant(ctx context.Context, p *models.UnregisteredParticipant) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO unregistered_participants (id, name, phone, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.Name, p.Phone, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert unregistered participant: %w", err)
	}
	return nil
}
