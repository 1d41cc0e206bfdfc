package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"storyboard-server/internal/interfaces"
	"storyboard-server/internal/models"
)

// Compile-time check to ensure pgUserRepository implements UserRepository
var _ interfaces.UserRepository = (*pgUserRepository)(nil)

type pgUserRepository struct {
	db     interfaces.DBTX
	logger *zap.Logger
}

// NewPgUserRepository creates a new PostgreSQL-backed UserRepository.
func NewPgUserRepository(db interfaces.DBTX, logger *zap.Logger) interfaces.UserRepository {
	return &pgUserRepository{
		db:     db,
		logger: logger.Named("PgUserRepo"),
	}
}

// CreateUser inserts a new user into the database.
func (r *pgUserRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (email, name, password_hash, credits) VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`
	r.logger.Debug("Executing query", zap.String("query", query), zap.String("email", user.Email))
	err := r.db.QueryRow(ctx, query, user.Email, user.Name, user.PasswordHash, user.Credits).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // 23505 is unique_violation
			r.logger.Warn("Attempted to create duplicate user by email", zap.String("email", user.Email))
			return models.ErrEmailAlreadyExists
		}
		r.logger.Error("Failed to create user in postgres", zap.Error(err), zap.String("email", user.Email))
		return fmt.Errorf("failed to create user in postgres: %w", err)
	}
	r.logger.Info("User created successfully", zap.String("userID", user.ID.String()), zap.String("email", user.Email))
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *pgUserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT id, email, name, password_hash, credits, is_admin, created_at, updated_at FROM users WHERE id = $1`
	user := &models.User{}
	err := r.db.QueryRow(ctx, query, id).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Credits, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found by ID", zap.String("id", id.String()))
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by id from postgres", zap.Error(err), zap.String("id", id.String()))
		return nil, fmt.Errorf("failed to get user by id from postgres: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by their email.
func (r *pgUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, name, password_hash, credits, is_admin, created_at, updated_at FROM users WHERE email = $1`
	user := &models.User{}
	err := r.db.QueryRow(ctx, query, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Credits, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("User not found by email", zap.String("email", email))
			return nil, models.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by email from postgres", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("failed to get user by email from postgres: %w", err)
	}
	return user, nil
}

// DebitCredits атомарно списывает кредиты: проверка баланса и вычитание — один UPDATE,
// поэтому два конкурентных списания не могут оба пройти при недостаточном балансе.
func (r *pgUserRepository) DebitCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("%w: debit amount must be non-negative", models.ErrInvalidInput)
	}

	query := `UPDATE users SET credits = credits - $2, updated_at = NOW() WHERE id = $1 AND credits >= $2`
	tag, err := r.db.Exec(ctx, query, userID, amount)
	if err != nil {
		r.logger.Error("Failed to debit credits", zap.Error(err), zap.String("userID", userID.String()), zap.Int("amount", amount))
		return fmt.Errorf("failed to debit credits: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Либо пользователя нет, либо баланса не хватило — различаем отдельным чтением.
		var credits int
		err := r.db.QueryRow(ctx, `SELECT credits FROM users WHERE id = $1`, userID).Scan(&credits)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to check user balance: %w", err)
		}
		r.logger.Warn("Insufficient credits for debit",
			zap.String("userID", userID.String()),
			zap.Int("required", amount),
			zap.Int("available", credits))
		return models.ErrInsufficientCredits
	}

	r.logger.Debug("Credits debited", zap.String("userID", userID.String()), zap.Int("amount", amount))
	return nil
}

// AddCredits начисляет кредиты пользователю.
func (r *pgUserRepository) AddCredits(ctx context.Context, userID uuid.UUID, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: credit amount must be positive", models.ErrInvalidInput)
	}

	query := `UPDATE users SET credits = credits + $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, userID, amount)
	if err != nil {
		r.logger.Error("Failed to add credits", zap.Error(err), zap.String("userID", userID.String()), zap.Int("amount", amount))
		return fmt.Errorf("failed to add credits: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}

	r.logger.Info("Credits added", zap.String("userID", userID.String()), zap.Int("amount", amount))
	return nil
}
