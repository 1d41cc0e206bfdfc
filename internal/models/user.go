package models

import (
	"time"

	"github.com/google/uuid"
)

// User — пользователь с целочисленным балансом кредитов.
// Баланс никогда не уходит в минус: списание — атомарный check-then-subtract.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Credits      int       `json:"credits" db:"credits"`
	IsAdmin      bool      `json:"isAdmin" db:"is_admin"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
