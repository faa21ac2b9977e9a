package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleCreator UserRole = "creator"
	UserRoleDonor   UserRole = "donor"
)

type User struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

func (r UserRole) IsValid() bool {
	return r == UserRoleCreator || r == UserRoleDonor
}
