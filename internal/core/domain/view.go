package domain

import "github.com/google/uuid"

// RoleRef is the role summary embedded in a UserRolesView.
type RoleRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// UserRolesView is the denormalized list projection of a user and its roles.
type UserRolesView struct {
	ID             uuid.UUID `json:"id"`
	UserName       string    `json:"userName"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"emailConfirmed"`
	Roles          []RoleRef `json:"roles"`
}
