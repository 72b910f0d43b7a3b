package users

import (
	"strings"
	"time"
)

// Role enumerates account roles.
type Role string

const (
	// RoleStudent is the default role for self-registered accounts.
	RoleStudent Role = "student"
	// RoleAdmin grants catalog management access.
	RoleAdmin Role = "admin"
	// RoleCounselor marks advisory staff accounts.
	RoleCounselor Role = "counselor"
)

// User is an account row. Usernames and emails are unique; the database
// constraint is the enforcement, the service pre-check only produces a
// friendlier error.
type User struct {
	ID             string     `gorm:"column:id;primaryKey;size:190"`
	Username       string     `gorm:"column:username;size:50;not null;uniqueIndex"`
	Email          string     `gorm:"column:email;size:320;not null;uniqueIndex"`
	FullName       string     `gorm:"column:full_name;size:255;not null;default:''"`
	HashedPassword string     `gorm:"column:hashed_password;size:255;not null"`
	Role           Role       `gorm:"column:role;size:32;not null;default:'student'"`
	IsActive       bool       `gorm:"column:is_active;not null;default:true"`
	IsVerified     bool       `gorm:"column:is_verified;not null;default:false"`
	Phone          string     `gorm:"column:phone;size:20;not null;default:''"`
	Location       string     `gorm:"column:location;size:255;not null;default:''"`
	Bio            string     `gorm:"column:bio;type:text;not null;default:''"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null"`
	LastLoginAt    *time.Time `gorm:"column:last_login_at"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// CreateInput carries the fields accepted when registering an account.
type CreateInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Role     Role
}

// Patch lists the mutable fields for partial updates. Nil pointers leave
// the current value untouched. The id, created_at and password digest are
// not representable here, so they cannot be patched.
type Patch struct {
	Username   *string
	Email      *string
	Password   *string
	FullName   *string
	Phone      *string
	Location   *string
	Bio        *string
	IsActive   *bool
	IsVerified *bool
}

// ListFilter narrows List. String fields match by case-insensitive
// substring, IsActive by equality.
type ListFilter struct {
	Username string
	Email    string
	IsActive *bool
}

// NormalizeEmail lowercases and trims an email for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
