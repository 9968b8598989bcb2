package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    *string    `json:"firstName,omitempty"`
	LastName     *string    `json:"lastName,omitempty"`
	AvatarPath   *string    `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

func (u *User) GetAvatarPath() string {
	if u.AvatarPath != nil {
		return *u.AvatarPath
	}
	return ""
}

type Session struct {
	TokenHash string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
