package models

import "time"

// User represents a user of the store.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(150);not null"`
	Email     *string   `json:"email" gorm:"uniqueIndex;type:varchar(255)"`
	Password  string    `json:"-" gorm:"type:varchar(255);not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile holds the optional personal details of a user. One row per user.
type UserProfile struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID      string     `json:"user_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	PhoneNumber string     `json:"phone_number" gorm:"type:varchar(15)"`
	Address     string     `json:"address" gorm:"type:text"`
	Bio         string     `json:"bio" gorm:"type:varchar(500)"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
