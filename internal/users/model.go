package users

import "time"

// User is a persisted account identity. Rows are created on first
// OAuth sign-in and refreshed on every subsequent one.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	PictureURL  string    `json:"pictureUrl"`
	LastLoginAt time.Time `json:"lastLoginAt"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
