package entity

import (
	"time"
)

type User struct {
	ID          string    `json:"id" firestore:"id"`
	Email       string    `json:"email" firestore:"email"`
	DisplayName string    `json:"display_name" firestore:"displayName"`
	Phone       string    `json:"phone,omitempty" firestore:"phone,omitempty"`
	Role        string    `json:"role" firestore:"role"` // farmer, buyer, admin
	Location    Location  `json:"location" firestore:"location"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

// Name returns something printable for system messages.
func (u *User) Name() string {
	if u == nil {
		return "Someone"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}
