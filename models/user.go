package models

import "time"

type User struct {
	ID             string    `json:"id" bson:"_id"`
	Username       string    `json:"username" bson:"username"`
	Email          string    `json:"email" bson:"email"`
	FullName       *string   `json:"full_name" bson:"full_name,omitempty"`
	HashedPassword string    `json:"-" bson:"hashed_password"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

// Principal is the identity carried by a verified bearer token. A nil *Principal is an
// anonymous caller.
type Principal struct {
	UserID   string
	Username string
}
