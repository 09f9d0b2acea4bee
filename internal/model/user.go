package model

import "time"

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email}
}

// Identity is a verified principal. Token claims carry a snapshot of it taken at
// issuance time, so username and email may lag behind the stored user.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func UnknownAuthor(id int64) Author {
	return Author{ID: id, Username: "Unknown"}
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type VerifyResponse struct {
	Valid bool     `json:"valid"`
	User  Identity `json:"user"`
}

type UserList struct {
	Users []User `json:"users"`
}
