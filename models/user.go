package models

// User represents a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// UserView is the public projection of a User.
type UserView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// View strips credential material from the user.
func (u User) View() UserView {
	return UserView{ID: u.ID, Username: u.Username}
}
