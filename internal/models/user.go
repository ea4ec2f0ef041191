package models

// UserDB represents a row of the users table
type UserDB struct {
	ID       int64  `json:"id" db:"id"`             // Primary key, assigned by the store
	Name     string `json:"name" db:"name"`         // Display name
	Username string `json:"username" db:"username"` // Unique login name
	Password string `json:"-" db:"password"`        // Password hash
}

// View returns the externally safe projection of the user.
func (u UserDB) View() UserView {
	return UserView{
		ID:       u.ID,
		Name:     u.Name,
		Username: u.Username,
	}
}

// UserView is the only user shape returned to clients
// swagger:model UserView
type UserView struct {
	// User ID
	// example: 1
	ID int64 `json:"id"`

	// Display name
	// example: John Doe
	Name string `json:"name"`

	// Username
	// example: john_doe
	Username string `json:"username"`
}
