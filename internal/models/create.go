package models

// CreateUserRequest represents the JSON body for account creation
// swagger:model CreateUserRequest
type CreateUserRequest struct {
	// Display name
	// required: true
	// example: John Doe
	Name string `json:"name" validate:"required"`

	// Username
	// required: true
	// example: john_doe
	Username string `json:"username" validate:"required"`

	// Password
	// required: true
	// example: secret123
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by account creation and login
// swagger:model TokenResponse
type TokenResponse struct {
	// Always true
	// example: true
	Success bool `json:"success"`

	// User ID
	// example: 1
	ID int64 `json:"id"`

	// JWT token
	// example: JWT_TOKEN
	Token string `json:"token"`
}
