package models

// UpdateUserRequest represents the JSON body for PATCH /users/{id}
// swagger:model UpdateUserRequest
type UpdateUserRequest struct {
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

// IDResponse is returned by update and delete
// swagger:model IDResponse
type IDResponse struct {
	// Always true
	// example: true
	Success bool `json:"success"`

	// User ID
	// example: 1
	ID int64 `json:"id"`
}
