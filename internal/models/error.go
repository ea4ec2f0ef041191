package models

// ErrorResponse is the body of every error response
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Always false
	// example: false
	Success bool `json:"success"`

	// HTTP status code
	// example: 404
	Error int `json:"error"`

	// Fixed message for the code
	// example: resource not found
	Message string `json:"message"`
}
