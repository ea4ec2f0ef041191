package models

// UsersPerPage is the fixed search page size.
const UsersPerPage = 10

// SearchResponse is one page of search results
// swagger:model SearchResponse
type SearchResponse struct {
	// Always true
	// example: true
	Success bool `json:"success"`

	// Users on the requested page
	Users []UserView `json:"users"`

	// Number of all matching users
	// example: 12
	TotalUsers int `json:"total_users"`
}
