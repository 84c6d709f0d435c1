package domain

type ID string

// User is the subset of the REST API's account row the real-time layer needs.
type User struct {
	ID       ID
	Username string
	IsActive bool
}
