package domain

// User is a board participant. Users are owned by the account system; the
// board core only reads them for display and assignment balancing.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
