package bookshelf

// SubmitRequest contains parameters for submitting a new book
type SubmitRequest struct {
	Actor       Actor
	Title       string
	Author      string
	Category    string
	Description string
	Cover       Upload
	Content     Upload
}

// ListApprovedRequest filters the public catalog. Both fields match
// case-insensitive substrings; Search covers title, author and description.
type ListApprovedRequest struct {
	Search   string
	Category string
}
