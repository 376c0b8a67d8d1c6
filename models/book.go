package models

import "time"

// DefaultLoanDays is used when a checkout does not specify a duration.
const DefaultLoanDays = 14

// Book mirrors the catalog API's book resource.
type Book struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	Genre           string     `json:"genre,omitempty"`
	PublicationYear int        `json:"publication_year,omitempty"`
	ISBN            string     `json:"isbn,omitempty"`
	Description     string     `json:"description,omitempty"`
	IsCheckedOut    bool       `json:"is_checked_out"`
	BorrowerName    string     `json:"borrower_name,omitempty"`
	BorrowerEmail   string     `json:"borrower_email,omitempty"`
	CheckoutDate    *time.Time `json:"checkout_date,omitempty"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsOverdue reports whether a checked-out book is past its due date.
func (b *Book) IsOverdue(now time.Time) bool {
	return b.IsCheckedOut && b.DueDate != nil && now.After(*b.DueDate)
}

// Input returns the editable fields of b, for pre-filling the edit form.
func (b *Book) Input() BookInput {
	return BookInput{
		Title:           b.Title,
		Author:          b.Author,
		Genre:           b.Genre,
		PublicationYear: b.PublicationYear,
		ISBN:            b.ISBN,
		Description:     b.Description,
	}
}

// Stats summarizes the catalog.
type Stats struct {
	TotalBooks      int `json:"total_books"`
	AvailableBooks  int `json:"available_books"`
	CheckedOutBooks int `json:"checked_out_books"`
	OverdueBooks    int `json:"overdue_books"`
}

// BookInput is the payload for creating or updating a book.
type BookInput struct {
	Title           string `json:"title" validate:"required,max=255"`
	Author          string `json:"author" validate:"required,max=255"`
	Genre           string `json:"genre,omitempty" validate:"max=100"`
	PublicationYear int    `json:"publication_year,omitempty" validate:"min=0,max=9999"`
	ISBN            string `json:"isbn,omitempty" validate:"max=32"`
	Description     string `json:"description,omitempty" validate:"max=4000"`
}

// CheckoutInput is the payload for lending a book.
type CheckoutInput struct {
	BorrowerName  string `json:"borrower_name" validate:"required,max=255"`
	BorrowerEmail string `json:"borrower_email" validate:"required,email"`
	Days          int    `json:"days" validate:"min=1,max=365"`
}

// RoleChange asks the catalog API to give a user a different role.
type RoleChange struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=member librarian admin"`
}
