package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditLog(t *testing.T) {
	log := NewAuditLog(AuditActionSignIn, "session")

	assert.NotEqual(t, uuid.Nil, log.ID)
	assert.Equal(t, AuditActionSignIn, log.Action)
	assert.Equal(t, "session", log.ResourceType)
	assert.False(t, log.Timestamp.IsZero())
}

func TestAuditLog_BuilderMethods(t *testing.T) {
	log := NewAuditLog(AuditActionBookDeleted, "book").
		WithActor("boss@library.org", "admin").
		WithResource("42").
		WithDetails(map[string]string{"title": "Dune"}).
		WithRequest("req-123", "192.168.1.1", "Mozilla/5.0").
		WithError(404, "book not found")

	assert.Equal(t, "boss@library.org", log.ActorEmail)
	assert.Equal(t, "admin", log.ActorRole)
	assert.Equal(t, "42", log.ResourceID)
	assert.Equal(t, "req-123", log.RequestID)
	assert.Equal(t, "192.168.1.1", log.IPAddress)
	assert.Equal(t, "Mozilla/5.0", log.UserAgent)
	require.NotNil(t, log.StatusCode)
	assert.Equal(t, 404, *log.StatusCode)
	require.NotNil(t, log.ErrorMessage)
	assert.Equal(t, "book not found", *log.ErrorMessage)

	var details map[string]string
	require.NoError(t, json.Unmarshal(log.Details, &details))
	assert.Equal(t, "Dune", details["title"])
}

func TestAuditLog_TableName(t *testing.T) {
	assert.Equal(t, "audit_logs", AuditLog{}.TableName())
}

func TestBook_IsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name string
		book Book
		want bool
	}{
		{"available book", Book{IsCheckedOut: false, DueDate: &past}, false},
		{"checked out, due later", Book{IsCheckedOut: true, DueDate: &future}, false},
		{"checked out, past due", Book{IsCheckedOut: true, DueDate: &past}, true},
		{"checked out, no due date", Book{IsCheckedOut: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.book.IsOverdue(now))
		})
	}
}

func TestBook_DecodesCatalogPayload(t *testing.T) {
	payload := `{
		"id": 7,
		"title": "The Left Hand of Darkness",
		"author": "Ursula K. Le Guin",
		"genre": "Science Fiction",
		"publication_year": 1969,
		"isbn": "978-0441478125",
		"is_checked_out": true,
		"borrower_name": "Genly Ai",
		"borrower_email": "genly@ekumen.org",
		"checkout_date": "2025-03-01T10:00:00Z",
		"due_date": "2025-03-15T10:00:00Z",
		"created_at": "2025-01-01T00:00:00Z",
		"updated_at": "2025-03-01T10:00:00Z"
	}`

	var b Book
	require.NoError(t, json.Unmarshal([]byte(payload), &b))
	assert.Equal(t, 7, b.ID)
	assert.Equal(t, 1969, b.PublicationYear)
	assert.True(t, b.IsCheckedOut)
	require.NotNil(t, b.DueDate)
	assert.Equal(t, 15, b.DueDate.Day())

	in := b.Input()
	assert.Equal(t, "The Left Hand of Darkness", in.Title)
	assert.Equal(t, "978-0441478125", in.ISBN)
}
