package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services"
	"github.com/upb/library-portal/utils"
	"github.com/upb/library-portal/views"
)

// Query values for the banner shown on the books page after a redirect.
var notices = map[string]string{
	"created":      "Book added successfully",
	"updated":      "Book updated successfully",
	"deleted":      "Book deleted successfully",
	"checked_out":  "Book checked out successfully",
	"checked_in":   "Book checked in successfully",
	"role_updated": "User role updated. The change applies the next time they sign in.",
}

const unauthorizedMessage = "You don't have permission to access that page."

// BookHandler serves the catalog pages.
type BookHandler struct {
	pages
	catalog CatalogService
	audit   AuditTrail
}

// NewBookHandler creates a new BookHandler
func NewBookHandler(catalog CatalogService, auditTrail AuditTrail, renderer Renderer, cookieName string, logger *zap.Logger) *BookHandler {
	return &BookHandler{
		pages:   pages{renderer: renderer, cookieName: cookieName, logger: logger},
		catalog: catalog,
		audit:   auditTrail,
	}
}

// HandleIndex handles GET /
func (h *BookHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := bearer(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	content := views.IndexContent{Search: search}
	data := h.data(r, "Books", content)
	if r.URL.Query().Get("error") == "unauthorized" {
		data.Error = unauthorizedMessage
	}
	data.Flash = notices[r.URL.Query().Get("notice")]

	books, err := h.catalog.ListBooks(ctx, token, search)
	if err != nil {
		// Anonymous visitors just see the sign-in prompt.
		if services.IsUnauthorizedError(err) && data.User == nil {
			h.renderer.Render(w, http.StatusOK, views.PageIndex, data)
			return
		}
		h.fail(w, r, err, views.PageIndex, data)
		return
	}
	content.Books = books

	if stats, err := h.catalog.Stats(ctx, token); err != nil {
		h.logger.Warn("failed to load catalog stats",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
	} else {
		content.Stats = stats
	}

	data.Content = content
	h.renderer.Render(w, http.StatusOK, views.PageIndex, data)
}

// HandleNew handles GET /books/new
func (h *BookHandler) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, views.PageBookForm, h.data(r, "Add Book", views.BookFormContent{}))
}

// HandleCreate handles POST /books
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, errs := parseBookForm(r)
	data := h.data(r, "Add Book", views.BookFormContent{Input: in, Errors: errs})
	if errs != nil {
		h.renderer.Render(w, http.StatusBadRequest, views.PageBookForm, data)
		return
	}

	book, err := h.catalog.CreateBook(r.Context(), bearer(r), in)
	if err != nil {
		h.fail(w, r, err, views.PageBookForm, data)
		return
	}

	// The catalog may acknowledge a create without echoing the book.
	id, title := 0, in.Title
	if book != nil {
		id = book.ID
		if book.Title != "" {
			title = book.Title
		}
	}
	h.record(r, models.AuditActionBookCreated, id, map[string]interface{}{"title": title})
	http.Redirect(w, r, "/?notice=created", http.StatusSeeOther)
}

// HandleEdit handles GET /books/{id}/edit
func (h *BookHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	book, err := h.catalog.GetBook(r.Context(), bearer(r), id)
	if err != nil {
		h.fail(w, r, err, views.PageError, h.data(r, "", nil))
		return
	}

	content := views.BookFormContent{BookID: id, Input: book.Input()}
	h.renderer.Render(w, http.StatusOK, views.PageBookForm, h.data(r, "Edit Book", content))
}

// HandleUpdate handles POST /books/{id}
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	in, errs := parseBookForm(r)
	data := h.data(r, "Edit Book", views.BookFormContent{BookID: id, Input: in, Errors: errs})
	if errs != nil {
		h.renderer.Render(w, http.StatusBadRequest, views.PageBookForm, data)
		return
	}

	if _, err := h.catalog.UpdateBook(r.Context(), bearer(r), id, in); err != nil {
		h.fail(w, r, err, views.PageBookForm, data)
		return
	}

	h.record(r, models.AuditActionBookUpdated, id, map[string]interface{}{"title": in.Title})
	http.Redirect(w, r, "/?notice=updated", http.StatusSeeOther)
}

// HandleCheckoutForm handles GET /books/{id}/checkout
func (h *BookHandler) HandleCheckoutForm(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	book, err := h.catalog.GetBook(r.Context(), bearer(r), id)
	if err != nil {
		h.fail(w, r, err, views.PageError, h.data(r, "", nil))
		return
	}

	content := views.CheckoutContent{Book: book, Input: models.CheckoutInput{Days: models.DefaultLoanDays}}
	data := h.data(r, "Check Out", content)
	status := http.StatusOK
	if book.IsCheckedOut {
		data.Error = "book is already checked out"
		status = http.StatusConflict
	}
	h.renderer.Render(w, status, views.PageCheckout, data)
}

// HandleCheckout handles POST /books/{id}/checkout
func (h *BookHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	book, err := h.catalog.GetBook(ctx, bearer(r), id)
	if err != nil {
		h.fail(w, r, err, views.PageError, h.data(r, "", nil))
		return
	}

	in, errs := parseCheckoutForm(r)
	data := h.data(r, "Check Out", views.CheckoutContent{Book: book, Input: in, Errors: errs})
	if errs != nil {
		h.renderer.Render(w, http.StatusBadRequest, views.PageCheckout, data)
		return
	}

	if err := h.catalog.Checkout(ctx, bearer(r), id, in); err != nil {
		h.fail(w, r, err, views.PageCheckout, data)
		return
	}

	h.record(r, models.AuditActionBookCheckout, id, map[string]interface{}{
		"title":          book.Title,
		"borrower_email": in.BorrowerEmail,
		"days":           in.Days,
	})
	http.Redirect(w, r, "/?notice=checked_out", http.StatusSeeOther)
}

// HandleCheckin handles POST /books/{id}/checkin
func (h *BookHandler) HandleCheckin(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	if err := h.catalog.Checkin(r.Context(), bearer(r), id); err != nil {
		h.fail(w, r, err, views.PageError, h.data(r, "Could not check in the book", nil))
		return
	}

	h.record(r, models.AuditActionBookCheckin, id, nil)
	http.Redirect(w, r, "/?notice=checked_in", http.StatusSeeOther)
}

// HandleDelete handles POST /books/{id}/delete
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := bookID(r)
	if !ok {
		h.notFound(w, r, "book not found")
		return
	}

	if err := h.catalog.DeleteBook(r.Context(), bearer(r), id); err != nil {
		h.fail(w, r, err, views.PageError, h.data(r, "Could not delete the book", nil))
		return
	}

	h.record(r, models.AuditActionBookDeleted, id, nil)
	http.Redirect(w, r, "/?notice=deleted", http.StatusSeeOther)
}

func (h *BookHandler) record(r *http.Request, action models.AuditAction, id int, details interface{}) {
	if h.audit == nil {
		return
	}
	resourceID := ""
	if id > 0 {
		resourceID = strconv.Itoa(id)
	}
	if err := h.audit.LogBookMutation(middleware.ActorFromRequest(r), action, resourceID, details); err != nil {
		h.logger.Warn("failed to audit book mutation",
			zap.String("action", string(action)),
			zap.Int("book_id", id),
			zap.Error(err))
	}
}

// parseBookForm reads, sanitizes and validates the add/edit form. The error
// map is nil when the input is valid.
func parseBookForm(r *http.Request) (models.BookInput, map[string]string) {
	in := models.BookInput{
		Title:       utils.SanitizeText(r.PostFormValue("title")),
		Author:      utils.SanitizeText(r.PostFormValue("author")),
		Genre:       utils.SanitizeText(r.PostFormValue("genre")),
		ISBN:        utils.SanitizeText(r.PostFormValue("isbn")),
		Description: utils.SanitizeText(r.PostFormValue("description")),
	}

	errs := make(map[string]string)
	if year := strings.TrimSpace(r.PostFormValue("publication_year")); year != "" {
		n, err := strconv.Atoi(year)
		if err != nil {
			errs["publication_year"] = "publication year must be a number"
		} else {
			in.PublicationYear = n
		}
	}
	return in, mergeFieldErrors(errs, utils.ValidateStruct(&in))
}

// parseCheckoutForm reads, sanitizes and validates the checkout form. An empty loan
// period means the default.
func parseCheckoutForm(r *http.Request) (models.CheckoutInput, map[string]string) {
	in := models.CheckoutInput{
		BorrowerName:  utils.SanitizeText(r.PostFormValue("borrower_name")),
		BorrowerEmail: strings.TrimSpace(r.PostFormValue("borrower_email")),
		Days:          models.DefaultLoanDays,
	}

	errs := make(map[string]string)
	if days := strings.TrimSpace(r.PostFormValue("days")); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			errs["days"] = "days must be a number"
		} else {
			in.Days = n
		}
	}
	return in, mergeFieldErrors(errs, utils.ValidateStruct(&in))
}

func mergeFieldErrors(errs map[string]string, err error) map[string]string {
	for field, msg := range utils.GetValidationFields(err) {
		if _, ok := errs[field]; !ok {
			errs[field] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
