// Package catalog talks to the remote library REST API. Every call carries
// the signed-in user's bearer credential so the API can enforce its own
// authorization.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/observability"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services"
	"github.com/upb/library-portal/utils"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// Config configures the catalog client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client is a REST client for the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewClient creates a catalog client. metrics may be nil.
func NewClient(cfg Config, logger *zap.Logger, metrics *observability.Metrics) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		metrics:    metrics,
	}
}

// ListBooks returns the catalog, optionally filtered by a search term.
func (c *Client) ListBooks(ctx context.Context, bearer, search string) ([]models.Book, error) {
	path := "/books"
	if search = strings.TrimSpace(search); search != "" {
		path += "?search=" + url.QueryEscape(search)
	}

	var resp struct {
		Books []models.Book `json:"books"`
	}
	if err := c.do(ctx, "list_books", http.MethodGet, path, bearer, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Books == nil {
		resp.Books = []models.Book{}
	}
	return resp.Books, nil
}

// GetBook fetches a single book.
func (c *Client) GetBook(ctx context.Context, bearer string, id int) (*models.Book, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "get_book", http.MethodGet, bookPath(id), bearer, nil, &raw); err != nil {
		return nil, err
	}
	return decodeBook(raw)
}

// Stats returns catalog totals.
func (c *Client) Stats(ctx context.Context, bearer string) (*models.Stats, error) {
	var stats models.Stats
	if err := c.do(ctx, "stats", http.MethodGet, "/books/stats", bearer, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreateBook adds a book to the catalog. A success status without a body
// yields a nil book and no error.
func (c *Client) CreateBook(ctx context.Context, bearer string, in models.BookInput) (*models.Book, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "create_book", http.MethodPost, "/books", bearer, sanitizeBook(in), &raw); err != nil {
		return nil, err
	}
	return decodeOptionalBook(raw)
}

// UpdateBook replaces the editable fields of a book. Like CreateBook, a
// bodiless success yields a nil book.
func (c *Client) UpdateBook(ctx context.Context, bearer string, id int, in models.BookInput) (*models.Book, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "update_book", http.MethodPut, bookPath(id), bearer, sanitizeBook(in), &raw); err != nil {
		return nil, err
	}
	return decodeOptionalBook(raw)
}

// DeleteBook removes a book.
func (c *Client) DeleteBook(ctx context.Context, bearer string, id int) error {
	return c.do(ctx, "delete_book", http.MethodDelete, bookPath(id), bearer, nil, nil)
}

// Checkout lends a book. A zero Days uses models.DefaultLoanDays.
func (c *Client) Checkout(ctx context.Context, bearer string, id int, in models.CheckoutInput) error {
	if in.Days == 0 {
		in.Days = models.DefaultLoanDays
	}
	in.BorrowerName = utils.SanitizeText(in.BorrowerName)
	in.BorrowerEmail = strings.TrimSpace(in.BorrowerEmail)
	return c.do(ctx, "checkout", http.MethodPost, bookPath(id)+"/checkout", bearer, in, nil)
}

// Checkin returns a checked-out book.
func (c *Client) Checkin(ctx context.Context, bearer string, id int) error {
	return c.do(ctx, "checkin", http.MethodPost, bookPath(id)+"/checkin", bearer, nil, nil)
}

// SetUserRole changes a user's role in the catalog API. The API authorizes
// the call against the bearer, so only admins succeed.
func (c *Client) SetUserRole(ctx context.Context, bearer string, change models.RoleChange) error {
	change.Email = strings.ToLower(strings.TrimSpace(change.Email))
	return c.do(ctx, "set_user_role", http.MethodPost, "/auth/set-role", bearer, change, nil)
}

// Ping checks that the catalog API answers. Any non-5xx status counts as up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/books/stats", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode >= 500 {
		return fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, bearer string, body, out interface{}) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, bearer, body, out)

	outcome := "ok"
	if err != nil {
		outcome = string(services.GetErrorType(err))
		if outcome == "" {
			outcome = "error"
		}
		c.logger.Debug("catalog request failed",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
	}
	if c.metrics != nil {
		c.metrics.CatalogRequests.WithLabelValues(op, outcome).Inc()
		c.metrics.CatalogLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path, bearer string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return services.WrapInternal("failed to marshal catalog request", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return services.WrapInternal("failed to create catalog request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return services.NewDomainError(services.ErrorTypeExternal, services.ErrCatalogTimeout.Message, err)
		}
		return services.NewDomainError(services.ErrorTypeExternal, services.ErrCatalogUnavailable.Message, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return services.WrapExternal("failed to read catalog response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(op, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return services.WrapExternal("invalid catalog response", err)
	}
	return nil
}

// statusError maps a non-2xx catalog response onto the domain error taxonomy.
func statusError(op string, status int, body []byte) error {
	var errType services.ErrorType
	var fallback string

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		errType, fallback = services.ErrorTypeValidation, services.ErrInvalidInput.Message
	case status == http.StatusUnauthorized:
		errType, fallback = services.ErrorTypeUnauthorized, services.ErrSessionExpired.Message
	case status == http.StatusForbidden:
		errType, fallback = services.ErrorTypeForbidden, services.ErrForbidden.Message
	case status == http.StatusNotFound:
		errType, fallback = services.ErrorTypeNotFound, services.ErrBookNotFound.Message
		if op == "set_user_role" {
			fallback = services.ErrUserNotFound.Message
		}
	case status == http.StatusConflict:
		errType, fallback = services.ErrorTypeConflict, services.ErrBookCheckedOut.Message
		if op == "checkin" {
			fallback = services.ErrBookAvailable.Message
		}
	case status == http.StatusTooManyRequests:
		errType, fallback = services.ErrorTypeRateLimit, services.ErrRateLimitExceeded.Message
	default:
		errType, fallback = services.ErrorTypeExternal, services.ErrCatalogUnavailable.Message
	}

	message := apiMessage(body)
	// Upstream 5xx bodies are not shown to users.
	if message == "" || errType == services.ErrorTypeExternal {
		message = fallback
	}

	return services.NewDomainError(errType, message, fmt.Errorf("catalog returned status %d", status)).
		WithDetail("status", status)
}

// apiMessage extracts {"error": "..."} or {"message": "..."} from a body.
func apiMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}

// decodeBook accepts both a bare book and a {"book": {...}} envelope.
func decodeBook(raw json.RawMessage) (*models.Book, error) {
	if len(raw) == 0 {
		return nil, services.WrapExternal("empty catalog response", nil)
	}

	var env struct {
		Book *models.Book `json:"book"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Book != nil {
		return env.Book, nil
	}

	var book models.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, services.WrapExternal("invalid catalog response", err)
	}
	return &book, nil
}

// decodeOptionalBook is decodeBook for mutations, where the status code
// alone means success.
func decodeOptionalBook(raw json.RawMessage) (*models.Book, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	return decodeBook(raw)
}

func sanitizeBook(in models.BookInput) models.BookInput {
	in.Title = utils.SanitizeText(in.Title)
	in.Author = utils.SanitizeText(in.Author)
	in.Genre = utils.SanitizeText(in.Genre)
	in.ISBN = utils.SanitizeText(in.ISBN)
	in.Description = utils.SanitizeText(in.Description)
	return in
}

func bookPath(id int) string {
	return "/books/" + strconv.Itoa(id)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
