package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/models"
	"github.com/upb/library-portal/services"
	"github.com/upb/library-portal/utils"
	"github.com/upb/library-portal/views"
)

// recentActivityLimit caps the audit entries on the dashboard.
const recentActivityLimit = 20

// RoleCounter reports the size of the configured allow-lists.
type RoleCounter interface {
	Counts() (admins, librarians int)
}

// AdminHandler serves the admin dashboard and role changes.
type AdminHandler struct {
	pages
	catalog CatalogService
	audit   AuditTrail
	counter RoleCounter
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(catalog CatalogService, auditTrail AuditTrail, counter RoleCounter, renderer Renderer, cookieName string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		pages:   pages{renderer: renderer, cookieName: cookieName, logger: logger},
		catalog: catalog,
		audit:   auditTrail,
		counter: counter,
	}
}

// HandleDashboard handles GET /admin
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With(zap.String("request_id", middleware.GetRequestIDFromContext(ctx)))

	var content views.AdminContent
	content.AdminCount, content.LibrarianCount = h.counter.Counts()

	data := h.data(r, "Admin", content)
	data.Flash = notices[r.URL.Query().Get("notice")]

	stats, err := h.catalog.Stats(ctx, bearer(r))
	switch {
	case err == nil:
		content.Stats = stats
	case services.IsUnauthorizedError(err):
		h.fail(w, r, err, views.PageAdmin, data)
		return
	default:
		log.Warn("failed to load catalog stats", zap.Error(err))
	}

	if h.audit != nil {
		recent, err := h.audit.Recent(ctx, recentActivityLimit)
		if err != nil {
			log.Warn("failed to load recent activity", zap.Error(err))
		}
		content.Recent = recent
		content.Audit = h.audit.GetStats()
	}

	data.Content = content
	h.renderer.Render(w, http.StatusOK, views.PageAdmin, data)
}

// HandlePromoteForm handles GET /admin/promote
func (h *AdminHandler) HandlePromoteForm(w http.ResponseWriter, r *http.Request) {
	content := views.PromoteContent{
		Input: models.RoleChange{Role: string(roles.RoleLibrarian)},
		Roles: roles.All(),
	}
	h.renderer.Render(w, http.StatusOK, views.PagePromote, h.data(r, "Change Role", content))
}

// HandlePromote handles POST /admin/promote
func (h *AdminHandler) HandlePromote(w http.ResponseWriter, r *http.Request) {
	change := models.RoleChange{
		Email: strings.ToLower(strings.TrimSpace(r.PostFormValue("email"))),
		Role:  strings.ToLower(strings.TrimSpace(r.PostFormValue("role"))),
	}
	errs := mergeFieldErrors(make(map[string]string), utils.ValidateStruct(&change))
	data := h.data(r, "Change Role", views.PromoteContent{Input: change, Roles: roles.All(), Errors: errs})
	if errs != nil {
		h.renderer.Render(w, http.StatusBadRequest, views.PagePromote, data)
		return
	}

	if err := h.catalog.SetUserRole(r.Context(), bearer(r), change); err != nil {
		h.fail(w, r, err, views.PagePromote, data)
		return
	}

	h.recordRoleChange(r, change)
	http.Redirect(w, r, "/admin?notice=role_updated", http.StatusSeeOther)
}

// SetRoleResponse is the response body for POST /api/v1/admin/roles
type SetRoleResponse struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// HandleSetRole handles POST /api/v1/admin/roles
func (h *AdminHandler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	var change models.RoleChange
	if err := json.NewDecoder(r.Body).Decode(&change); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	change.Email = strings.ToLower(strings.TrimSpace(change.Email))
	change.Role = strings.ToLower(strings.TrimSpace(change.Role))

	if err := utils.ValidateStruct(&change); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.catalog.SetUserRole(r.Context(), bearer(r), change); err != nil {
		h.logger.Warn("failed to set user role",
			zap.String("request_id", requestID),
			zap.String("target_email", change.Email),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.recordRoleChange(r, change)
	_ = utils.WriteOK(w, SetRoleResponse{
		Email:   change.Email,
		Role:    change.Role,
		Message: notices["role_updated"],
	})
}

func (h *AdminHandler) recordRoleChange(r *http.Request, change models.RoleChange) {
	h.logger.Info("user role changed",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("target_email", change.Email),
		zap.String("role", change.Role))
	if h.audit == nil {
		return
	}
	if err := h.audit.LogRoleChange(middleware.ActorFromRequest(r), change.Email, change.Role); err != nil {
		h.logger.Warn("failed to audit role change", zap.Error(err))
	}
}
