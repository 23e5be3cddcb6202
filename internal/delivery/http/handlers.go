package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hearth-app/backend/internal/config"
	"github.com/hearth-app/backend/internal/domain"
	"github.com/hearth-app/backend/internal/middleware"
	"github.com/hearth-app/backend/internal/ratelimit"
	"github.com/hearth-app/backend/internal/usecase"
)

type Handler struct {
	sessions  *usecase.SessionUsecase
	projects  *usecase.ProjectUsecase
	tasks     *usecase.TaskUsecase
	userRepo  domain.UserRepository
	eventRepo domain.LoginEventRepository
	limiter   *ratelimit.Limiter
	authCfg   *config.AuthConfig
}

func NewHandler(
	sessions *usecase.SessionUsecase,
	projects *usecase.ProjectUsecase,
	tasks *usecase.TaskUsecase,
	userRepo domain.UserRepository,
	eventRepo domain.LoginEventRepository,
	limiter *ratelimit.Limiter,
	authCfg *config.AuthConfig,
) *Handler {
	return &Handler{
		sessions:  sessions,
		projects:  projects,
		tasks:     tasks,
		userRepo:  userRepo,
		eventRepo: eventRepo,
		limiter:   limiter,
		authCfg:   authCfg,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// Auth handlers

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	User   *domain.User       `json:"user"`
	Tokens *usecase.TokenPair `json:"tokens"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Email == "" || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email, username and password are required")
		return
	}

	user, tokens, err := h.sessions.Register(r.Context(), req.Email, req.Username, req.Password)
	if errors.Is(err, usecase.ErrAlreadyRegistered) {
		writeError(w, http.StatusConflict, "Email or username already registered")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	setAuthCookies(w, tokens, h.authCfg.AccessTTL, h.authCfg.RefreshTTL)
	writeJSON(w, http.StatusCreated, authResponse{User: user, Tokens: tokens})
}

type loginRequest struct {
	// Identifier is an email address or a username; Email is accepted as an
	// alias for clients that only ever send emails.
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Credentials are required")
		return
	}

	user, tokens, err := h.sessions.Login(r.Context(), identifier, req.Password,
		middleware.ClientAddress(r), r.UserAgent())
	if errors.Is(err, usecase.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if errors.Is(err, usecase.ErrAccountInactive) {
		writeError(w, http.StatusForbidden, "Account is deactivated")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to login")
		return
	}

	setAuthCookies(w, tokens, h.authCfg.AccessTTL, h.authCfg.RefreshTTL)
	writeJSON(w, http.StatusOK, authResponse{User: user, Tokens: tokens})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.sessions.Refresh(r.Context(), extractRefreshToken(r))
	switch {
	case err == nil:
	case errors.Is(err, usecase.ErrMissingToken),
		errors.Is(err, usecase.ErrMalformedToken),
		errors.Is(err, usecase.ErrTokenNotFoundOrExpired):
		writeError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
		return
	case errors.Is(err, usecase.ErrTokenRevoked):
		// Distinct message: presenting a revoked token can mean the token
		// was stolen and already rotated by someone else.
		writeError(w, http.StatusUnauthorized, "Refresh token has been revoked")
		return
	case errors.Is(err, usecase.ErrUserInactive):
		writeError(w, http.StatusForbidden, "Account is deactivated")
		return
	default:
		writeError(w, http.StatusInternalServerError, "Failed to refresh session")
		return
	}

	setAuthCookies(w, tokens, h.authCfg.AccessTTL, h.authCfg.RefreshTTL)
	writeJSON(w, http.StatusOK, tokens)
}

// Logout always succeeds from the client's point of view; the cookies are
// cleared even when the token was absent or the store was unreachable.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Logout(r.Context(), extractRefreshToken(r))
	clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.sessions.GetUserByID(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Project handlers

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.projects.Create(r.Context(), userID, req.Name, req.Description)
	if errors.Is(err, usecase.ErrProjectName) {
		writeError(w, http.StatusBadRequest, "Project name is required")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, project)
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	includeArchived := r.URL.Query().Get("archived") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	projects, total, err := h.projects.List(r.Context(), userID, includeArchived, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"total":    total,
	})
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	project, err := h.projects.Get(r.Context(), userID, projectID)
	if h.writeProjectError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	project, err := h.projects.Update(r.Context(), userID, projectID, req.Name, req.Description)
	if h.writeProjectError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *Handler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	if err := h.projects.SetArchived(r.Context(), userID, projectID, true); h.writeProjectError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) projectScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	projectID, err := uuid.Parse(chi.URLParam(r, "projectId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Project not found")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, projectID, true
}

// writeProjectError reports whether err was written to the response.
func (h *Handler) writeProjectError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, usecase.ErrProjectNotFound), errors.Is(err, usecase.ErrNotProjectOwner):
		// Another user's project is reported as absent, not forbidden.
		writeError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, usecase.ErrProjectName):
		writeError(w, http.StatusBadRequest, "Project name is required")
	default:
		writeError(w, http.StatusInternalServerError, "Project operation failed")
	}
	return true
}

// Task handlers

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	var input usecase.CreateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.tasks.Create(r.Context(), userID, projectID, &input)
	if h.writeTaskError(w, err) {
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.projectScope(w, r)
	if !ok {
		return
	}

	status := r.URL.Query().Get("status")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	tasks, total, err := h.tasks.ListByProject(r.Context(), userID, projectID, status, limit, offset)
	if h.writeTaskError(w, err) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": total,
	})
}

func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.taskScope(w, r)
	if !ok {
		return
	}

	var input usecase.UpdateTaskInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	task, err := h.tasks.Update(r.Context(), userID, taskID, &input)
	if h.writeTaskError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.taskScope(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Complete(r.Context(), userID, taskID)
	if h.writeTaskError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.taskScope(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), userID, taskID); h.writeTaskError(w, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) taskScope(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}
	taskID, err := uuid.Parse(chi.URLParam(r, "taskId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Task not found")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, taskID, true
}

func (h *Handler) writeTaskError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, usecase.ErrTaskNotFound), errors.Is(err, usecase.ErrNotTaskOwner):
		writeError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, usecase.ErrProjectNotFound), errors.Is(err, usecase.ErrNotProjectOwner):
		writeError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, usecase.ErrTaskTitle):
		writeError(w, http.StatusBadRequest, "Task title is required")
	case errors.Is(err, usecase.ErrTaskStatus):
		writeError(w, http.StatusBadRequest, "Unknown task status")
	default:
		writeError(w, http.StatusInternalServerError, "Task operation failed")
	}
	return true
}

// Admin handlers

func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, total, err := h.userRepo.ListAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// AdminSetUserActive toggles an account. Deactivating also revokes the
// user's refresh tokens so the session dies with the next refresh.
func (h *Handler) AdminSetUserActive(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.userRepo.SetActive(r.Context(), userID, req.Active); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	var revoked int64
	if !req.Active {
		if revoked, err = h.sessions.RevokeAllSessions(r.Context(), userID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to revoke sessions")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active":           req.Active,
		"sessions_revoked": revoked,
	})
}

func (h *Handler) AdminGetStats(w http.ResponseWriter, r *http.Request) {
	_, totalUsers, err := h.userRepo.ListAll(r.Context(), 1, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	activeToday, err := h.eventRepo.ActiveUsers(r.Context(), time.Now().Add(-24*time.Hour))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_users":  totalUsers,
		"active_today": activeToday,
	})
}

func (h *Handler) AdminListLoginEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	events, total, err := h.eventRepo.ListRecent(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list login events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

func (h *Handler) AdminPurgeExpiredTokens(w http.ResponseWriter, r *http.Request) {
	purged, err := h.sessions.PurgeExpiredTokens(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to purge tokens")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

type rateLimitResetRequest struct {
	Route   string `json:"route"`
	Address string `json:"address"`
}

// AdminResetRateLimit clears one client's counter, e.g. to unblock a
// legitimate user who tripped the gate.
func (h *Handler) AdminResetRateLimit(w http.ResponseWriter, r *http.Request) {
	var req rateLimitResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Route == "" || req.Address == "" {
		writeError(w, http.StatusBadRequest, "Route and address are required")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"reset": h.limiter.Reset(r.Context(), req.Route, req.Address),
	})
}
