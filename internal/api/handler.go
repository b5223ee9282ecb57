// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"career-timeline-api/internal/apperrors"
	"career-timeline-api/internal/github"
	"career-timeline-api/internal/model"
	"career-timeline-api/internal/store"
	"career-timeline-api/internal/syncer"
	"career-timeline-api/internal/timeline"
)

// Handler is the container for API dependencies.
type Handler struct {
	profiles   store.ProfileStore
	githubData store.GithubStore
	oauth      *github.OAuth
	states     *github.StateStore
	syncer     *syncer.Orchestrator
	timelines  *timeline.Service
	lookupUser func(ctx context.Context, token string) (*model.ExternalUser, error)
	logger     *slog.Logger
}

// Deps bundles everything NewRouter needs.
type Deps struct {
	Profiles   store.ProfileStore
	GithubData store.GithubStore
	OAuth      *github.OAuth
	States     *github.StateStore
	Syncer     *syncer.Orchestrator
	Timelines  *timeline.Service
	LookupUser func(ctx context.Context, token string) (*model.ExternalUser, error)
	Logger     *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(d Deps) http.Handler {
	h := &Handler{
		profiles:   d.Profiles,
		githubData: d.GithubData,
		oauth:      d.OAuth,
		states:     d.States,
		syncer:     d.Syncer,
		timelines:  d.Timelines,
		lookupUser: d.LookupUser,
		logger:     d.Logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger) // Chi's default logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Route("/v1", func(r chi.Router) {
		r.Route("/integrations/github", func(r chi.Router) {
			r.Get("/connect", h.githubConnect)
			r.Get("/callback", h.githubCallback)
			r.Post("/sync", h.startGithubSync)
			r.Get("/status", h.githubSyncStatus)
		})
		r.Route("/timelines", func(r chi.Router) {
			r.Get("/", h.listTimelines)
			r.Post("/", h.createTimeline)
			r.Post("/node", h.createNode)
			r.Get("/node/{nodeID}", h.getNode)
			r.Patch("/node/{nodeID}", h.updateNode)
			r.Delete("/node/{nodeID}", h.deleteNode)
			r.Get("/{timelineID}", h.getTimeline)
			r.Delete("/{timelineID}", h.deleteTimeline)
			r.Post("/{timelineID}/generate", h.generateTimeline)
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// githubConnect issues an OAuth state tied to the caller and returns the
// GitHub authorization URL.
// GET /v1/integrations/github/connect
func (h *Handler) githubConnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	state, err := h.states.Issue(userID)
	if err != nil {
		h.logger.Error("Failed to issue OAuth state", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"auth_url": h.oauth.AuthURL(state)})
}

// githubCallback completes the OAuth flow: it claims the state, exchanges
// the code for tokens and creates or refreshes the caller's GitHub profile.
// GET /v1/integrations/github/callback?code=...&state=...
func (h *Handler) githubCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		respondWithError(w, http.StatusBadRequest, "Missing 'code' or 'state' parameter")
		return
	}

	userID, ok := h.states.Claim(state)
	if !ok {
		respondWithError(w, http.StatusUnprocessableEntity, "Invalid or expired OAuth state")
		return
	}

	ctx := r.Context()
	tokens, err := h.oauth.ExchangeCode(ctx, code)
	if err != nil {
		h.respondWithAppError(w, err, "Failed to exchange OAuth code")
		return
	}

	profile, err := h.profiles.GetProfile(ctx, userID, model.PlatformGithub)
	if err != nil {
		h.logger.Error("Failed to load profile", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if profile != nil {
		h.logger.Info("Updating existing external profile", "user_id", userID)
		if err := h.profiles.UpdateTokens(ctx, profile.ID, tokens); err != nil {
			h.logger.Error("Failed to update tokens", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	} else {
		h.logger.Info("Creating new external profile", "user_id", userID)
		githubUser, err := h.lookupUser(ctx, tokens.AccessToken)
		if err != nil {
			h.respondWithAppError(w, err, "Failed to fetch GitHub user")
			return
		}
		profile = &model.ExternalProfile{
			UserID:                userID,
			Platform:              model.PlatformGithub,
			ExternalID:            githubUser.ID,
			ExternalUsername:      githubUser.Login,
			AccessToken:           tokens.AccessToken,
			RefreshToken:          tokens.RefreshToken,
			AccessTokenExpiresAt:  tokens.AccessTokenExpiresAt,
			RefreshTokenExpiresAt: tokens.RefreshTokenExpiresAt,
		}
		if err := h.profiles.CreateProfile(ctx, profile); err != nil {
			h.logger.Error("Failed to create profile", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"access_token": tokens.AccessToken,
		"token_type":   tokens.TokenType,
	})
}

// startGithubSync kicks off a full sync in the background. A profile
// already syncing is rejected with 409.
// POST /v1/integrations/github/sync
func (h *Handler) startGithubSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID, model.PlatformGithub)
	if err != nil {
		h.logger.Error("Failed to load profile", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if profile == nil {
		respondWithError(w, http.StatusNotFound, "GitHub account is not connected")
		return
	}
	if profile.SyncStatus == model.SyncStatusSyncing {
		respondWithError(w, http.StatusConflict, "A synchronization is already running")
		return
	}

	// The request context dies with the response; the sync keeps its own.
	go func() {
		if err := h.syncer.Sync(context.Background(), userID); err != nil {
			h.logger.Error("Background sync failed", "user_id", userID, "error", err)
		}
	}()

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "GitHub synchronization has been started."})
}

// githubSyncStatus reports the profile's sync checkpoint fields.
// GET /v1/integrations/github/status
func (h *Handler) githubSyncStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profiles.GetProfile(r.Context(), userID, model.PlatformGithub)
	if err != nil {
		h.logger.Error("Failed to load profile", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if profile == nil {
		respondWithError(w, http.StatusNotFound, "GitHub account is not connected")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"sync_status":          profile.SyncStatus,
		"sync_step":            profile.SyncStep,
		"last_sync_error":      profile.LastSyncError,
		"last_sync_attempt_at": profile.LastSyncAttemptAt,
		"last_synced_at":       profile.LastSyncedAt,
	})
}

// listTimelines returns the caller's timelines without nodes.
// GET /v1/timelines
func (h *Handler) listTimelines(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	timelines, err := h.timelines.ListTimelines(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list timelines", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if timelines == nil {
		timelines = []model.Timeline{}
	}
	respondWithJSON(w, http.StatusOK, timelines)
}

// createTimeline creates a timeline owned by the caller.
// POST /v1/timelines
func (h *Handler) createTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var payload struct {
		Title       string  `json:"title"`
		Description *string `json:"description"`
		Slug        string  `json:"slug"`
		IsPublic    bool    `json:"is_public"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.Title == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "Title is required")
		return
	}

	created, err := h.timelines.CreateTimeline(r.Context(), &model.Timeline{
		UserID:      userID,
		Title:       payload.Title,
		Description: payload.Description,
		Slug:        payload.Slug,
		IsPublic:    payload.IsPublic,
	})
	if err != nil {
		h.respondWithAppError(w, err, "Failed to create timeline")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// getTimeline returns one timeline with its node tree.
// GET /v1/timelines/{timelineID}
func (h *Handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	timelineID, ok := h.pathID(w, r, "timelineID")
	if !ok {
		return
	}

	details, err := h.timelines.GetTimelineDetails(r.Context(), timelineID, userID)
	if err != nil {
		h.respondWithAppError(w, err, "Failed to get timeline")
		return
	}
	respondWithJSON(w, http.StatusOK, details)
}

// deleteTimeline removes a timeline the caller owns.
// DELETE /v1/timelines/{timelineID}
func (h *Handler) deleteTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	timelineID, ok := h.pathID(w, r, "timelineID")
	if !ok {
		return
	}

	if err := h.timelines.DeleteTimeline(r.Context(), timelineID, userID); err != nil {
		h.respondWithAppError(w, err, "Failed to delete timeline")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generateTimeline runs clustering plus AI analysis over a synced
// repository's commits and appends the resulting nodes to the timeline.
// POST /v1/timelines/{timelineID}/generate
func (h *Handler) generateTimeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	timelineID, ok := h.pathID(w, r, "timelineID")
	if !ok {
		return
	}

	var payload struct {
		RepoID int64 `json:"repo_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.RepoID == 0 {
		respondWithError(w, http.StatusBadRequest, "A 'repo_id' field is required")
		return
	}

	commits, err := h.githubData.GetCommitsByRepo(r.Context(), payload.RepoID)
	if err != nil {
		h.logger.Error("Failed to load commits", "repo_id", payload.RepoID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(commits) == 0 {
		respondWithError(w, http.StatusNotFound, "No synced commits found for this repository")
		return
	}

	go func() {
		if err := h.timelines.GenerateNodesForCommits(context.Background(), commits, timelineID, payload.RepoID, userID); err != nil {
			h.logger.Error("Background timeline generation failed", "timeline_id", timelineID, "error", err)
		}
	}()

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Timeline generation has been started."})
}

// createNode creates a node on one of the caller's timelines.
// POST /v1/timelines/node
func (h *Handler) createNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	node, ok := decodeNode(w, r)
	if !ok {
		return
	}

	created, err := h.timelines.CreateNode(r.Context(), node, userID)
	if err != nil {
		h.respondWithAppError(w, err, "Failed to create timeline node")
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// getNode returns a node with its direct children.
// GET /v1/timelines/node/{nodeID}
func (h *Handler) getNode(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}
	nodeID, ok := h.pathID(w, r, "nodeID")
	if !ok {
		return
	}

	node, err := h.timelines.GetNode(r.Context(), nodeID)
	if err != nil {
		h.respondWithAppError(w, err, "Failed to get timeline node")
		return
	}
	respondWithJSON(w, http.StatusOK, node)
}

// updateNode applies a full update to a node.
// PATCH /v1/timelines/node/{nodeID}
func (h *Handler) updateNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	nodeID, ok := h.pathID(w, r, "nodeID")
	if !ok {
		return
	}

	node, ok := decodeNode(w, r)
	if !ok {
		return
	}

	updated, err := h.timelines.UpdateNode(r.Context(), nodeID, node, userID)
	if err != nil {
		h.respondWithAppError(w, err, "Failed to update timeline node")
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

// deleteNode removes a node and its children.
// DELETE /v1/timelines/node/{nodeID}
func (h *Handler) deleteNode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	nodeID, ok := h.pathID(w, r, "nodeID")
	if !ok {
		return
	}

	if err := h.timelines.DeleteNode(r.Context(), nodeID, userID); err != nil {
		h.respondWithAppError(w, err, "Failed to delete timeline node")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser resolves the caller's identity from the X-User-ID header set
// by the gateway in front of this service.
func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		respondWithError(w, http.StatusUnauthorized, "Missing X-User-ID header")
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		respondWithError(w, http.StatusUnauthorized, "Invalid X-User-ID header")
		return 0, false
	}
	return userID, true
}

// pathID parses a positive integer URL parameter.
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid '"+name+"' parameter")
		return 0, false
	}
	return id, true
}

func decodeNode(w http.ResponseWriter, r *http.Request) (*model.TimelineNode, bool) {
	var node model.TimelineNode
	if err := json.NewDecoder(r.Body).Decode(&node); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if node.Title == "" {
		respondWithError(w, http.StatusUnprocessableEntity, "Title is required")
		return nil, false
	}
	return &node, true
}

// respondWithAppError maps the service error types onto HTTP statuses:
// validation failures to 422, missing resources to 404 and upstream
// integration failures to 502.
func (h *Handler) respondWithAppError(w http.ResponseWriter, err error, logMsg string) {
	var (
		validationErr  *apperrors.ValidationError
		notFoundErr    *apperrors.NotFoundError
		integrationErr *apperrors.IntegrationError
	)
	switch {
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusUnprocessableEntity, validationErr.Error())
	case errors.As(err, &notFoundErr):
		respondWithError(w, http.StatusNotFound, notFoundErr.Msg)
	case errors.As(err, &integrationErr):
		h.logger.Error(logMsg, "error", err)
		respondWithError(w, http.StatusBadGateway, integrationErr.Msg)
	default:
		h.logger.Error(logMsg, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
