// Package api exposes HTTP handlers for the emissions ledger.
package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/ecotrack/internal/auth"
	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/observability"
	"example.com/ecotrack/internal/persistence"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	ledger   *domain.Service
	rewards  *domain.RewardsService
	identity *domain.IdentityService
	tokens   auth.Config
}

// NewHandler builds a Handler.
func NewHandler(ledger *domain.Service, rewards *domain.RewardsService, identity *domain.IdentityService, tokens auth.Config) *Handler {
	return &Handler{ledger: ledger, rewards: rewards, identity: identity, tokens: tokens}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/auth/signup", h.signup)
	mux.HandleFunc("/v1/auth/login", h.login)
	mux.HandleFunc("/v1/auth/me", h.currentAccount)
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/summary", h.activitySummary)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/rewards", h.getRewards)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activity, err := h.ledger.RecordActivity(r.Context(), domain.RecordActivityInput{
		OwnerID:      claims.AccountID,
		ActivityType: req.ActivityType,
		Quantity:     *req.Quantity,
		OccurredAt:   req.OccurredAt,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	observability.RecordEntryRecorded(activity.ActivityType)
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > maxListLimit {
				parsed = maxListLimit
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.ledger.ListActivities(r.Context(), claims.AccountID, cursor, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, activity := range activities {
		items = append(items, toActivityView(activity))
	}

	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	if err := h.ledger.DeleteActivity(r.Context(), claims.AccountID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) activitySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	summary, err := h.ledger.Summary(r.Context(), claims.AccountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := SummaryResponse{
		Entries:      summary.Entries,
		NetEmission:  summary.NetEmission,
		TotalEmitted: summary.TotalEmitted,
		TotalSaved:   summary.TotalSaved,
		ByType:       make([]TypeEmissionView, 0, len(summary.ByType)),
	}
	for _, te := range summary.ByType {
		resp.ByType = append(resp.ByType, TypeEmissionView{
			ActivityType: te.ActivityType,
			Entries:      te.Entries,
			Emission:     te.Emission,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	rewards, err := h.rewards.GetRewards(r.Context(), claims.AccountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := RewardsResponse{
		Points: rewards.Points,
		Badges: make([]BadgeView, 0, len(rewards.Badges)),
	}
	for _, badge := range rewards.Badges {
		resp.Badges = append(resp.Badges, BadgeView{
			BadgeID:   badge.ID,
			Name:      badge.Name,
			Icon:      badge.Icon,
			GrantedAt: badge.GrantedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	account, err := h.identity.Signup(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, err := auth.Issue(account.ID, account.Email, h.tokens)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{User: toAccountView(*account), Token: token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	account, err := h.identity.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	token, err := auth.Issue(account.ID, account.Email, h.tokens)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: toAccountView(*account), Token: token})
}

func (h *Handler) currentAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	account, err := h.identity.Account(r.Context(), claims.AccountID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountView(*account))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound), errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrMissingActivityType),
		errors.Is(err, domain.ErrMissingField):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// RecordActivityRequest is the payload for POST /v1/activities. Quantity
// is a pointer so a missing field is distinguishable from zero.
type RecordActivityRequest struct {
	ActivityType string    `json:"type"`
	Quantity     *float64  `json:"quantity"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Validate ensures request correctness.
func (r RecordActivityRequest) Validate() error {
	if strings.TrimSpace(r.ActivityType) == "" {
		return errors.New("type is required")
	}
	if r.Quantity == nil {
		return errors.New("quantity is required")
	}
	if math.IsNaN(*r.Quantity) || math.IsInf(*r.Quantity, 0) || *r.Quantity < 0 {
		return errors.New("quantity must be a finite, non-negative number")
	}
	return nil
}

// SignupRequest is the payload for POST /v1/auth/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the payload for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the account view plus a signed bearer token.
type AuthResponse struct {
	User  AccountView `json:"user"`
	Token string      `json:"token"`
}

// AccountView exposes account details without credentials.
type AccountView struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// ActivityView exposes full details about a ledger entry.
type ActivityView struct {
	ActivityID     string    `json:"activity_id"`
	ActivityType   string    `json:"type"`
	Quantity       float64   `json:"quantity"`
	EmissionAmount float64   `json:"emission_amount"`
	FactorUsed     float64   `json:"factor_used"`
	OccurredAt     time.Time `json:"occurred_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items      []ActivityView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// TypeEmissionView aggregates emissions per activity type.
type TypeEmissionView struct {
	ActivityType string  `json:"type"`
	Entries      int     `json:"entries"`
	Emission     float64 `json:"emission"`
}

// SummaryResponse packages aggregate ledger totals.
type SummaryResponse struct {
	Entries      int                `json:"entries"`
	NetEmission  float64            `json:"net_emission"`
	TotalEmitted float64            `json:"total_emitted"`
	TotalSaved   float64            `json:"total_saved"`
	ByType       []TypeEmissionView `json:"by_type"`
}

// BadgeView exposes an earned badge.
type BadgeView struct {
	BadgeID   string    `json:"badge_id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	GrantedAt time.Time `json:"granted_at"`
}

// RewardsResponse bundles the point balance with earned badges.
type RewardsResponse struct {
	Points int64       `json:"points"`
	Badges []BadgeView `json:"badges"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	return ActivityView{
		ActivityID:     activity.ID,
		ActivityType:   activity.ActivityType,
		Quantity:       activity.Quantity,
		EmissionAmount: activity.EmissionAmount,
		FactorUsed:     activity.FactorUsed,
		OccurredAt:     activity.OccurredAt,
		CreatedAt:      activity.CreatedAt,
	}
}

func toAccountView(account domain.Account) AccountView {
	return AccountView{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		CreatedAt: account.CreatedAt,
	}
}
