package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"gacha-bot/internal/model"
	"gacha-bot/internal/service"
)

// AdminAuth is the two-step admin login.
type AdminAuth interface {
	Login(ctx context.Context, username, password string) (string, error)
	ResendOTP(ctx context.Context, challengeID string) error
	VerifyOTP(ctx context.Context, challengeID, code string) (string, time.Time, error)
	Authenticate(ctx context.Context, sessionToken string) (*model.AdminUser, error)
}

// SetStore manages card sets.
type SetStore interface {
	List(ctx context.Context, seasonID *int64) ([]*model.Set, error)
	Get(ctx context.Context, seasonID, setID int64) (*model.Set, error)
	Create(ctx context.Context, s *model.Set) (*model.Set, error)
	Update(ctx context.Context, s *model.Set) (*model.Set, error)
}

type adminKey struct{}

// AdminFromContext returns the admin authenticated for the request.
func AdminFromContext(ctx context.Context) (*model.AdminUser, bool) {
	a, ok := ctx.Value(adminKey{}).(*model.AdminUser)
	return a, ok
}

func (h *handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		admin, err := h.deps.Admin.Authenticate(r.Context(), raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), adminKey{}, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type challengeRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code,omitempty"`
}

// AdminLogin checks the password and sends a one-time code over Telegram.
// POST /admin/auth/login
func (h *handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	challengeID, err := h.deps.Admin.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrOTPDelivery) {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:       err.Error(),
			ChallengeID: challengeID,
		})
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge_id": challengeID})
}

// AdminResendOTP sends a fresh code for a pending challenge.
// POST /admin/auth/resend-otp
func (h *handler) AdminResendOTP(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil || req.ChallengeID == "" {
		writeError(w, http.StatusBadRequest, "challenge_id is required")
		return
	}
	if err := h.deps.Admin.ResendOTP(r.Context(), req.ChallengeID); err != nil {
		if errors.Is(err, service.ErrOTPDelivery) {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error:       err.Error(),
				ChallengeID: req.ChallengeID,
			})
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"challenge_id": req.ChallengeID})
}

// AdminVerifyOTP exchanges a one-time code for a bearer token.
// POST /admin/auth/verify-otp
func (h *handler) AdminVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil || req.ChallengeID == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "challenge_id and code are required")
		return
	}
	tok, expires, err := h.deps.Admin.VerifyOTP(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"token_type": "Bearer",
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

// AdminMe returns the authenticated admin.
// GET /admin/auth/me
func (h *handler) AdminMe(w http.ResponseWriter, r *http.Request) {
	admin, _ := AdminFromContext(r.Context())
	writeJSON(w, http.StatusOK, admin)
}

// ListSets returns all sets, or those of one season when season_id is given.
// GET /admin/sets?season_id=
func (h *handler) ListSets(w http.ResponseWriter, r *http.Request) {
	var season *int64
	if raw := r.URL.Query().Get("season_id"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid season id")
			return
		}
		season = &v
	}

	sets, err := h.deps.Sets.List(r.Context(), season)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if sets == nil {
		sets = []*model.Set{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sets": sets})
}

// GetSet returns one set.
// GET /admin/sets/{season_id}/{set_id}
func (h *handler) GetSet(w http.ResponseWriter, r *http.Request) {
	seasonID, setID, ok := setKeyParams(w, r)
	if !ok {
		return
	}
	set, err := h.deps.Sets.Get(r.Context(), seasonID, setID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

// CreateSet adds a set to a season.
// POST /admin/sets
func (h *handler) CreateSet(w http.ResponseWriter, r *http.Request) {
	var req model.Set
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.ID < 0 || req.SeasonID < 0 {
		writeError(w, http.StatusBadRequest, "name, id and season_id are required")
		return
	}

	created, err := h.deps.Sets.Create(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if admin, ok := AdminFromContext(r.Context()); ok {
		log.Info().
			Str("admin", admin.Username).
			Int64("season_id", created.SeasonID).
			Int64("set_id", created.ID).
			Msg("Set created")
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateSet replaces the mutable fields of a set.
// PUT /admin/sets/{season_id}/{set_id}
func (h *handler) UpdateSet(w http.ResponseWriter, r *http.Request) {
	seasonID, setID, ok := setKeyParams(w, r)
	if !ok {
		return
	}
	var req model.Set
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	req.SeasonID, req.ID = seasonID, setID

	updated, err := h.deps.Sets.Update(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func setKeyParams(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	seasonID, err1 := strconv.ParseInt(chi.URLParam(r, "season_id"), 10, 64)
	setID, err2 := strconv.ParseInt(chi.URLParam(r, "set_id"), 10, 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "invalid set key")
		return 0, 0, false
	}
	return seasonID, setID, true
}
