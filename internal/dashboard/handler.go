// Package dashboard exposes the session and monitoring features as a JSON API.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ecoscope/ecoscope/internal/analysis"
	"github.com/ecoscope/ecoscope/internal/platform/httpx"
	"github.com/ecoscope/ecoscope/internal/session"
	"github.com/ecoscope/ecoscope/internal/sos"
	"github.com/ecoscope/ecoscope/internal/weather"
)

// SessionController is the session surface the dashboard drives.
type SessionController interface {
	State() session.State
	Loading() bool
	Subscribe() (<-chan session.State, func())
	SignUp(ctx context.Context, req session.SignUpRequest) session.Result
	SignIn(ctx context.Context, email, password string) session.Result
	SignOut(ctx context.Context) bool
	UpdateProfile(ctx context.Context, p session.Profile) (session.Profile, bool)
	Reset() session.State
}

// Analyzer forwards monitoring requests to the analysis backend.
type Analyzer interface {
	Analyze(ctx context.Context, module string, req analysis.Request) (*analysis.Result, error)
	CompareSatellite(ctx context.Context, req analysis.Request) (*analysis.Comparison, error)
}

// WeatherSource returns current conditions.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (*weather.Conditions, error)
}

// OrphanReporter requests an audit after a sign-up left an orphaned account.
type OrphanReporter interface {
	ReportOrphan(ctx context.Context, email string) error
}

// Handler serves the dashboard API.
type Handler struct {
	logger     *slog.Logger
	controller SessionController
	analyzer   Analyzer
	weather    WeatherSource
	orphans    OrphanReporter
	validate   *validator.Validate
	heartbeat  time.Duration
}

// NewHandler builds a dashboard handler. The orphan reporter may be nil.
func NewHandler(logger *slog.Logger, controller SessionController, analyzer Analyzer, weather WeatherSource, orphans OrphanReporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		controller: controller,
		analyzer:   analyzer,
		weather:    weather,
		orphans:    orphans,
		validate:   newValidator(),
		heartbeat:  25 * time.Second,
	}
}

// MountRoutes registers the request/response routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.getSession)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.signUp)
		r.Post("/signin", h.signIn)
		r.Post("/signout", h.signOut)
		r.Post("/reset", h.reset)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.requireSession)
		r.Put("/profile", h.updateProfile)
		r.Post("/analysis/{module}", h.analyze)
		r.Post("/satellite/compare", h.compareSatellite)
		r.Get("/weather", h.currentWeather)
		r.Post("/sos", h.draftSOS)
	})
}

// MountStreams registers long-lived routes that must not be cut by request
// timeouts.
func (h *Handler) MountStreams(r chi.Router) {
	r.Get("/session/events", h.sessionEvents)
}

type sessionView struct {
	State         string           `json:"state"`
	Reason        string           `json:"reason,omitempty"`
	Informational bool             `json:"informational"`
	Profile       *session.Profile `json:"profile,omitempty"`
	Loading       bool             `json:"loading"`
}

func (h *Handler) view(st session.State) sessionView {
	return sessionView{
		State:         st.Kind.String(),
		Reason:        st.Reason,
		Informational: st.Informational(),
		Profile:       st.Profile,
		Loading:       h.controller.Loading(),
	}
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.view(h.controller.State()))
}

func (h *Handler) sessionEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Streaming unsupported", "")
		return
	}
	states, cancel := h.controller.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			data, err := json.Marshal(h.view(st))
			if err != nil {
				h.logger.Error("encode session event", slog.Any("error", err))
				return
			}
			if _, err := fmt.Fprintf(w, "event: session\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var form signUpForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	form.trim()
	if err := h.validate.Struct(form); err != nil {
		h.validationFailed(w, err)
		return
	}
	res := h.controller.SignUp(r.Context(), session.SignUpRequest{
		FirstName:         form.FirstName,
		LastName:          form.LastName,
		Email:             form.Email,
		PhoneNumber:       form.PhoneNumber,
		PreferredLanguage: normalizeLanguage(form.PreferredLanguage),
		Password:          form.Password,
	})
	h.writeResult(w, r, res, form.Email)
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var form signInForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	form.Email = trimmed(form.Email)
	if err := h.validate.Struct(form); err != nil {
		h.validationFailed(w, err)
		return
	}
	h.writeResult(w, r, h.controller.SignIn(r.Context(), form.Email, form.Password), form.Email)
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	ok := h.controller.SignOut(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": ok})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.view(h.controller.Reset()))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	current := profileFromContext(r.Context())
	var form profileForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	form.trim()
	if err := h.validate.Struct(form); err != nil {
		h.validationFailed(w, err)
		return
	}
	next := session.Profile{
		ID:                current.ID,
		FirstName:         form.FirstName,
		LastName:          form.LastName,
		Email:             form.Email,
		PhoneNumber:       form.PhoneNumber,
		PreferredLanguage: normalizeLanguage(form.PreferredLanguage),
		CreatedAt:         current.CreatedAt,
	}
	updated, ok := h.controller.UpdateProfile(r.Context(), next)
	if !ok {
		httpx.Problem(w, http.StatusBadGateway, "Profile update failed", "")
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	res, err := h.analyzer.Analyze(r.Context(), chi.URLParam(r, "module"), req)
	if err != nil {
		h.analysisFailed(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) compareSatellite(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	res, err := h.analyzer.CompareSatellite(r.Context(), req)
	if err != nil {
		h.analysisFailed(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) currentWeather(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		httpx.ValidationProblem(w, map[string]string{"lat,lon": "Valid coordinates are required"})
		return
	}
	cond, err := h.weather.Current(r.Context(), lat, lon)
	if err != nil {
		if errors.Is(err, weather.ErrNotConfigured) {
			httpx.Problem(w, http.StatusServiceUnavailable, "Weather unavailable", "No weather provider is configured")
			return
		}
		h.logger.Warn("weather lookup failed", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
		return
	}
	httpx.JSON(w, http.StatusOK, cond)
}

func (h *Handler) draftSOS(w http.ResponseWriter, r *http.Request) {
	var form sosForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		h.validationFailed(w, err)
		return
	}
	contacts := form.Contacts
	if len(contacts) == 0 {
		if phone := profileFromContext(r.Context()).PhoneNumber; phone != "" {
			contacts = []string{phone}
		}
	}
	var loc *sos.Location
	if form.Location != nil {
		loc = &sos.Location{Lat: form.Location.Lat, Lon: form.Location.Lon}
	}
	httpx.JSON(w, http.StatusOK, sos.Draft(loc, contacts))
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res session.Result, email string) {
	switch out := res.(type) {
	case session.Success:
		httpx.JSON(w, http.StatusOK, h.view(h.controller.State()))
	case *session.Failure:
		if out.Kind == session.ProfileWriteError {
			h.reportOrphan(r.Context(), email)
			httpx.Problem(w, http.StatusBadGateway, "Profile could not be saved", out.Message)
			return
		}
		httpx.Problem(w, http.StatusUnauthorized, "Authentication failed", out.Message)
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) reportOrphan(ctx context.Context, email string) {
	if h.orphans == nil {
		return
	}
	if err := h.orphans.ReportOrphan(context.WithoutCancel(ctx), email); err != nil {
		h.logger.Error("enqueue orphan audit", slog.String("email", email), slog.Any("error", err))
	}
}

func (h *Handler) validationFailed(w http.ResponseWriter, err error) {
	if fields, ok := fieldErrors(err); ok {
		httpx.ValidationProblem(w, fields)
		return
	}
	httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
}

func (h *Handler) analysisFailed(w http.ResponseWriter, err error) {
	var statusErr *analysis.StatusError
	switch {
	case errors.Is(err, analysis.ErrUnknownModule):
		httpx.Problem(w, http.StatusNotFound, "Unknown module", err.Error())
	case errors.Is(err, analysis.ErrInvalidRange):
		httpx.ValidationProblem(w, map[string]string{"before": "Start date must not be after end date"})
	case errors.As(err, &statusErr):
		httpx.Problem(w, http.StatusBadGateway, "Analysis failed", statusErr.Detail)
	default:
		if fields, ok := fieldErrors(err); ok {
			httpx.ValidationProblem(w, fields)
			return
		}
		h.logger.Warn("analysis request failed", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrUnavailable, err))
	}
}
