// Package httpapi exposes the notifier's surface to the host application
// over a small local HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quitpal/notifier/internal/domain"
	"github.com/quitpal/notifier/internal/store"
)

// Service is the notifier surface the API exposes.
type Service interface {
	ScheduleUserNotifications(ctx context.Context, s domain.Settings) error
	OnStartDateChanged(ctx context.Context, userID string, start time.Time) error
	GetUserStats(ctx context.Context, userID string) (domain.Stats, error)
	SendTestNotification(ctx context.Context, userID string) error
	NotificationsEnabled(ctx context.Context, userID string) (bool, error)
}

type handler struct {
	svc Service
	log *zap.Logger
}

// New builds the router.
func New(svc Service, log *zap.Logger) http.Handler {
	h := &handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Put("/settings", h.putSettings)
		r.Put("/start-date", h.putStartDate)
		r.Get("/stats", h.getStats)
		r.Get("/enabled", h.getEnabled)
		r.Post("/test", h.postTest)
	})
	return r
}

type settingsPayload struct {
	Language    string    `json:"language"`
	BuddyName   string    `json:"buddy_name"`
	BuddyID     string    `json:"buddy_id"`
	Gender      string    `json:"gender"`
	StartDate   time.Time `json:"start_date"`
	MorningTime string    `json:"morning_time"`
	EveningTime string    `json:"evening_time"`
	Timezone    string    `json:"timezone"`
	Enabled     bool      `json:"enabled"`
}

func (h *handler) putSettings(w http.ResponseWriter, r *http.Request) {
	var p settingsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s := domain.Settings{
		UserID:      chi.URLParam(r, "userID"),
		Language:    p.Language,
		BuddyName:   p.BuddyName,
		BuddyID:     p.BuddyID,
		Gender:      p.Gender,
		StartDate:   p.StartDate.UTC(),
		MorningTime: p.MorningTime,
		EveningTime: p.EveningTime,
		Timezone:    p.Timezone,
		Enabled:     p.Enabled,
	}
	if err := h.svc.ScheduleUserNotifications(r.Context(), s); err != nil {
		h.log.Error("schedule failed", zap.Error(err), zap.String("user_id", s.UserID))
		writeError(w, http.StatusInternalServerError, "couldn't schedule reminders, will retry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "scheduled"})
}

func (h *handler) putStartDate(w http.ResponseWriter, r *http.Request) {
	var p struct {
		StartDate time.Time `json:"start_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := h.svc.OnStartDateChanged(r.Context(), userID, p.StartDate); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		h.log.Error("start date reset failed", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusInternalServerError, "couldn't schedule reminders, will retry")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rescheduled"})
}

func (h *handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetUserStats(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	resp := map[string]any{
		"total_scheduled": stats.Total,
		"sent":            stats.Sent,
		"pending":         stats.Pending,
	}
	if stats.Next != nil {
		resp["next_notification"] = map[string]any{
			"id":           stats.Next.ID,
			"day":          stats.Next.Day,
			"scheduled_at": stats.Next.ScheduledAt,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) getEnabled(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.svc.NotificationsEnabled(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		writeError(w, http.StatusInternalServerError, "settings unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (h *handler) postTest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.svc.SendTestNotification(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown user")
			return
		}
		h.log.Warn("test notification failed", zap.Error(err), zap.String("user_id", userID))
		writeError(w, http.StatusBadGateway, "test notification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
