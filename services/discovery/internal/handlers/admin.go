package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/media-platform/internal/platform/api"
	"github.com/example/media-platform/internal/platform/auth"
	"github.com/example/media-platform/internal/platform/httpserver"
	"github.com/example/media-platform/internal/settings"
)

func writeSettingsError(w http.ResponseWriter, rid string, err error) {
	switch {
	case errors.Is(err, settings.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", err.Error(), rid)
	case errors.Is(err, settings.ErrInvalidSeverity):
		api.BadRequest(w, "INVALID_SEVERITY", err.Error(), rid, nil)
	default:
		api.Internal(w, rid)
	}
}

func adminID(r *http.Request) string {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}

// GetAdminSettings handles GET /v1/admin/settings.
func GetAdminSettings(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Get(r.Context())
		if err != nil {
			writeSettingsError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.WriteJSON(w, http.StatusOK, st)
	}
}

type featuredRequest struct {
	ItemID int64 `json:"item_id"`
}

// PutFeatured handles PUT /v1/admin/featured.
func PutFeatured(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req featuredRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if req.ItemID <= 0 {
			api.BadRequest(w, "INVALID_ITEM", "item_id must be positive", rid, nil)
			return
		}
		st, err := svc.SetFeatured(r.Context(), adminID(r), req.ItemID)
		if err != nil {
			writeSettingsError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"featured_item_id": st.FeaturedItemID})
	}
}

// DeleteFeatured handles DELETE /v1/admin/featured.
func DeleteFeatured(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.ClearFeatured(r.Context(), adminID(r)); err != nil {
			writeSettingsError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.NoContent(w)
	}
}

type lockdownRequest struct {
	Locked    *bool      `json:"locked"`
	GuestOnly *bool      `json:"guest_only"`
	Message   string     `json:"message"`
	Until     *time.Time `json:"until"`
}

// PutLockdown handles PUT /v1/admin/lockdown. Either flag may be sent alone.
func PutLockdown(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req lockdownRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if req.Locked == nil && req.GuestOnly == nil {
			api.BadRequest(w, "MISSING_FIELD", "locked or guest_only is required", rid, nil)
			return
		}
		var (
			st  settings.Settings
			err error
		)
		if req.Locked != nil {
			if st, err = svc.SetLockdown(r.Context(), adminID(r), *req.Locked, req.Message, req.Until); err != nil {
				writeSettingsError(w, rid, err)
				return
			}
		}
		if req.GuestOnly != nil {
			if st, err = svc.SetGuestLockdown(r.Context(), adminID(r), *req.GuestOnly); err != nil {
				writeSettingsError(w, rid, err)
				return
			}
		}
		api.WriteJSON(w, http.StatusOK, st.Lockdown)
	}
}

type announcementRequest struct {
	Message  string            `json:"message"`
	Severity settings.Severity `json:"type"`
}

// PostAnnouncement handles POST /v1/admin/announcements.
func PostAnnouncement(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		var req announcementRequest
		if err := decodeJSON(w, r, &req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			api.BadRequest(w, "MISSING_MESSAGE", "message is required", rid, nil)
			return
		}
		a, err := svc.AddAnnouncement(r.Context(), adminID(r), req.Message, req.Severity)
		if err != nil {
			writeSettingsError(w, rid, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, a)
	}
}

// DeleteAnnouncement handles DELETE /v1/admin/announcements/{id}.
func DeleteAnnouncement(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveAnnouncement(r.Context(), adminID(r), chi.URLParam(r, "id")); err != nil {
			writeSettingsError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.NoContent(w)
	}
}

// ListAnnouncements handles the public GET /v1/announcements.
func ListAnnouncements(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ActiveAnnouncements(r.Context())
		if err != nil {
			writeSettingsError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.WriteJSON(w, http.StatusOK, map[string]any{"items": list})
	}
}

// ToggleProxySource handles POST /v1/admin/sources/{id}/toggle.
func ToggleProxySource(svc *settings.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.ToggleProxySource(r.Context(), adminID(r), chi.URLParam(r, "id"))
		if err != nil {
			writeSettingsError(w, httpserver.RequestIDFromContext(r.Context()), err)
			return
		}
		api.WriteJSON(w, http.StatusOK, p)
	}
}

// Lockdown turns away requests while the site is locked. Admins always pass,
// and guest lockdown only applies to anonymous callers. A settings outage
// fails open.
func Lockdown(svc *settings.Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.IsAdmin(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			_, authed := auth.UserIDFromContext(r.Context())
			ls, err := svc.CheckLock(r.Context(), authed)
			if err != nil {
				log.Warn("lockdown check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if ls.Locked {
				rid := httpserver.RequestIDFromContext(r.Context())
				api.WriteError(w, http.StatusServiceUnavailable, "LOCKDOWN", ls.Message, rid, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
