// Package settings holds the administrator controlled site flags: the
// pinned hero item, lockdown, announcements and streaming source toggles.
package settings

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLockdownMessage = "Establishment is under heavy raid. Come back later."
	maxActivity            = 100
)

var (
	ErrNotFound        = errors.New("settings: not found")
	ErrInvalidSeverity = errors.New("settings: severity must be info, warning or danger")
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityDanger  Severity = "danger"
)

type Announcement struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Lockdown struct {
	Locked  bool       `json:"locked"`
	Message string     `json:"message"`
	Until   *time.Time `json:"until,omitempty"`
	// GuestOnly restricts anonymous visitors while signed-in users continue.
	GuestOnly bool `json:"guest_only"`
}

type ProxySource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`
}

type ActivityEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	AdminID   string    `json:"admin_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Settings struct {
	FeaturedItemID *int64          `json:"featured_item_id,omitempty"`
	Lockdown       Lockdown        `json:"lockdown"`
	Announcements  []Announcement  `json:"announcements"`
	ProxySources   []ProxySource   `json:"proxy_sources"`
	Activity       []ActivityEntry `json:"activity"`
}

// Defaults is the state of a fresh deployment.
func Defaults() Settings {
	return Settings{
		Lockdown:      Lockdown{Message: DefaultLockdownMessage},
		Announcements: []Announcement{},
		ProxySources: []ProxySource{
			{ID: "vidsrc", Name: "VidSrc", Priority: 1, Enabled: true},
			{ID: "vidsrcpro", Name: "VidSrc Pro", Priority: 2, Enabled: true},
			{ID: "superembed", Name: "SuperEmbed", Priority: 3, Enabled: true},
			{ID: "smashystream", Name: "SmashyStream", Priority: 4, Enabled: true},
			{ID: "autoembed", Name: "AutoEmbed", Priority: 5, Enabled: true},
			{ID: "2embed", Name: "2Embed", Priority: 6, Enabled: false},
		},
		Activity: []ActivityEntry{},
	}
}

// Store persists the whole settings document. Update applies fn atomically
// with respect to other Update calls.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, fn func(*Settings) error) (Settings, error)
}

// Service is the typed facade the HTTP layer and the feed composer use.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// SetClock overrides the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

func (s *Service) Get(ctx context.Context) (Settings, error) { return s.store.Get(ctx) }

// FeaturedItemID reports the pinned hero item, if any.
func (s *Service) FeaturedItemID(ctx context.Context) (int64, bool, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return 0, false, err
	}
	if st.FeaturedItemID == nil {
		return 0, false, nil
	}
	return *st.FeaturedItemID, true, nil
}

func (s *Service) SetFeatured(ctx context.Context, adminID string, id int64) (Settings, error) {
	if id <= 0 {
		return Settings{}, fmt.Errorf("settings: featured id must be positive, got %d", id)
	}
	return s.store.Update(ctx, func(st *Settings) error {
		st.FeaturedItemID = &id
		s.logActivity(st, adminID, "FEATURED_SET", fmt.Sprintf("Pinned item %d", id))
		return nil
	})
}

func (s *Service) ClearFeatured(ctx context.Context, adminID string) (Settings, error) {
	return s.store.Update(ctx, func(st *Settings) error {
		st.FeaturedItemID = nil
		s.logActivity(st, adminID, "FEATURED_CLEARED", "Hero pin cleared")
		return nil
	})
}

// SetLockdown locks or unlocks the site. An empty message keeps the current one.
func (s *Service) SetLockdown(ctx context.Context, adminID string, locked bool, message string, until *time.Time) (Settings, error) {
	return s.store.Update(ctx, func(st *Settings) error {
		st.Lockdown.Locked = locked
		if m := strings.TrimSpace(message); m != "" {
			st.Lockdown.Message = m
		}
		st.Lockdown.Until = until
		state := "unlocked"
		if locked {
			state = "locked"
		}
		s.logActivity(st, adminID, "LOCKDOWN", "Site "+state)
		return nil
	})
}

func (s *Service) SetGuestLockdown(ctx context.Context, adminID string, locked bool) (Settings, error) {
	return s.store.Update(ctx, func(st *Settings) error {
		st.Lockdown.GuestOnly = locked
		state := "allowed"
		if locked {
			state = "restricted"
		}
		s.logActivity(st, adminID, "GUEST_LOCKDOWN", "Guest access "+state)
		return nil
	})
}

// LockState describes whether a request should be turned away.
type LockState struct {
	Locked  bool
	Message string
}

// CheckLock evaluates lockdown for a caller. A lockdown with an Until in the
// past no longer applies.
func (s *Service) CheckLock(ctx context.Context, authenticated bool) (LockState, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return LockState{}, err
	}
	l := st.Lockdown
	if l.Until != nil && !s.now().Before(*l.Until) {
		return LockState{}, nil
	}
	if l.Locked || (l.GuestOnly && !authenticated) {
		return LockState{Locked: true, Message: l.Message}, nil
	}
	return LockState{}, nil
}

func (s *Service) AddAnnouncement(ctx context.Context, adminID, message string, sev Severity) (Announcement, error) {
	switch sev {
	case SeverityInfo, SeverityWarning, SeverityDanger:
	case "":
		sev = SeverityInfo
	default:
		return Announcement{}, ErrInvalidSeverity
	}
	a := Announcement{ID: uuid.NewString(), Message: strings.TrimSpace(message), Severity: sev, Active: true, CreatedAt: s.now()}
	if a.Message == "" {
		return Announcement{}, errors.New("settings: announcement message is required")
	}
	_, err := s.store.Update(ctx, func(st *Settings) error {
		st.Announcements = append([]Announcement{a}, st.Announcements...)
		s.logActivity(st, adminID, "ANNOUNCEMENT_ADDED", a.Message)
		return nil
	})
	return a, err
}

func (s *Service) RemoveAnnouncement(ctx context.Context, adminID, id string) error {
	_, err := s.store.Update(ctx, func(st *Settings) error {
		for i, a := range st.Announcements {
			if a.ID == id {
				st.Announcements = append(st.Announcements[:i:i], st.Announcements[i+1:]...)
				s.logActivity(st, adminID, "ANNOUNCEMENT_REMOVED", id)
				return nil
			}
		}
		return ErrNotFound
	})
	return err
}

// ActiveAnnouncements lists announcements shown to visitors, newest first.
func (s *Service) ActiveAnnouncements(ctx context.Context) ([]Announcement, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := []Announcement{}
	for _, a := range st.Announcements {
		if a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

// ToggleProxySource flips a source's enabled flag.
func (s *Service) ToggleProxySource(ctx context.Context, adminID, id string) (ProxySource, error) {
	var out ProxySource
	_, err := s.store.Update(ctx, func(st *Settings) error {
		for i := range st.ProxySources {
			if st.ProxySources[i].ID == id {
				st.ProxySources[i].Enabled = !st.ProxySources[i].Enabled
				out = st.ProxySources[i]
				state := "Disabled"
				if out.Enabled {
					state = "Enabled"
				}
				s.logActivity(st, adminID, "PROXY_TOGGLED", out.Name+": "+state)
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

// EnabledSources returns the enabled proxy sources in priority order.
func (s *Service) EnabledSources(ctx context.Context) ([]ProxySource, error) {
	st, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProxySource, 0, len(st.ProxySources))
	for _, p := range st.ProxySources {
		if p.Enabled {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b ProxySource) int { return cmp.Compare(a.Priority, b.Priority) })
	return out, nil
}

func (s *Service) logActivity(st *Settings, adminID, action, details string) {
	e := ActivityEntry{ID: uuid.NewString(), Action: action, Details: details, AdminID: adminID, Timestamp: s.now()}
	st.Activity = append([]ActivityEntry{e}, st.Activity...)
	if len(st.Activity) > maxActivity {
		st.Activity = st.Activity[:maxActivity]
	}
}
