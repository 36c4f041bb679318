package entity

import (
	"time"

	"github.com/streamalert-go/streamalert-go/src/types"
)

// Snapshot is the normalized point-in-time live metadata for an entity.
// Platforms expose different subsets, so every field except URL may be
// absent. Numeric fields use pointers to distinguish zero from unknown.
type Snapshot struct {
	Title           string     `json:"title,omitempty"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	ImageURL        string     `json:"image_url,omitempty"`
	URL             string     `json:"url,omitempty"`
	Viewers         *int64     `json:"viewers,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	Bio             string     `json:"bio,omitempty"`
	FollowersCount  *int64     `json:"followers_count,omitempty"`
	Verified        bool       `json:"verified,omitempty"`
	ProfileImageURL string     `json:"profile_image_url,omitempty"`
}

// TrackedEntity is one watched streaming-platform profile.
type TrackedEntity struct {
	ID           types.EntityID `json:"id"`
	Name         string         `json:"name"`
	Platform     types.Platform `json:"platform"`
	NotifyTarget string         `json:"notify_target,omitempty"`
	IsLive       bool           `json:"is_live"`
	LastLiveAt   time.Time      `json:"last_live_at,omitempty"`
	LastError    string         `json:"last_error,omitempty"`
	Snapshot     *Snapshot      `json:"snapshot,omitempty"`
	AddedBy      string         `json:"added_by,omitempty"`
	AddedAt      time.Time      `json:"added_at,omitempty"`
}

// New builds a tracked entity after validating its name. The id is the
// deterministic (platform, name) tuple.
func New(platform types.Platform, name, notifyTarget string) (*TrackedEntity, error) {
	clean, err := SanitizeName(name, platform)
	if err != nil {
		return nil, err
	}
	return &TrackedEntity{
		ID:           types.MakeEntityID(platform, clean),
		Name:         clean,
		Platform:     platform,
		NotifyTarget: notifyTarget,
		AddedAt:      time.Now(),
	}, nil
}

// Valid reports whether a persisted entity still carries the fields the
// scheduler depends on. Entries failing this are dropped on load.
func (e *TrackedEntity) Valid() bool {
	return e != nil && e.Name != "" && e.Platform != "" && e.ID != ""
}

// MarkLive records a live observation. lastLiveAt only moves forward.
func (e *TrackedEntity) MarkLive(at time.Time, snap *Snapshot) {
	e.IsLive = true
	e.LastError = ""
	e.Snapshot = snap
	if at.After(e.LastLiveAt) {
		e.LastLiveAt = at
	}
}

// MarkOffline records an offline observation. The snapshot is kept as
// last-known data; callers must treat everything but URL as stale.
func (e *TrackedEntity) MarkOffline(snap *Snapshot) {
	e.IsLive = false
	e.LastError = ""
	if snap != nil {
		e.Snapshot = snap
	}
}

// MarkFailed records a check failure, keeping the previous snapshot and
// live flag as last-known-good.
func (e *TrackedEntity) MarkFailed(msg string) {
	e.LastError = msg
}

// GroupSettings holds per-group configuration owned by the collaborator.
type GroupSettings struct {
	AlertTarget      string           `json:"alert_target,omitempty"`
	EnabledPlatforms []types.Platform `json:"enabled_platforms,omitempty"`
}

// PlatformEnabled reports whether the group allow-list admits p. An
// empty allow-list admits everything.
func (s *GroupSettings) PlatformEnabled(p types.Platform) bool {
	if s == nil || len(s.EnabledPlatforms) == 0 {
		return true
	}
	for _, v := range s.EnabledPlatforms {
		if v == p {
			return true
		}
	}
	return false
}

// Group is a durable collection of tracked entities sharing settings.
type Group struct {
	ID       string           `json:"id"`
	Settings GroupSettings    `json:"settings"`
	Entities []*TrackedEntity `json:"entities"`
}
