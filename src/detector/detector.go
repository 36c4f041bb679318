// Package detector turns consecutive status observations into
// transitions. It is pure: no clock, no IO, no state beyond the
// remembered entry handed in.
package detector

import (
	"github.com/streamalert-go/streamalert-go/src/cache"
	"github.com/streamalert-go/streamalert-go/src/configs"
	"github.com/streamalert-go/streamalert-go/src/platform"
)

type Transition int

const (
	// None means the observation matches the remembered state.
	None Transition = iota
	// WentLive fires on the offline-to-live edge.
	WentLive
	// Changed fires while live when the policy-selected field differs
	// from the remembered one.
	Changed
	// WentOffline fires on the live-to-offline edge.
	WentOffline
)

func (t Transition) String() string {
	switch t {
	case WentLive:
		return "went_live"
	case Changed:
		return "changed"
	case WentOffline:
		return "went_offline"
	default:
		return "none"
	}
}

// Detect compares the remembered entry against a fresh status. A nil
// prev means the entity was last seen offline (or never seen), so a
// live status is a went-live edge and an offline one is a no-op.
func Detect(policy configs.DetectionPolicy, prev *cache.Entry, st platform.Status) Transition {
	wasLive := prev != nil && prev.IsLive

	switch {
	case !wasLive && st.IsLive:
		return WentLive
	case wasLive && !st.IsLive:
		return WentOffline
	case wasLive && st.IsLive:
		if fieldChanged(policy, prev, st) {
			return Changed
		}
	}
	return None
}

// fieldChanged applies the policy. Two empty values compare equal, so
// platforms that never report the field cannot fire change transitions.
func fieldChanged(policy configs.DetectionPolicy, prev *cache.Entry, st platform.Status) bool {
	switch policy {
	case configs.DetectByTitle:
		return st.Snapshot.Title != prev.Title
	default:
		return st.Snapshot.Category != prev.Category
	}
}

// Remember builds the cache entry a notification-worthy status should
// leave behind.
func Remember(st platform.Status) *cache.Entry {
	if !st.IsLive {
		return nil
	}
	return &cache.Entry{
		Title:    st.Snapshot.Title,
		Category: st.Snapshot.Category,
		IsLive:   true,
	}
}
