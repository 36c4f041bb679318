package types

import "strings"

// EntityID uniquely identifies a tracked entity within a group.
// The canonical form is "platform:name".
type EntityID string

// Platform identifies a supported streaming platform.
type Platform string

const (
	Twitch  Platform = "twitch"
	YouTube Platform = "youtube"
	Kick    Platform = "kick"
	Rumble  Platform = "rumble"
	NimoTV  Platform = "nimotv"
	TikTok  Platform = "tiktok"
)

// ParsePlatform normalizes a platform name. Unknown names come back
// as-is (lower-cased) so new platforms can register without touching
// this package.
func ParsePlatform(s string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(s)))
}

func (p Platform) String() string {
	return string(p)
}

// MakeEntityID builds the canonical entity id from platform and name.
func MakeEntityID(p Platform, name string) EntityID {
	return EntityID(string(p) + ":" + name)
}
