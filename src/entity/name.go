package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/streamalert-go/streamalert-go/src/types"
)

// InvalidNameError reports a name that failed sanitization. It is a
// hard validation error raised before any network call; callers must
// reject the entity rather than persist it.
type InvalidNameError struct {
	Platform types.Platform
	Name     string
	Reason   string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid name %q for platform %s: %s", e.Name, e.Platform, e.Reason)
}

var (
	nameAllowList = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	// Characters usable for markup injection or path traversal.
	nameStripper = strings.NewReplacer(
		"<", "", ">", "", `"`, "", "'", "", "&", "", "\\", "", "/", "",
	)
)

const maxNameLen = 100

// SanitizeName validates a username: surrounding whitespace is trimmed
// and the result must survive the dangerous-character strip unchanged
// and match the allow-list shared by all supported platforms. A name
// that stripping would alter is rejected outright rather than silently
// rewritten into some other account's name. Overlong names truncate to
// 100 characters.
func SanitizeName(name string, platform types.Platform) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &InvalidNameError{Platform: platform, Name: name, Reason: "empty"}
	}
	s := strings.Join(strings.Fields(nameStripper.Replace(trimmed)), "")
	if s != trimmed {
		return "", &InvalidNameError{Platform: platform, Name: name, Reason: "contains forbidden characters"}
	}
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	if !nameAllowList.MatchString(s) {
		return "", &InvalidNameError{Platform: platform, Name: name, Reason: "contains characters outside [A-Za-z0-9._-]"}
	}
	return s, nil
}

// Public profile URL templates per platform. %s is the escaped name.
var profileURLTemplates = map[types.Platform]string{
	types.Twitch:  "https://twitch.tv/%s",
	types.YouTube: "https://www.youtube.com/@%s",
	types.Kick:    "https://kick.com/%s",
	types.Rumble:  "https://rumble.com/c/%s",
	types.TikTok:  "https://www.tiktok.com/@%s",
	types.NimoTV:  "https://www.nimo.tv/%s",
}

// ProfileURL derives the canonical public stream URL for (platform,
// name). The name is sanitized first; no URL is ever produced from an
// unsanitizable name.
func ProfileURL(platform types.Platform, name string) (string, error) {
	clean, err := SanitizeName(name, platform)
	if err != nil {
		return "", err
	}
	tmpl, ok := profileURLTemplates[platform]
	if !ok {
		return "", &InvalidNameError{Platform: platform, Name: name, Reason: "no profile URL template"}
	}
	return fmt.Sprintf(tmpl, url.PathEscape(clean)), nil
}
