// Package internal pulls in every platform checker so their init
// registration runs.
package internal

import (
	_ "github.com/streamalert-go/streamalert-go/src/platform/kick"
	_ "github.com/streamalert-go/streamalert-go/src/platform/nimotv"
	_ "github.com/streamalert-go/streamalert-go/src/platform/rumble"
	_ "github.com/streamalert-go/streamalert-go/src/platform/twitch"
	_ "github.com/streamalert-go/streamalert-go/src/platform/youtube"
)
