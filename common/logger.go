package common

import (
	"replaytop/status"
)

// Set to true to enable verbose logging in development builds.
const DEBUG = false

// MT: Constant after initialization; thread-safe
var Log status.Logger = status.Default()

func init() {
	if DEBUG {
		Log.SetLevel(status.LogLevelInfo)
	}
}
