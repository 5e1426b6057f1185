package version

import (
	"fmt"
	"runtime"
)

// Version is the current notifeeder release. Release builds override it with
// -ldflags "-X notifeeder/internal/version.Version=...".
var Version = "0.1.0"

// GetVersion returns the version line printed by the CLI.
func GetVersion() string {
	return fmt.Sprintf("notifeeder %s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}
