// Package channel models the firmware's OTA update channels.
package channel

import (
	"fmt"
	"strings"

	"github.com/lan-dot-party/relkit/internal/semver"
)

// Channel is an OTA update channel a device subscribes to.
type Channel string

// Channels offered by the firmware settings screen.
const (
	Stable  Channel = "stable"
	Nightly Channel = "nightly"
)

// All lists every channel in display order.
var All = []Channel{Stable, Nightly}

// Parse converts a channel name, case-insensitively.
func Parse(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case Stable:
		return Stable, nil
	case Nightly:
		return Nightly, nil
	default:
		return "", fmt.Errorf("unknown channel %q (expected stable or nightly)", s)
	}
}

// Accepts reports whether a device on this channel would install version.
// Stable devices ignore prereleases; nightly devices take everything.
func (c Channel) Accepts(version string) bool {
	if c == Stable {
		return !semver.IsPrerelease(version)
	}
	return true
}

// Latest returns the highest version the channel accepts. Strings that do not
// parse as versions are ignored. ok is false when nothing qualifies.
func Latest(c Channel, versions []string) (latest string, ok bool) {
	var best semver.Version
	for _, raw := range versions {
		if !c.Accepts(raw) {
			continue
		}
		v, err := semver.Parse(raw)
		if err != nil {
			continue
		}
		if !ok || semver.Compare(v, best) > 0 {
			best, latest, ok = v, raw, true
		}
	}
	return latest, ok
}

// UpdateAvailable mirrors the device check: any difference between the
// running and the published version offers an update, including downgrades.
func UpdateAvailable(current, latest string) bool {
	return latest != "" && latest != current
}
