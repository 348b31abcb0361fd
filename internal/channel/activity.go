package channel

import "strings"

// ActivityStatus is the normalized campaign state.
type ActivityStatus int

const (
	ActivityUnknown ActivityStatus = iota
	ActivityActive
	ActivityPaused
)

func (s ActivityStatus) String() string {
	switch s {
	case ActivityActive:
		return "ACTIVE"
	case ActivityPaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// Platform sentinels for the "running" state.
const (
	MetaActiveStatus   = "ACTIVE"
	GoogleActiveStatus = "ENABLED"
)

// ResolveActivity decides whether a campaign counts as running.
//
//   - status equal to activeSentinel (case-insensitive): Active, whatever the spend.
//   - status absent or blank and spend > 0: Active. Partial feeds often omit the
//     status column while still reporting spend.
//   - status absent or blank and spend <= 0: Unknown (not active).
//   - any other status: Paused.
func ResolveActivity(status *string, activeSentinel string, spend float64) ActivityStatus {
	if status == nil || strings.TrimSpace(*status) == "" {
		if spend > 0 {
			return ActivityActive
		}
		return ActivityUnknown
	}
	if strings.EqualFold(strings.TrimSpace(*status), activeSentinel) {
		return ActivityActive
	}
	return ActivityPaused
}
