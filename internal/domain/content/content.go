package content

import "fmt"

// Kind identifies the notification content being sent.
type Kind string

const (
	// KindWelcome is the one-off greeting for a newly joined member. It is
	// not subject to the daily-notified gate.
	KindWelcome Kind = "welcome"
	// KindDaily is the recurring broadcast, at most one per recipient per
	// cadence window.
	KindDaily Kind = "daily"
)

// DailyLimited reports whether sends of this kind must claim the recipient's
// cadence window first.
func (k Kind) DailyLimited() bool {
	return k == KindDaily
}

// RespectsOptOut reports whether an explicit opt-out blocks this kind.
// Welcome messages carry the opt-in prompt itself, so they go out regardless.
func (k Kind) RespectsOptOut() bool {
	return k == KindDaily
}

// ErrContentNotFound indicates the group has no configured asset for the
// requested kind. A configuration problem, not a delivery failure.
var ErrContentNotFound = fmt.Errorf("content not found for group and kind")

// Bundle is one resolved piece of notification content. AttachmentPath is
// empty when the group ships text only.
type Bundle struct {
	Text           string
	AttachmentPath string
}

// Resolver maps (group, kind) to its content bundle. Implementations load
// fresh from the backing store; assets may change between process restarts.
type Resolver interface {
	Resolve(groupID int64, kind Kind) (*Bundle, error)
}
