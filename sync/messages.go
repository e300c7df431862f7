package sync

import "fmt"

// SkipNoWhitelistedEvent is recorded when a user update carries neither a
// whitelisted event nor a reference change.
const SkipNoWhitelistedEvent = "User doesn't have any whitelisted event. Nothing to process."

// SkipNotInAnySegment is recorded when an object is not a member of any
// synchronized segment.
func SkipNotInAnySegment(kind ObjectKind) string {
	return fmt.Sprintf("Platform %s won't be synchronized since it is not in any synchronized segment.", kind)
}
