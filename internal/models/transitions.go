package models

import "github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"

// CheckTransition validates moving an alert from current to target on behalf of role.
//
//	target     reporter                  contact
//	contacted  from active or contacted  same
//	resolved   from contacted            from contacted
//	cancelled  from active or contacted  forbidden
//	active     conflict                  conflict
//
// contacted -> contacted is an acknowledgement, not a status change.
func CheckTransition(current, target AlertStatus, role Role) error {
	if !target.Valid() {
		return errors.Validation("unknown status %q", target)
	}
	if target == StatusCancelled && role != RoleUser {
		return errors.Forbidden("only the reporter may cancel an alert")
	}
	if current.Terminal() {
		return errors.Conflict("alert is already %s", current)
	}
	switch target {
	case StatusContacted:
		if current == StatusActive || current == StatusContacted {
			return nil
		}
	case StatusResolved:
		if current == StatusContacted {
			return nil
		}
	case StatusCancelled:
		return nil
	}
	return errors.Conflict("cannot move alert from %s to %s", current, target)
}

// IsAcknowledgement reports a repeated transition that leaves status unchanged.
func IsAcknowledgement(current, target AlertStatus) bool {
	return current == StatusContacted && target == StatusContacted
}
