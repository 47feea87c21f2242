package domain

// CanTransition validates a status change requested through set_status or an
// update. It does not cover soft deletion, which has its own permission check.
func CanTransition(actor *Actor, link *Link, to LinkStatus) error {
	from := link.Status
	if !to.Valid() {
		return ValidationError("status", "unknown status %q", to)
	}
	if from == LinkStatusDeleted {
		return ValidationError("status", "link has been deleted")
	}
	if to == LinkStatusDeleted {
		return ValidationError("status", "use DELETE to remove a link")
	}
	if from == to {
		return nil
	}

	if from == LinkStatusBlocked || to == LinkStatusBlocked {
		if !actor.IsModerator() {
			return ErrPermissionDenied
		}
		return nil
	}

	// active <-> disabled
	if !actor.CanManage(link) {
		return ErrPermissionDenied
	}
	return nil
}

// CanDelete reports whether the actor may soft delete the link.
func CanDelete(actor *Actor, link *Link) error {
	if !actor.CanManage(link) {
		return ErrPermissionDenied
	}
	return nil
}
