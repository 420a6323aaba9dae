package resource

import "resourcehub/internal/domain/auth"

// Capability checks are pure functions over (caller, resource) and never
// touch I/O. A nil caller is anonymous.

func isAdmin(caller *Caller) bool {
	return caller != nil && caller.Role == auth.RoleAdmin
}

func isOwner(caller *Caller, r *Resource) bool {
	return caller != nil && caller.Role == auth.RoleTeacher && caller.ID == r.OwnerID
}

// CanView reports whether the caller may see the resource's metadata.
func CanView(caller *Caller, r *Resource) bool {
	if r.Status == StatusPublished {
		return true
	}
	return isAdmin(caller) || isOwner(caller, r)
}

// CanDownload reports whether the caller may obtain the resource's bytes
// (or, for link resources, its external URL). Anonymous callers reach only
// published non-link resources.
func CanDownload(caller *Caller, r *Resource) bool {
	if caller == nil {
		return r.Status == StatusPublished && r.SourceType != SourceLink
	}
	if r.SourceType == SourceLink {
		return true
	}
	if isAdmin(caller) {
		return true
	}
	if r.Status == StatusPublished {
		return true
	}
	return isOwner(caller, r)
}

// CanEdit reports whether the caller may modify the resource. Published and
// archived resources are immutable to their owning teacher; only admins edit
// past draft.
func CanEdit(caller *Caller, r *Resource) bool {
	if isAdmin(caller) {
		return true
	}
	return isOwner(caller, r) && r.Status == StatusDraft
}

// CanManage gates lifecycle affordances (publish, archive, attachment
// removal), independent of status.
func CanManage(caller *Caller, r *Resource) bool {
	return isAdmin(caller) || isOwner(caller, r)
}

func CanPublish(caller *Caller, r *Resource) bool {
	return CanManage(caller, r) && r.Status != StatusPublished
}

func CanArchive(caller *Caller, r *Resource) bool {
	return CanManage(caller, r) && r.Status == StatusPublished
}

// CanDelete allows admins from any state, owners only while draft.
func CanDelete(caller *Caller, r *Resource) bool {
	if isAdmin(caller) {
		return true
	}
	return isOwner(caller, r) && r.Status == StatusDraft
}
