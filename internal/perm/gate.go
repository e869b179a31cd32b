package perm

// Authorize reports whether an actor may use a command or trip a rule.
// Admins always pass. Otherwise the actor must hold at least one of the
// allowed roles; an empty allow-list denies everyone but admins.
func Authorize(actorRoles []string, isAdmin bool, allowedRoles []string) bool {
	if isAdmin {
		return true
	}
	if len(allowedRoles) == 0 || len(actorRoles) == 0 {
		return false
	}
	held := make(map[string]struct{}, len(actorRoles))
	for _, id := range actorRoles {
		held[id] = struct{}{}
	}
	for _, id := range allowedRoles {
		if _, ok := held[id]; ok {
			return true
		}
	}
	return false
}
