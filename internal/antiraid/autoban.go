package antiraid

import "fmt"

// CheckJoin matches a joining member against the ban lists. The avatar
// hash is checked before the username; the first hit wins and the
// other attribute is not consulted. The returned reason names the
// matched attribute.
func (v *Verifier) CheckJoin(avatarHash, username string) (string, bool) {
	for _, banned := range v.rules.AvatarBlacklist {
		if banned != "" && banned == avatarHash {
			return fmt.Sprintf("blacklisted avatar hash %s", avatarHash), true
		}
	}
	for _, banned := range v.rules.UsernameBlacklist {
		if banned != "" && banned == username {
			return fmt.Sprintf("blacklisted username %s", username), true
		}
	}
	return "", false
}
