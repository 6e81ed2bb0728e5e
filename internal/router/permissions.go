package router

// Grants maps a user id to the capability tokens it holds. "*" grants
// everything. An empty channel permission means the channel is open to all.
type Grants map[string][]string

// PermBypassCooldown lets a user send into a channel without arming or
// honoring its cooldown.
const PermBypassCooldown = "bypass.cooldown"

func (g Grants) Allows(userID, perm string) bool {
	if perm == "" {
		return true
	}
	for _, have := range g[userID] {
		if have == "*" || have == perm {
			return true
		}
	}
	return false
}
