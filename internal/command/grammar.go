package command

import (
	"fmt"
	"strings"
)

// grammar is the declarative shape of one command: its route literal
// set (first positional argument), minimum arity and a usage template
// taking the bot prefix. Route-specific resolution and preconditions
// live in the per-command routing funcs.
type grammar struct {
	routes  []string
	minArgs int
	usage   string
}

var grammars = map[string]grammar{
	"fetch-members": {
		routes:  []string{"avatar", "role", "string", "username"},
		minArgs: 2,
		usage:   "%[1]sfetch-members <avatar|role|string|username> <target> - example: %[1]sfetch-members avatar <@user>",
	},
	"role": {
		routes:  []string{"add", "remove"},
		minArgs: 3,
		usage:   "%[1]srole <add|remove> <everyone|no-role|@role> <@role> - example: %[1]srole add everyone <@&role>",
	},
	"toggle-perms": {
		minArgs: 2,
		usage:   "%[1]stoggle-perms <group-id> <on|off> - example: %[1]stoggle-perms movie-night on",
	},
	"voice": {
		routes:  []string{"disconnect", "unmute"},
		minArgs: 2,
		usage:   "%[1]svoice <disconnect|unmute> <#channel> - example: %[1]svoice disconnect <#channel>",
	},
}

func (g grammar) usageFor(prefix string) string {
	return fmt.Sprintf(g.usage, prefix)
}

func (g grammar) routeAllowed(route string) bool {
	for _, allowed := range g.routes {
		if route == allowed {
			return true
		}
	}
	return false
}

func (g grammar) routeList() string {
	return strings.Join(g.routes, "|")
}
