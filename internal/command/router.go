package command

import (
	"fmt"
	"strings"

	"warden/internal/config"
	"warden/internal/perm"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Resolver supplies guild state to the router. The bot backs it with
// the discordgo session; tests back it with fixtures.
type Resolver interface {
	Member(id string) (*discordgo.Member, bool)
	Role(id string) (*discordgo.Role, bool)
	Channel(id string) (*discordgo.Channel, bool)
	// BotPermissions returns the bot member's effective permission
	// bits in a channel.
	BotPermissions(channelID string) int64
}

// Action is a fully validated command ready for execution.
type Action interface {
	CommandName() string
}

// FetchMembersAction scans guild members by one of four routes.
type FetchMembersAction struct {
	Route      string
	Member     *discordgo.Member // avatar and username routes
	Role       *discordgo.Role   // role route
	Query      string            // string route
	AvatarHash string            // avatar route
}

func (FetchMembersAction) CommandName() string { return "fetch-members" }

// Selection literals for the role command. A literal wins over role
// mention resolution, preserving the original precedence.
const (
	SelectEveryone = "everyone"
	SelectNoRole   = "no-role"
	SelectRole     = "role"
)

type RoleAction struct {
	Op              string // add or remove
	Selection       string // SelectEveryone, SelectNoRole or SelectRole
	SelectionRoleID string // set when Selection == SelectRole
	RoleID          string // role to add or remove
}

func (RoleAction) CommandName() string { return "role" }

type TogglePermsAction struct {
	GroupID   string
	Direction string // on or off
	Toggles   []config.ChannelPermToggle
}

func (TogglePermsAction) CommandName() string { return "toggle-perms" }

type VoiceAction struct {
	Op        string // disconnect or unmute
	ChannelID string
}

func (VoiceAction) CommandName() string { return "voice" }

// Router validates raw command text against the grammar table and the
// rule set and produces typed actions. It is synchronous; dispatching
// the resulting action is the caller's business.
type Router struct {
	prefix  string
	rules   *config.RuleSet
	resolve Resolver
	logger  *zap.Logger
}

func NewRouter(prefix string, rules *config.RuleSet, resolver Resolver, logger *zap.Logger) *Router {
	return &Router{prefix: prefix, rules: rules, resolve: resolver, logger: logger}
}

// Dispatch parses and validates one raw message. It returns (nil, nil)
// when the message is not a known command for this prefix, an action
// on success, or exactly one CommandError describing the first failing
// check. Check order: permission, route literal, target resolvability,
// route precondition.
func (r *Router) Dispatch(raw, actorID string, actorRoles []string, isAdmin bool) (Action, *CommandError) {
	inv := Parse(raw, r.prefix)
	if inv == nil {
		return nil, nil
	}
	g, known := grammars[inv.Command]
	if !known {
		return nil, nil
	}
	usage := g.usageFor(r.prefix)

	if !perm.Authorize(actorRoles, isAdmin, r.rules.CommandRoles[inv.Command]) {
		r.logger.Info("command denied", zap.String("command", inv.Command), zap.String("actor", actorID))
		return nil, denied(usage)
	}
	if len(g.routes) > 0 && len(inv.Args) > 0 && !g.routeAllowed(inv.Args[0]) {
		return nil, invalid("route", inv.Args[0], fmt.Sprintf("route must be one of %s - %s", g.routeList(), usage))
	}
	if len(inv.Args) < g.minArgs {
		return nil, invalid("arguments", strings.Join(inv.Args, " "), usage)
	}

	switch inv.Command {
	case "fetch-members":
		return r.routeFetchMembers(inv, usage)
	case "role":
		return r.routeRole(inv, usage)
	case "toggle-perms":
		return r.routeTogglePerms(inv)
	case "voice":
		return r.routeVoice(inv, usage)
	}
	return nil, nil
}

func (r *Router) routeFetchMembers(inv *Invocation, usage string) (Action, *CommandError) {
	route := inv.Args[0]
	action := FetchMembersAction{Route: route}

	switch route {
	case "avatar", "username":
		id, ok := ParseMemberMention(inv.Args[1])
		if !ok {
			return nil, invalid("target", inv.Args[1], usage)
		}
		member, found := r.resolve.Member(id)
		if !found {
			return nil, invalid("target", inv.Args[1], usage)
		}
		if route == "avatar" {
			if member.User == nil || member.User.Avatar == "" {
				return nil, unmet("target", memberLabel(member), fmt.Sprintf("%s does not have an avatar to compare from", memberLabel(member)))
			}
			action.AvatarHash = member.User.Avatar
		}
		action.Member = member
	case "role":
		id, ok := ParseRoleMention(inv.Args[1])
		if !ok {
			return nil, invalid("target", inv.Args[1], usage)
		}
		role, found := r.resolve.Role(id)
		if !found {
			return nil, invalid("target", inv.Args[1], usage)
		}
		action.Role = role
	case "string":
		query := strings.TrimSpace(strings.Join(inv.Args[1:], " "))
		if query == "" {
			return nil, invalid("target", "", usage)
		}
		action.Query = query
	}
	return action, nil
}

func (r *Router) routeRole(inv *Invocation, usage string) (Action, *CommandError) {
	op := inv.Args[0]
	action := RoleAction{Op: op}

	switch selection := inv.Args[1]; selection {
	case SelectEveryone:
		action.Selection = SelectEveryone
	case SelectNoRole:
		if op != "add" {
			return nil, invalid("selection", selection, fmt.Sprintf("no-role selection is only valid with add - %s", usage))
		}
		action.Selection = SelectNoRole
	default:
		id, ok := ParseRoleMention(selection)
		if !ok {
			return nil, invalid("selection", selection, usage)
		}
		if _, found := r.resolve.Role(id); !found {
			return nil, invalid("selection", selection, usage)
		}
		action.Selection = SelectRole
		action.SelectionRoleID = id
	}

	id, ok := ParseRoleMention(inv.Args[2])
	if !ok {
		return nil, invalid("role", inv.Args[2], usage)
	}
	if _, found := r.resolve.Role(id); !found {
		return nil, invalid("role", inv.Args[2], usage)
	}
	action.RoleID = id
	return action, nil
}

func (r *Router) routeTogglePerms(inv *Invocation) (Action, *CommandError) {
	groupID := inv.Args[0]
	group, found := r.rules.FindToggleGroup(groupID)
	if !found {
		return nil, invalid("group", groupID, r.toggleGroupUsage())
	}

	direction := inv.Args[1]
	var toggles []config.ChannelPermToggle
	switch direction {
	case "on":
		toggles = group.On
	case "off":
		toggles = group.Off
	default:
		return nil, invalid("direction", direction, fmt.Sprintf("%stoggle-perms %s <on|off>", r.prefix, groupID))
	}
	if len(toggles) == 0 {
		return nil, invalid("direction", direction, fmt.Sprintf("group %s has no %s toggles configured", groupID, direction))
	}

	return TogglePermsAction{GroupID: groupID, Direction: direction, Toggles: toggles}, nil
}

// toggleGroupUsage lists up to ten known group ids as on/off usage
// pairs, so the unknown-group error doubles as discovery.
func (r *Router) toggleGroupUsage() string {
	ids := r.rules.ToggleGroupIDs(10)
	if len(ids) == 0 {
		return fmt.Sprintf("%stoggle-perms <group-id> <on|off> (no groups configured)", r.prefix)
	}
	pairs := make([]string, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, fmt.Sprintf("%[1]stoggle-perms %[2]s on | %[1]stoggle-perms %[2]s off", r.prefix, id))
	}
	return strings.Join(pairs, "\n")
}

func (r *Router) routeVoice(inv *Invocation, usage string) (Action, *CommandError) {
	op := inv.Args[0]
	id, ok := ParseChannelMention(inv.Args[1])
	if !ok {
		return nil, invalid("channel", inv.Args[1], usage)
	}
	channel, found := r.resolve.Channel(id)
	if !found {
		return nil, invalid("channel", inv.Args[1], usage)
	}
	if channel.Type != discordgo.ChannelTypeGuildVoice && channel.Type != discordgo.ChannelTypeGuildStageVoice {
		return nil, invalid("channel", channel.Name, fmt.Sprintf("channel must be a voice or stage channel - %s", usage))
	}

	required := int64(discordgo.PermissionVoiceMoveMembers)
	permName := "Move Members"
	if op == "unmute" {
		required = discordgo.PermissionVoiceMuteMembers
		permName = "Mute Members"
	}
	if r.resolve.BotPermissions(channel.ID)&required == 0 {
		return nil, unmet("permissions", op, fmt.Sprintf("the bot is missing the %s permission in <#%s>", permName, channel.ID))
	}

	return VoiceAction{Op: op, ChannelID: channel.ID}, nil
}

func memberLabel(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return "member"
	}
	return member.User.Username
}
