package bot

import (
	"context"
	"fmt"
	"strings"

	"warden/internal/bulk"
	"warden/internal/command"
	"warden/internal/notify"
	"warden/internal/rolechange"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Cap on mentions listed in a fetch-members reply; the count field
// always carries the real total.
const fetchListLimit = 30

// handleCommand dispatches one message through the router. It reports
// whether the message was consumed as a command, so the caller can
// skip the moderation rules for handled invocations.
func (b *Bot) handleCommand(m *discordgo.MessageCreate, roles []string, isAdmin bool) bool {
	action, cmdErr := b.router(m.GuildID).Dispatch(m.Content, m.Author.ID, roles, isAdmin)
	if cmdErr != nil {
		b.notifier.Embed(m.ChannelID, notify.CommandErrorEmbed(errorTitle(cmdErr.Kind), cmdErr.Field, cmdErr.Got, cmdErr.Usage))
		return true
	}
	if action == nil {
		return false
	}

	switch a := action.(type) {
	case command.FetchMembersAction:
		b.runFetchMembers(m, a)
	case command.RoleAction:
		b.runRole(m, a)
	case command.TogglePermsAction:
		b.runTogglePerms(m, a)
	case command.VoiceAction:
		b.runVoice(m, a)
	}
	return true
}

func errorTitle(kind command.ErrorKind) string {
	switch kind {
	case command.KindPermission:
		return "You are not allowed to use this command"
	case command.KindPrecondition:
		return "This command cannot run right now"
	default:
		return "Invalid command"
	}
}

// guildMembers returns the full member list, preferring the session
// cache and paging through the REST API otherwise.
func (b *Bot) guildMembers(guildID string) ([]*discordgo.Member, error) {
	guild, err := b.session.State.Guild(guildID)
	if err == nil && guild != nil && len(guild.Members) >= guild.MemberCount && guild.MemberCount > 0 {
		return guild.Members, nil
	}

	var members []*discordgo.Member
	after := ""
	for {
		page, err := b.session.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("member list: %w", err)
		}
		members = append(members, page...)
		if len(page) < 1000 {
			return members, nil
		}
		cursor, ok := lastMemberID(page)
		if !ok {
			return members, nil
		}
		after = cursor
	}
}

// lastMemberID returns the pagination cursor for the next member page.
func lastMemberID(page []*discordgo.Member) (string, bool) {
	if len(page) == 0 {
		return "", false
	}
	last := page[len(page)-1]
	if last.User == nil {
		return "", false
	}
	return last.User.ID, true
}

func (b *Bot) runFetchMembers(m *discordgo.MessageCreate, action command.FetchMembersAction) {
	members, err := b.guildMembers(m.GuildID)
	if err != nil {
		b.logger.Error("fetch-members scan failed", zap.Error(err))
		b.notifier.Channel(m.ChannelID, "Could not fetch the member list.")
		return
	}

	var matched []*discordgo.Member
	for _, member := range members {
		if member.User == nil {
			continue
		}
		if memberMatches(member, action) {
			matched = append(matched, member)
		}
	}

	mentions := make([]string, 0, fetchListLimit)
	for _, member := range matched {
		if len(mentions) >= fetchListLimit {
			break
		}
		mentions = append(mentions, "<@"+member.User.ID+">")
	}
	listed := strings.Join(mentions, " ")
	if listed == "" {
		listed = "-"
	}
	b.notifier.Embed(m.ChannelID, &discordgo.MessageEmbed{
		Title: fmt.Sprintf("fetch-members %s", action.Route),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Matches", Value: fmt.Sprintf("%d", len(matched)), Inline: true},
			{Name: "Members", Value: listed},
		},
	})
}

func memberMatches(member *discordgo.Member, action command.FetchMembersAction) bool {
	switch action.Route {
	case "avatar":
		return member.User.Avatar == action.AvatarHash
	case "role":
		return hasRole(member.Roles, action.Role.ID)
	case "string":
		query := strings.ToLower(action.Query)
		return strings.Contains(strings.ToLower(member.User.Username), query) ||
			strings.Contains(strings.ToLower(member.Nick), query)
	case "username":
		return member.User.Username == action.Member.User.Username
	}
	return false
}

func (b *Bot) runRole(m *discordgo.MessageCreate, action command.RoleAction) {
	members, err := b.guildMembers(m.GuildID)
	if err != nil {
		b.logger.Error("role command scan failed", zap.Error(err))
		b.notifier.Channel(m.ChannelID, "Could not fetch the member list.")
		return
	}

	targets := roleTargets(members, action)

	outcome := bulk.Execute(context.Background(), targets,
		func(member *discordgo.Member) string { return member.User.ID },
		func(_ context.Context, member *discordgo.Member) error {
			if action.Op == "add" {
				return b.session.GuildMemberRoleAdd(m.GuildID, member.User.ID, action.RoleID)
			}
			return b.session.GuildMemberRoleRemove(m.GuildID, member.User.ID, action.RoleID)
		}, b.logger)

	b.reportOutcome(m.ChannelID, "role "+action.Op, outcome)
}

// roleTargets selects the members a role command applies to: the
// selection filter first, then the idempotence guard (add skips
// holders, remove skips non-holders), so a repeat invocation finds
// nothing left to do.
func roleTargets(members []*discordgo.Member, action command.RoleAction) []*discordgo.Member {
	var targets []*discordgo.Member
	for _, member := range members {
		if member.User == nil || member.User.Bot {
			continue
		}
		switch action.Selection {
		case command.SelectNoRole:
			if len(member.Roles) > 0 {
				continue
			}
		case command.SelectRole:
			if !hasRole(member.Roles, action.SelectionRoleID) {
				continue
			}
		}
		holds := hasRole(member.Roles, action.RoleID)
		if (action.Op == "add") == holds {
			continue
		}
		targets = append(targets, member)
	}
	return targets
}

type overwriteTarget struct {
	channelID string
	subjectID string
	kind      discordgo.PermissionOverwriteType
	allow     int64
	deny      int64
}

func (b *Bot) runTogglePerms(m *discordgo.MessageCreate, action command.TogglePermsAction) {
	var targets []overwriteTarget
	for _, toggle := range action.Toggles {
		for _, overwrite := range toggle.Overwrites {
			kind := discordgo.PermissionOverwriteTypeRole
			if overwrite.Kind == "member" {
				kind = discordgo.PermissionOverwriteTypeMember
			}
			targets = append(targets, overwriteTarget{
				channelID: toggle.ChannelID,
				subjectID: overwrite.SubjectID,
				kind:      kind,
				allow:     overwrite.Allow,
				deny:      overwrite.Deny,
			})
		}
	}

	outcome := bulk.Execute(context.Background(), targets,
		func(t overwriteTarget) string { return t.channelID + "/" + t.subjectID },
		func(_ context.Context, t overwriteTarget) error {
			return b.session.ChannelPermissionSet(t.channelID, t.subjectID, t.kind, t.allow, t.deny)
		}, b.logger)

	b.reportOutcome(m.ChannelID, fmt.Sprintf("toggle-perms %s %s", action.GroupID, action.Direction), outcome)
}

func (b *Bot) runVoice(m *discordgo.MessageCreate, action command.VoiceAction) {
	guild, err := b.session.State.Guild(m.GuildID)
	if err != nil || guild == nil {
		b.logger.Error("voice command guild lookup failed", zap.Error(err))
		b.notifier.Channel(m.ChannelID, "Could not read the voice channel state.")
		return
	}

	var targets []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == action.ChannelID {
			targets = append(targets, vs.UserID)
		}
	}

	outcome := bulk.Execute(context.Background(), targets,
		func(userID string) string { return userID },
		func(_ context.Context, userID string) error {
			if action.Op == "disconnect" {
				return b.session.GuildMemberMove(m.GuildID, userID, nil)
			}
			return b.session.GuildMemberMute(m.GuildID, userID, false)
		}, b.logger)

	b.reportOutcome(m.ChannelID, "voice "+action.Op, outcome)
}

func (b *Bot) reportOutcome(channelID, label string, outcome bulk.Outcome) {
	succeeded, failed := 0, 0
	for _, result := range outcome.Results {
		if result.OK {
			succeeded++
		} else {
			failed++
		}
	}
	b.notifier.Embed(channelID, notify.OutcomeEmbed(label, succeeded, failed))
}

// applyRoleChange executes one fired change-role rule against a member,
// skipping roles already in the requested state.
func (b *Bot) applyRoleChange(guildID, userID string, held []string, change rolechange.Change) {
	type mutation struct {
		roleID string
		add    bool
	}
	var targets []mutation
	for _, roleID := range change.Add {
		if !hasRole(held, roleID) {
			targets = append(targets, mutation{roleID: roleID, add: true})
		}
	}
	for _, roleID := range change.Remove {
		if hasRole(held, roleID) {
			targets = append(targets, mutation{roleID: roleID})
		}
	}
	if len(targets) == 0 {
		return
	}

	outcome := bulk.Execute(context.Background(), targets,
		func(t mutation) string { return userID + "/" + t.roleID },
		func(_ context.Context, t mutation) error {
			if t.add {
				return b.session.GuildMemberRoleAdd(guildID, userID, t.roleID)
			}
			return b.session.GuildMemberRoleRemove(guildID, userID, t.roleID)
		}, b.logger)

	if !outcome.OK {
		b.logger.Warn("change role rule partially applied",
			zap.String("rule", change.RuleName), zap.String("user", userID))
	}
}

func hasRole(held []string, roleID string) bool {
	for _, id := range held {
		if id == roleID {
			return true
		}
	}
	return false
}
