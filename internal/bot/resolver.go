package bot

import (
	"github.com/bwmarrin/discordgo"
)

// guildResolver backs the command router with live guild state. Every
// lookup tries the session cache first and falls back to the REST API,
// so a cold cache never rejects a valid target.
type guildResolver struct {
	session *discordgo.Session
	guildID string
}

func (r *guildResolver) Member(id string) (*discordgo.Member, bool) {
	member, err := r.session.State.Member(r.guildID, id)
	if err == nil && member != nil {
		return member, true
	}
	member, err = r.session.GuildMember(r.guildID, id)
	if err != nil {
		return nil, false
	}
	return member, true
}

func (r *guildResolver) Role(id string) (*discordgo.Role, bool) {
	role, err := r.session.State.Role(r.guildID, id)
	if err == nil && role != nil {
		return role, true
	}
	roles, err := r.session.GuildRoles(r.guildID)
	if err != nil {
		return nil, false
	}
	for _, role := range roles {
		if role.ID == id {
			return role, true
		}
	}
	return nil, false
}

func (r *guildResolver) Channel(id string) (*discordgo.Channel, bool) {
	channel, err := r.session.State.Channel(id)
	if err == nil && channel != nil {
		return channel, true
	}
	channel, err = r.session.Channel(id)
	if err != nil {
		return nil, false
	}
	return channel, true
}

func (r *guildResolver) BotPermissions(channelID string) int64 {
	if r.session.State.User == nil {
		return 0
	}
	perms, err := r.session.State.UserChannelPermissions(r.session.State.User.ID, channelID)
	if err == nil {
		return perms
	}
	perms, err = r.session.UserChannelPermissions(r.session.State.User.ID, channelID)
	if err != nil {
		return 0
	}
	return perms
}
