package bot

import (
	"strings"

	"warden/internal/notify"

	"github.com/bwmarrin/discordgo"
)

// Snitch mode posts passive audit notices for watched guild events.
// Each event kind is individually toggleable; a missing channel or an
// off toggle silences that kind without touching the others.

func (b *Bot) snitchEnabled(kind bool) bool {
	return kind && b.rules.Snitch.ChannelID != ""
}

func (b *Bot) snitchEdit(m *discordgo.MessageUpdate, oldContent string) {
	if !b.snitchEnabled(b.rules.Snitch.Edits) {
		return
	}
	b.notifier.Embed(b.rules.Snitch.ChannelID, notify.SnitchEmbed("Message edited",
		notify.Field("Author", "<@"+m.Author.ID+">"),
		notify.Field("Channel", "<#"+m.ChannelID+">"),
		notify.Field("Before", oldContent),
		notify.Field("After", m.Content),
	))
}

func (b *Bot) snitchDelete(m *discordgo.MessageDelete, authorID, content string) {
	if !b.snitchEnabled(b.rules.Snitch.Deletes) {
		return
	}
	author := "unknown"
	if authorID != "" {
		author = "<@" + authorID + ">"
	}
	b.notifier.Embed(b.rules.Snitch.ChannelID, notify.SnitchEmbed("Message deleted",
		notify.Field("Author", author),
		notify.Field("Channel", "<#"+m.ChannelID+">"),
		notify.Field("Content", content),
	))
}

func (b *Bot) snitchRename(oldName, newName, channelID string) {
	if !b.snitchEnabled(b.rules.Snitch.Renames) {
		return
	}
	b.notifier.Embed(b.rules.Snitch.ChannelID, notify.SnitchEmbed("Channel renamed",
		notify.Field("Channel", "<#"+channelID+">"),
		notify.Field("Before", oldName),
		notify.Field("After", newName),
	))
}

func (b *Bot) snitchUpload(m *discordgo.MessageCreate) {
	if !b.snitchEnabled(b.rules.Snitch.Uploads) {
		return
	}
	names := make([]string, 0, len(m.Attachments))
	for _, attachment := range m.Attachments {
		names = append(names, attachment.Filename)
	}
	b.notifier.Embed(b.rules.Snitch.ChannelID, notify.SnitchEmbed("Attachment uploaded",
		notify.Field("Author", "<@"+m.Author.ID+">"),
		notify.Field("Channel", "<#"+m.ChannelID+">"),
		notify.Field("Files", strings.Join(names, ", ")),
	))
}
