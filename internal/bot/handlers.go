package bot

import (
	"strings"
	"time"

	"warden/internal/notify"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const cacheFieldSep = "\x1f"

func cacheValue(authorID, content string) string {
	return authorID + cacheFieldSep + content
}

func splitCacheValue(value string) (authorID, content string) {
	parts := strings.SplitN(value, cacheFieldSep, 2)
	if len(parts) != 2 {
		return "", value
	}
	return parts[0], parts[1]
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.GuildID == "" || b.isSelfOrBot(m.Author) {
		return
	}

	b.messageCache.Put(m.ID, cacheValue(m.Author.ID, m.Content))
	if len(m.Attachments) > 0 {
		b.snitchUpload(m)
	}

	roles, isAdmin := b.actorContext(m.GuildID, m.ChannelID, m.Author.ID)

	// The verification channel owns every message posted in it,
	// command-shaped or not. It must win over command dispatch.
	if b.interceptsVerification(m.ChannelID, roles, isAdmin) {
		b.handleVerification(m)
		return
	}
	if handled := b.handleCommand(m, roles, isAdmin); handled {
		return
	}
	b.moderate(m.ID, m.ChannelID, m.Author.ID, m.Content, roles, isAdmin, false)
}

func (b *Bot) onMessageUpdate(s *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.GuildID == "" || b.isSelfOrBot(m.Author) {
		return
	}

	before, cached := b.messageCache.Get(m.ID)
	if cached {
		authorID, oldContent := splitCacheValue(before)
		if authorID == m.Author.ID && oldContent != m.Content {
			b.snitchEdit(m, oldContent)
		}
	}
	b.messageCache.Put(m.ID, cacheValue(m.Author.ID, m.Content))

	roles, isAdmin := b.actorContext(m.GuildID, m.ChannelID, m.Author.ID)
	if b.verifier.Watches(m.ChannelID) {
		return
	}
	b.moderate(m.ID, m.ChannelID, m.Author.ID, m.Content, roles, isAdmin, true)
}

func (b *Bot) onMessageDelete(s *discordgo.Session, m *discordgo.MessageDelete) {
	if m.GuildID == "" {
		return
	}
	value, cached := b.messageCache.Get(m.ID)
	if cached {
		authorID, content := splitCacheValue(value)
		b.snitchDelete(m, authorID, content)
		b.messageCache.Drop(m.ID)
	}
}

func (b *Bot) onChannelUpdate(s *discordgo.Session, c *discordgo.ChannelUpdate) {
	if c.BeforeUpdate == nil || c.BeforeUpdate.Name == c.Name {
		return
	}
	b.snitchRename(c.BeforeUpdate.Name, c.Name, c.ID)
}

// moderate runs the message-content rules: channel regex restriction,
// suspicious words, affiliate links. On edits the link dedup keeps an
// unchanged link set from being re-reported.
func (b *Bot) moderate(messageID, channelID, authorID, content string, roles []string, isAdmin, isEdit bool) {
	if verdict := b.matcher.EvaluateChannelRegex(channelID, content, roles, isAdmin); verdict.Delete {
		b.deleteMessage(channelID, messageID, "regex rule "+verdict.RuleName)
		b.notifier.Direct(authorID, verdict.DirectMessage)
		return
	}

	if categories := b.matcher.MatchSuspiciousWords(content); len(categories) > 0 {
		b.logger.Info("suspicious words matched",
			zap.String("message", messageID), zap.Strings("categories", categories))
		b.notifier.Embed(b.rules.SuspiciousWords.ReportChannelID,
			notify.WordReportEmbed(categories, authorID, channelID, content))
	}

	sites := b.matcher.MatchAffiliateLinks(content)
	if len(sites) == 0 {
		return
	}
	seen := b.matcher.SeenLinks(messageID, content)
	if isEdit && seen {
		return
	}
	b.notifier.Embed(b.rules.AffiliateLinks.ReportChannelID,
		notify.AffiliateReportEmbed(sites, authorID, channelID, content))
	if !b.matcher.AffiliateExempt(roles, isAdmin) {
		b.deleteMessage(channelID, messageID, "affiliate link")
		b.notifier.Direct(authorID, b.rules.AffiliateLinks.DirectMessage)
	}
}

// interceptsVerification reports whether a message belongs to the
// verification flow instead of command dispatch or moderation.
func (b *Bot) interceptsVerification(channelID string, roles []string, isAdmin bool) bool {
	return b.verifier.Watches(channelID) && !b.verifier.Exempt(roles, isAdmin)
}

// handleVerification processes one message in the verification
// channel. The message is always deleted; the member gets a DM and,
// on a valid code, the verified role.
func (b *Bot) handleVerification(m *discordgo.MessageCreate) {
	b.deleteMessage(m.ChannelID, m.ID, "verification channel")

	hasAvatar := m.Author.Avatar != ""
	age := accountAge(m.Author.ID, time.Now())
	decision := b.verifier.Evaluate(m.Author.ID, m.Content, hasAvatar, age)

	b.notifier.Direct(m.Author.ID, decision.Message)
	if decision.GrantRole {
		b.grantVerifiedRole(m.GuildID, m.Author.ID)
	}
}

func (b *Bot) onGuildMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.User == nil || m.User.Bot {
		return
	}

	if reason, banned := b.verifier.CheckJoin(m.User.Avatar, m.User.Username); banned {
		b.logger.Info("auto-ban on join", zap.String("user", m.User.ID), zap.String("reason", reason))
		if err := b.session.GuildBanCreateWithReason(m.GuildID, m.User.ID, reason, 0); err != nil {
			b.logger.Error("auto-ban failed", zap.String("user", m.User.ID), zap.Error(err))
		}
		return
	}

	age := accountAge(m.User.ID, time.Now())
	if b.verifier.AutoVerified(age) {
		b.grantVerifiedRole(m.GuildID, m.User.ID)
		return
	}

	// New accounts go through manual verification; greet them with
	// their code.
	if b.rules.AntiRaid.VerificationChannelID == "" {
		return
	}
	decision := b.verifier.Evaluate(m.User.ID, "0", m.User.Avatar != "", age)
	b.notifier.Direct(m.User.ID, decision.Message)
}

func (b *Bot) onGuildMemberUpdate(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.User == nil || m.User.Bot || m.BeforeUpdate == nil {
		return
	}
	changes := b.roleRules.Evaluate(m.BeforeUpdate.Roles, m.Roles)
	for _, change := range changes {
		b.applyRoleChange(m.GuildID, m.User.ID, m.Roles, change)
	}
}

func (b *Bot) grantVerifiedRole(guildID, userID string) {
	roleID := b.rules.AntiRaid.VerifiedRoleID
	if roleID == "" {
		return
	}
	if err := b.session.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
		b.logger.Error("verified role grant failed", zap.String("user", userID), zap.Error(err))
		return
	}
	b.logger.Info("member verified", zap.String("user", userID))
}

func (b *Bot) deleteMessage(channelID, messageID, why string) {
	if err := b.session.ChannelMessageDelete(channelID, messageID); err != nil {
		b.logger.Warn("message delete failed",
			zap.String("message", messageID), zap.String("why", why), zap.Error(err))
	}
}
