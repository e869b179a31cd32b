package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Embed accent colors.
const (
	colorReport  = 0xE67E22
	colorSnitch  = 0x3498DB
	colorError   = 0xE74C3C
	colorOutcome = 0x2ECC71
)

// Sender is the slice of the discordgo session the notifier needs.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// Notifier delivers channel messages, report embeds and DMs. Delivery
// failures are logged and swallowed; a closed DM or a deleted report
// channel must never abort the event that triggered the notice.
type Notifier struct {
	send   Sender
	logger *zap.Logger
}

func New(send Sender, logger *zap.Logger) *Notifier {
	return &Notifier{send: send, logger: logger}
}

func (n *Notifier) Channel(channelID, content string) {
	if channelID == "" || content == "" {
		return
	}
	if _, err := n.send.ChannelMessageSend(channelID, content); err != nil {
		n.logger.Warn("channel message failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (n *Notifier) Embed(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" || embed == nil {
		return
	}
	if _, err := n.send.ChannelMessageSendEmbed(channelID, embed); err != nil {
		n.logger.Warn("embed message failed", zap.String("channel", channelID), zap.Error(err))
	}
}

func (n *Notifier) Direct(userID, content string) {
	if userID == "" || content == "" {
		return
	}
	channel, err := n.send.UserChannelCreate(userID)
	if err != nil {
		n.logger.Warn("dm channel open failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if _, err := n.send.ChannelMessageSend(channel.ID, content); err != nil {
		n.logger.Warn("dm send failed", zap.String("user", userID), zap.Error(err))
	}
}

// WordReportEmbed describes one suspicious word hit for the report
// channel.
func WordReportEmbed(categories []string, authorID, channelID, content string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Suspicious words",
		Color: colorReport,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: mention(authorID), Inline: true},
			{Name: "Channel", Value: channelMention(channelID), Inline: true},
			{Name: "Categories", Value: join(categories), Inline: true},
			{Name: "Message", Value: clip(content)},
		},
	}
}

// AffiliateReportEmbed describes one affiliate link hit.
func AffiliateReportEmbed(websites []string, authorID, channelID, content string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "Affiliate link removed",
		Color: colorReport,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Author", Value: mention(authorID), Inline: true},
			{Name: "Channel", Value: channelMention(channelID), Inline: true},
			{Name: "Sites", Value: join(websites), Inline: true},
			{Name: "Message", Value: clip(content)},
		},
	}
}

// SnitchEmbed records one watched guild event.
func SnitchEmbed(event string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: event, Color: colorSnitch, Fields: fields}
}

func Field(name, value string) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: clip(value), Inline: false}
}

// CommandErrorEmbed renders a rejected command back at the invoker,
// naming the offending field and the value received.
func CommandErrorEmbed(title, field, got, usage string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: title, Description: usage, Color: colorError}
	if field != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Field", Value: field, Inline: true})
	}
	if got != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Got", Value: clip(got), Inline: true})
	}
	return embed
}

// OutcomeEmbed summarizes a finished bulk command.
func OutcomeEmbed(command string, succeeded, failed int) *discordgo.MessageEmbed {
	color := colorOutcome
	if failed > 0 {
		color = colorError
	}
	return &discordgo.MessageEmbed{
		Title: command,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Succeeded", Value: fmt.Sprintf("%d", succeeded), Inline: true},
			{Name: "Failed", Value: fmt.Sprintf("%d", failed), Inline: true},
		},
	}
}

func mention(userID string) string    { return "<@" + userID + ">" }
func channelMention(id string) string { return "<#" + id + ">" }

func join(values []string) string {
	out := ""
	for i, value := range values {
		if i > 0 {
			out += ", "
		}
		out += value
	}
	if out == "" {
		out = "-"
	}
	return out
}

// clip keeps embed field values inside the API limit.
func clip(content string) string {
	const limit = 1024
	if content == "" {
		return "-"
	}
	if len(content) <= limit {
		return content
	}
	runes := []rune(content)
	if len(runes) > limit-3 {
		runes = runes[:limit-3]
	}
	return string(runes) + "..."
}
