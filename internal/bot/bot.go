package bot

import (
	"fmt"
	"net/http"
	"time"

	"warden/internal/antiraid"
	"warden/internal/command"
	"warden/internal/config"
	"warden/internal/moderation"
	"warden/internal/notify"
	"warden/internal/rolechange"
	"warden/internal/schedule"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Cap on the snitch content cache; oldest entries drop beyond it.
const snitchCacheCapacity = 100_000

type Bot struct {
	cfg       *config.Config
	rules     *config.RuleSet
	logger    *zap.Logger
	session   *discordgo.Session
	notifier  *notify.Notifier
	matcher   *moderation.Matcher
	verifier  *antiraid.Verifier
	roleRules *rolechange.Evaluator
	scheduler *schedule.Scheduler
	http      *http.Client

	// messageCache keeps recent message content so edit and delete
	// notices can show what was there before.
	messageCache *moderation.RingBuffer
}

func New(cfg *config.Config, rules *config.RuleSet, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildVoiceStates

	b := &Bot{
		cfg:          cfg,
		rules:        rules,
		logger:       logger,
		session:      session,
		notifier:     notify.New(session, logger),
		matcher:      moderation.NewMatcher(rules, logger),
		verifier:     antiraid.NewVerifier(rules.AntiRaid, logger),
		roleRules:    rolechange.NewEvaluator(rules.ChangeRoleRules, logger),
		scheduler:    schedule.New(logger),
		http:         &http.Client{Timeout: 10 * time.Second},
		messageCache: moderation.NewRingBuffer(snitchCacheCapacity),
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onMessageUpdate)
	session.AddHandler(b.onMessageDelete)
	session.AddHandler(b.onChannelUpdate)
	session.AddHandler(b.onGuildMemberAdd)
	session.AddHandler(b.onGuildMemberUpdate)

	return b, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("gateway open: %w", err)
	}
	if err := b.startScheduledPosts(); err != nil {
		_ = b.session.Close()
		return err
	}
	return nil
}

func (b *Bot) Close() error {
	b.scheduler.Stop()
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready",
		zap.String("user", r.User.Username),
		zap.Int("guilds", len(r.Guilds)))
}

// isSelfOrBot filters out the bot's own traffic and other bots.
func (b *Bot) isSelfOrBot(user *discordgo.User) bool {
	if user == nil || user.Bot {
		return true
	}
	return b.session.State.User != nil && user.ID == b.session.State.User.ID
}

// actorContext resolves the role set and effective admin bit of a
// message author in a channel.
func (b *Bot) actorContext(guildID, channelID, userID string) (roles []string, isAdmin bool) {
	member, err := b.session.State.Member(guildID, userID)
	if err == nil && member != nil {
		roles = member.Roles
	}
	perms, err := b.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		perms, err = b.session.UserChannelPermissions(userID, channelID)
		if err != nil {
			b.logger.Warn("permission lookup failed", zap.String("user", userID), zap.Error(err))
			return roles, false
		}
	}
	return roles, perms&discordgo.PermissionAdministrator != 0
}

func accountAge(userID string, now time.Time) time.Duration {
	created, err := discordgo.SnowflakeTimestamp(userID)
	if err != nil {
		return 0
	}
	return now.Sub(created)
}

func (b *Bot) router(guildID string) *command.Router {
	resolver := &guildResolver{session: b.session, guildID: guildID}
	return command.NewRouter(b.cfg.Prefix, b.rules, resolver, b.logger)
}
