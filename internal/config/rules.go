package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"warden/internal/schedule"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleSet is the declarative behavior configuration, loaded once at
// startup and read-only afterward. Malformed entries are logged and
// dropped during validation instead of failing the process.
type RuleSet struct {
	RegexRules      []RegexRule         `yaml:"regex_rules"`
	SuspiciousWords SuspiciousWordRules `yaml:"suspicious_words"`
	AffiliateLinks  AffiliateRules      `yaml:"affiliate_links"`
	ToggleGroups    []ToggleGroup       `yaml:"toggle_groups"`
	ChangeRoleRules []ChangeRoleRule    `yaml:"change_role_rules"`
	AntiRaid        AntiRaidRules       `yaml:"anti_raid"`
	Snitch          SnitchRules         `yaml:"snitch"`
	ScheduledPosts  []ScheduledPost     `yaml:"scheduled_posts"`
	CommandRoles    map[string][]string `yaml:"command_roles"`
}

// RegexRule restricts a channel to messages matching a pattern.
// Non-matching messages from non-excluded, non-admin authors are
// deleted, optionally with a DM notice.
type RegexRule struct {
	Name          string   `yaml:"name"`
	ChannelID     string   `yaml:"channel_id"`
	Pattern       string   `yaml:"pattern"`
	Flags         string   `yaml:"flags"`
	DirectMessage string   `yaml:"direct_message"`
	ExcludeRoles  []string `yaml:"exclude_roles"`

	Regexp *regexp.Regexp `yaml:"-"`
}

type SuspiciousWordRules struct {
	ReportChannelID string         `yaml:"report_channel"`
	Categories      []WordCategory `yaml:"categories"`
}

type WordCategory struct {
	Category string   `yaml:"category"`
	Words    []string `yaml:"words"`
}

type AffiliateRules struct {
	ReportChannelID string          `yaml:"report_channel"`
	DirectMessage   string          `yaml:"direct_message"`
	ExcludeRoles    []string        `yaml:"exclude_roles"`
	Sites           []AffiliateLink `yaml:"sites"`
}

type AffiliateLink struct {
	Website string `yaml:"website"`
	Pattern string `yaml:"pattern"`
	Flags   string `yaml:"flags"`

	Regexp *regexp.Regexp `yaml:"-"`
}

// ToggleGroup is a named, bidirectional bundle of channel permission
// overwrites. Lookup by id is first-match-wins.
type ToggleGroup struct {
	ID   string              `yaml:"id"`
	Name string              `yaml:"name"`
	On   []ChannelPermToggle `yaml:"on"`
	Off  []ChannelPermToggle `yaml:"off"`
}

type ChannelPermToggle struct {
	ChannelID  string          `yaml:"channel_id"`
	Overwrites []PermOverwrite `yaml:"overwrites"`
}

type PermOverwrite struct {
	SubjectID string `yaml:"subject_id"`
	Kind      string `yaml:"kind"` // "role" or "member"
	Allow     int64  `yaml:"allow"`
	Deny      int64  `yaml:"deny"`
}

// ChangeRoleRule fires on member role updates. The transition type
// compares the member's role set before and after the event against
// BeforeRoles and AfterRoles (any-of intersection on both sides).
type ChangeRoleRule struct {
	Name        string   `yaml:"name"`
	Type        string   `yaml:"type"` // yes-to-yes, no-to-no, yes-to-no, no-to-yes
	BeforeRoles []string `yaml:"before_roles"`
	AfterRoles  []string `yaml:"after_roles"`
	ToAdd       []string `yaml:"to_add"`
	ToRemove    []string `yaml:"to_remove"`
}

type AntiRaidRules struct {
	VerificationChannelID string               `yaml:"verification_channel"`
	VerifiedRoleID        string               `yaml:"verified_role"`
	ExcludeRoles          []string             `yaml:"exclude_roles"`
	SecretCodes           []string             `yaml:"secret_codes"`
	TrustedAgeSeconds     int                  `yaml:"trusted_age_seconds"`
	MinAccountAgeSeconds  int                  `yaml:"min_account_age_seconds"`
	AvatarBlacklist       []string             `yaml:"avatar_blacklist"`
	UsernameBlacklist     []string             `yaml:"username_blacklist"`
	Messages              VerificationMessages `yaml:"messages"`
}

// VerificationMessages carries the normal and suspicious tone of each
// verification reply. The suspicious variants fall back to the normal
// ones when unset.
type VerificationMessages struct {
	Welcome           string `yaml:"welcome"`
	Valid             string `yaml:"valid"`
	Invalid           string `yaml:"invalid"`
	SuspiciousWelcome string `yaml:"suspicious_welcome"`
	SuspiciousValid   string `yaml:"suspicious_valid"`
	SuspiciousInvalid string `yaml:"suspicious_invalid"`
}

type SnitchRules struct {
	ChannelID string `yaml:"channel"`
	Edits     bool   `yaml:"edits"`
	Deletes   bool   `yaml:"deletes"`
	Renames   bool   `yaml:"renames"`
	Uploads   bool   `yaml:"uploads"`
}

type ScheduledPost struct {
	Name      string        `yaml:"name"`
	ChannelID string        `yaml:"channel_id"`
	Message   string        `yaml:"message"`
	SourceURL string        `yaml:"source_url"`
	Schedule  schedule.Spec `yaml:"schedule"`
}

// LoadRules reads and validates the rule file. Read or parse failures
// are fatal (startup boundary); individual malformed entries are
// logged and dropped.
func LoadRules(path string, logger *zap.Logger) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", path, err)
	}

	rules.validate(logger)
	return &rules, nil
}

func (r *RuleSet) validate(logger *zap.Logger) {
	regexRules := r.RegexRules[:0]
	for _, rule := range r.RegexRules {
		if rule.Name == "" || rule.ChannelID == "" || rule.Pattern == "" {
			logger.Warn("regex rule missing required field, disabled", zap.String("name", rule.Name))
			continue
		}
		compiled, err := CompilePattern(rule.Pattern, rule.Flags)
		if err != nil {
			logger.Warn("regex rule has invalid pattern, disabled",
				zap.String("name", rule.Name), zap.Error(err))
			continue
		}
		rule.Regexp = compiled
		regexRules = append(regexRules, rule)
	}
	r.RegexRules = regexRules

	categories := r.SuspiciousWords.Categories[:0]
	for _, category := range r.SuspiciousWords.Categories {
		if category.Category == "" || !hasNonEmptyWord(category.Words) {
			logger.Warn("suspicious word category empty, disabled", zap.String("category", category.Category))
			continue
		}
		categories = append(categories, category)
	}
	r.SuspiciousWords.Categories = categories

	sites := r.AffiliateLinks.Sites[:0]
	for _, site := range r.AffiliateLinks.Sites {
		if site.Website == "" || site.Pattern == "" {
			logger.Warn("affiliate link missing required field, disabled", zap.String("website", site.Website))
			continue
		}
		compiled, err := CompilePattern(site.Pattern, site.Flags)
		if err != nil {
			logger.Warn("affiliate link has invalid pattern, disabled",
				zap.String("website", site.Website), zap.Error(err))
			continue
		}
		site.Regexp = compiled
		sites = append(sites, site)
	}
	r.AffiliateLinks.Sites = sites

	groups := r.ToggleGroups[:0]
	seen := make(map[string]struct{}, len(r.ToggleGroups))
	for _, group := range r.ToggleGroups {
		if group.ID == "" {
			logger.Warn("toggle group missing id, disabled", zap.String("name", group.Name))
			continue
		}
		if _, dup := seen[group.ID]; dup {
			logger.Warn("duplicate toggle group id, keeping first", zap.String("id", group.ID))
			continue
		}
		seen[group.ID] = struct{}{}
		group.On = validToggles(group.On)
		group.Off = validToggles(group.Off)
		groups = append(groups, group)
	}
	r.ToggleGroups = groups

	roleRules := r.ChangeRoleRules[:0]
	for _, rule := range r.ChangeRoleRules {
		switch rule.Type {
		case "yes-to-yes", "no-to-no", "yes-to-no", "no-to-yes":
		default:
			logger.Warn("change role rule has unknown type, disabled",
				zap.String("name", rule.Name), zap.String("type", rule.Type))
			continue
		}
		if len(rule.ToAdd) == 0 && len(rule.ToRemove) == 0 {
			logger.Warn("change role rule has no effect, disabled", zap.String("name", rule.Name))
			continue
		}
		roleRules = append(roleRules, rule)
	}
	r.ChangeRoleRules = roleRules

	posts := r.ScheduledPosts[:0]
	for _, post := range r.ScheduledPosts {
		if post.Name == "" || post.ChannelID == "" || (post.Message == "" && post.SourceURL == "") {
			logger.Warn("scheduled post missing required field, disabled", zap.String("name", post.Name))
			continue
		}
		if err := post.Schedule.Validate(); err != nil {
			logger.Warn("scheduled post has invalid schedule, disabled",
				zap.String("name", post.Name), zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	r.ScheduledPosts = posts
}

func validToggles(toggles []ChannelPermToggle) []ChannelPermToggle {
	valid := toggles[:0]
	for _, toggle := range toggles {
		if toggle.ChannelID == "" || len(toggle.Overwrites) == 0 {
			continue
		}
		overwrites := toggle.Overwrites[:0]
		for _, overwrite := range toggle.Overwrites {
			if overwrite.SubjectID == "" {
				continue
			}
			if overwrite.Kind != "role" && overwrite.Kind != "member" {
				continue
			}
			overwrites = append(overwrites, overwrite)
		}
		if len(overwrites) == 0 {
			continue
		}
		toggle.Overwrites = overwrites
		valid = append(valid, toggle)
	}
	return valid
}

func hasNonEmptyWord(words []string) bool {
	for _, word := range words {
		if strings.TrimSpace(word) != "" {
			return true
		}
	}
	return false
}

// FindToggleGroup returns the first group with the given id.
func (r *RuleSet) FindToggleGroup(id string) (ToggleGroup, bool) {
	for _, group := range r.ToggleGroups {
		if group.ID == id {
			return group, true
		}
	}
	return ToggleGroup{}, false
}

// ToggleGroupIDs lists known group ids, capped at limit.
func (r *RuleSet) ToggleGroupIDs(limit int) []string {
	ids := make([]string, 0, limit)
	for _, group := range r.ToggleGroups {
		if len(ids) >= limit {
			break
		}
		ids = append(ids, group.ID)
	}
	return ids
}

// RegexRuleFor returns the regex rule bound to a channel, if any.
func (r *RuleSet) RegexRuleFor(channelID string) (RegexRule, bool) {
	for _, rule := range r.RegexRules {
		if rule.ChannelID == channelID {
			return rule, true
		}
	}
	return RegexRule{}, false
}

// CompilePattern compiles a pattern with the subset of flag letters
// the rule files use (i, m, s), mapped to Go inline flags.
func CompilePattern(pattern, flags string) (*regexp.Regexp, error) {
	inline := ""
	for _, flag := range flags {
		switch flag {
		case 'i', 'm', 's':
			inline += string(flag)
		}
	}
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	return regexp.Compile(pattern)
}
