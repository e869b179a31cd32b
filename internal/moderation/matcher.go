package moderation

import (
	"regexp"
	"strings"

	"warden/internal/config"
	"warden/internal/perm"

	"go.uber.org/zap"
)

// Cap on the link-dedup buffer; oldest entries drop beyond it.
const dedupCapacity = 100_000

// Matcher evaluates message text against the configured moderation
// rules. It owns its dedup state so separate instances (tests) never
// interfere.
type Matcher struct {
	rules      *config.RuleSet
	logger     *zap.Logger
	categories []compiledCategory
	recent     *RingBuffer
}

type compiledCategory struct {
	name   string
	regexp *regexp.Regexp
}

func NewMatcher(rules *config.RuleSet, logger *zap.Logger) *Matcher {
	m := &Matcher{
		rules:  rules,
		logger: logger,
		recent: NewRingBuffer(dedupCapacity),
	}
	for _, category := range rules.SuspiciousWords.Categories {
		compiled, err := compileWordList(category.Words)
		if err != nil {
			logger.Warn("suspicious word category failed to compile, disabled",
				zap.String("category", category.Category), zap.Error(err))
			continue
		}
		if compiled == nil {
			continue
		}
		m.categories = append(m.categories, compiledCategory{name: category.Category, regexp: compiled})
	}
	return m
}

func compileWordList(words []string) (*regexp.Regexp, error) {
	quoted := make([]string, 0, len(words))
	for _, word := range words {
		normalized := NormalizeText(word)
		if normalized == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(normalized))
	}
	if len(quoted) == 0 {
		return nil, nil
	}
	return regexp.Compile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// RegexVerdict is the decision for a channel-restriction rule.
type RegexVerdict struct {
	Delete        bool
	RuleName      string
	DirectMessage string
}

// EvaluateChannelRegex applies the regex rule bound to the channel, if
// any. Messages that fail to match are deleted unless the author is
// excluded or an admin. An invalid pattern disables the rule for the
// evaluation; it never causes a deletion.
func (m *Matcher) EvaluateChannelRegex(channelID, content string, actorRoles []string, isAdmin bool) RegexVerdict {
	rule, ok := m.rules.RegexRuleFor(channelID)
	if !ok {
		return RegexVerdict{}
	}
	if isAdmin || perm.Authorize(actorRoles, false, rule.ExcludeRoles) {
		return RegexVerdict{}
	}

	compiled := rule.Regexp
	if compiled == nil {
		recompiled, err := config.CompilePattern(rule.Pattern, rule.Flags)
		if err != nil {
			m.logger.Warn("regex rule invalid, skipping evaluation",
				zap.String("name", rule.Name), zap.Error(err))
			return RegexVerdict{}
		}
		compiled = recompiled
	}

	if compiled.MatchString(content) {
		return RegexVerdict{}
	}
	return RegexVerdict{Delete: true, RuleName: rule.Name, DirectMessage: rule.DirectMessage}
}

// MatchSuspiciousWords returns every category whose word list appears
// in the normalized text. Matches accumulate; evaluation order never
// changes the result.
func (m *Matcher) MatchSuspiciousWords(content string) []string {
	normalized := NormalizeText(content)
	if normalized == "" {
		return nil
	}
	var matched []string
	for _, category := range m.categories {
		if category.regexp.MatchString(normalized) {
			matched = append(matched, category.name)
		}
	}
	return matched
}

// MatchAffiliateLinks returns the site names of every configured
// affiliate pattern found in the raw text (union, not first match).
func (m *Matcher) MatchAffiliateLinks(content string) []string {
	var matched []string
	for _, site := range m.rules.AffiliateLinks.Sites {
		if site.Regexp == nil {
			continue
		}
		if site.Regexp.MatchString(content) {
			matched = append(matched, site.Website)
		}
	}
	return matched
}

// AffiliateExempt reports whether the author is excluded from
// affiliate-link deletion. Reporting still happens for exempt authors.
func (m *Matcher) AffiliateExempt(actorRoles []string, isAdmin bool) bool {
	return isAdmin || perm.Authorize(actorRoles, false, m.rules.AffiliateLinks.ExcludeRoles)
}

// SeenLinks records the canonical links of a message and reports
// whether that exact link set was already seen for the message id,
// so edits that leave the links untouched are not re-reported.
func (m *Matcher) SeenLinks(messageID, content string) bool {
	links := CanonicalLinks(content)
	if len(links) == 0 {
		return false
	}
	return m.recent.Remember(messageID, strings.Join(links, " "))
}
