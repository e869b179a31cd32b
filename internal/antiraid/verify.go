package antiraid

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"warden/internal/config"
	"warden/internal/perm"

	"go.uber.org/zap"
	"golang.org/x/text/width"
)

// codePattern anchors the first and last four digits of a member id;
// everything in between is discarded.
var codePattern = regexp.MustCompile(`^([0-9]{4})(.*)([0-9]{4})$`)

// DeriveCode returns the display form ("1234-5678") and comparison
// form ("12345678") of a member's verification code. ok is false when
// the id does not carry eight digits.
func DeriveCode(memberID string) (display, code string, ok bool) {
	groups := codePattern.FindStringSubmatch(memberID)
	if groups == nil {
		return "", "", false
	}
	return groups[1] + "-" + groups[3], groups[1] + groups[3], true
}

// NormalizeDigits folds fullwidth digits and the O/o lookalikes to
// ASCII and strips common separators, so a code typed as
// "１２３４ 5678" or "12３4-5678" still compares equal.
func NormalizeDigits(input string) string {
	folded := width.Fold.String(strings.TrimSpace(input))
	var builder strings.Builder
	builder.Grow(len(folded))
	for _, r := range folded {
		switch r {
		case 'O', 'o':
			builder.WriteRune('0')
		case ' ', '-', '_', '.', '\t':
			// separator, dropped
		default:
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// Branch is the verification outcome for one message.
type Branch int

const (
	// BranchNewCode re-sends the welcome/code message.
	BranchNewCode Branch = iota
	// BranchValid grants the verified role.
	BranchValid
	// BranchInvalid rejects the attempt.
	BranchInvalid
)

// Tone selects between the normal and suspicious message variants.
type Tone int

const (
	ToneNormal Tone = iota
	ToneSuspicious
)

// Classify evaluates one verification attempt. There is no stored
// session: every attempt is judged independently against the
// id-derived code and the secret override list. Secrets are compared
// case-sensitively against the raw trimmed input; digit normalization
// only applies to the derived-code comparison.
func Classify(input, memberID string, secretCodes []string) Branch {
	trimmed := strings.TrimSpace(input)
	if trimmed == "0" {
		return BranchNewCode
	}
	if _, code, ok := DeriveCode(memberID); ok && NormalizeDigits(trimmed) == code {
		return BranchValid
	}
	for _, secret := range secretCodes {
		if secret != "" && trimmed == secret {
			return BranchValid
		}
	}
	return BranchInvalid
}

// ChooseTone picks the message tone once per evaluation: members with
// an avatar and an account older than the minimum get the normal copy,
// everyone else the stricter suspicious copy.
func ChooseTone(hasAvatar bool, accountAge, minAccountAge time.Duration) Tone {
	if hasAvatar && accountAge >= minAccountAge {
		return ToneNormal
	}
	return ToneSuspicious
}

// Decision tells the caller what to do with a verification-channel
// message. The message itself is always deleted by the caller.
type Decision struct {
	Branch    Branch
	Message   string
	GrantRole bool
}

// Verifier implements the manual verification flow. The only stored
// state is the set of members already verified this process; the flow
// itself is a pure function of (member id, input).
type Verifier struct {
	rules  config.AntiRaidRules
	logger *zap.Logger

	mu       sync.Mutex
	verified map[string]struct{}
}

func NewVerifier(rules config.AntiRaidRules, logger *zap.Logger) *Verifier {
	return &Verifier{
		rules:    rules,
		logger:   logger,
		verified: make(map[string]struct{}),
	}
}

// Watches reports whether the flow applies to messages in a channel.
func (v *Verifier) Watches(channelID string) bool {
	return v.rules.VerificationChannelID != "" && channelID == v.rules.VerificationChannelID
}

// Exempt reports whether a member bypasses the verification flow
// entirely (excluded roles and admins).
func (v *Verifier) Exempt(actorRoles []string, isAdmin bool) bool {
	return isAdmin || perm.Authorize(actorRoles, false, v.rules.ExcludeRoles)
}

// Evaluate classifies one verification message and returns the DM to
// send plus whether to grant the verified role.
func (v *Verifier) Evaluate(memberID, input string, hasAvatar bool, accountAge time.Duration) Decision {
	tone := ChooseTone(hasAvatar, accountAge, time.Duration(v.rules.MinAccountAgeSeconds)*time.Second)
	branch := Classify(input, memberID, v.rules.SecretCodes)

	decision := Decision{Branch: branch}
	switch branch {
	case BranchNewCode:
		display, _, _ := DeriveCode(memberID)
		decision.Message = v.message(tone, v.rules.Messages.Welcome, v.rules.Messages.SuspiciousWelcome)
		decision.Message = strings.ReplaceAll(decision.Message, "{code}", display)
	case BranchValid:
		decision.Message = v.message(tone, v.rules.Messages.Valid, v.rules.Messages.SuspiciousValid)
		decision.GrantRole = v.markVerified(memberID)
	case BranchInvalid:
		decision.Message = v.message(tone, v.rules.Messages.Invalid, v.rules.Messages.SuspiciousInvalid)
	}

	v.logger.Debug("verification attempt",
		zap.String("member", memberID),
		zap.Int("branch", int(branch)),
		zap.Bool("suspicious", tone == ToneSuspicious))
	return decision
}

// markVerified records the unverified -> verified transition. It fires
// at most once per member; repeat valid attempts keep the friendly DM
// but do not re-grant the role.
func (v *Verifier) markVerified(memberID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, done := v.verified[memberID]; done {
		return false
	}
	v.verified[memberID] = struct{}{}
	return true
}

func (v *Verifier) message(tone Tone, normal, suspicious string) string {
	if tone == ToneSuspicious && suspicious != "" {
		return suspicious
	}
	return normal
}

// AutoVerified reports whether a joining account is old enough to
// bypass manual verification entirely.
func (v *Verifier) AutoVerified(accountAge time.Duration) bool {
	trusted := time.Duration(v.rules.TrustedAgeSeconds) * time.Second
	return trusted > 0 && accountAge >= trusted
}
