// Package rolechange evaluates declarative reactions to member role
// updates. Each rule watches a transition between two role-set states
// and requests role additions or removals when it fires.
package rolechange

import (
	"warden/internal/config"

	"go.uber.org/zap"
)

// Change is one fired rule's requested mutation.
type Change struct {
	RuleName string
	Add      []string
	Remove   []string
}

// Evaluator holds the compiled rule list.
type Evaluator struct {
	rules  []config.ChangeRoleRule
	logger *zap.Logger
}

func NewEvaluator(rules []config.ChangeRoleRule, logger *zap.Logger) *Evaluator {
	return &Evaluator{rules: rules, logger: logger}
}

// Evaluate compares a member's role sets before and after an update
// and returns the changes of every rule whose transition matches.
// A side matches when the member holds at least one of the rule's
// roles for that side; an empty side never matches.
func (e *Evaluator) Evaluate(before, after []string) []Change {
	var changes []Change
	for _, rule := range e.rules {
		hadBefore := anyOf(before, rule.BeforeRoles)
		hasAfter := anyOf(after, rule.AfterRoles)

		fired := false
		switch rule.Type {
		case "yes-to-yes":
			fired = hadBefore && hasAfter
		case "no-to-no":
			fired = !hadBefore && !hasAfter
		case "yes-to-no":
			fired = hadBefore && !hasAfter
		case "no-to-yes":
			fired = !hadBefore && hasAfter
		}
		if !fired {
			continue
		}
		e.logger.Debug("change role rule fired", zap.String("rule", rule.Name), zap.String("type", rule.Type))
		changes = append(changes, Change{RuleName: rule.Name, Add: rule.ToAdd, Remove: rule.ToRemove})
	}
	return changes
}

func anyOf(held, wanted []string) bool {
	for _, want := range wanted {
		for _, have := range held {
			if have == want {
				return true
			}
		}
	}
	return false
}
