package command

import "fmt"

// ErrorKind partitions command failures for presentation. All kinds
// resolve to a user-visible error embed; none of them is logged above
// info level.
type ErrorKind int

const (
	// KindPermission: the actor may not use the command.
	KindPermission ErrorKind = iota
	// KindValidation: malformed route or arguments.
	KindValidation
	// KindPrecondition: well-formed input whose target lacks a
	// required attribute.
	KindPrecondition
)

// CommandError is the structured outcome of a rejected invocation:
// the offending field, the value received and a corrected usage
// example. Exactly one is produced per invocation; the first failing
// check wins.
type CommandError struct {
	Kind  ErrorKind
	Field string
	Got   string
	Usage string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: got %q (usage: %s)", e.Field, e.Got, e.Usage)
}

func denied(usage string) *CommandError {
	return &CommandError{Kind: KindPermission, Field: "permission", Got: "denied", Usage: usage}
}

func invalid(field, got, usage string) *CommandError {
	return &CommandError{Kind: KindValidation, Field: field, Got: got, Usage: usage}
}

func unmet(field, got, usage string) *CommandError {
	return &CommandError{Kind: KindPrecondition, Field: field, Got: got, Usage: usage}
}
