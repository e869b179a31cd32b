package bot

import (
	"testing"

	"warden/internal/antiraid"
	"warden/internal/command"
	"warden/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func member(id string, roles ...string) *discordgo.Member {
	return &discordgo.Member{User: &discordgo.User{ID: id}, Roles: roles}
}

func TestRoleTargetsSelection(t *testing.T) {
	members := []*discordgo.Member{
		member("1"),
		member("2", "casual"),
		member("3", "vip"),
		{User: &discordgo.User{ID: "4", Bot: true}},
	}

	targets := roleTargets(members, command.RoleAction{Op: "add", Selection: command.SelectEveryone, RoleID: "new"})
	require.Len(t, targets, 3)

	targets = roleTargets(members, command.RoleAction{Op: "add", Selection: command.SelectNoRole, RoleID: "new"})
	require.Len(t, targets, 1)
	assert.Equal(t, "1", targets[0].User.ID)

	targets = roleTargets(members, command.RoleAction{
		Op: "add", Selection: command.SelectRole, SelectionRoleID: "vip", RoleID: "new",
	})
	require.Len(t, targets, 1)
	assert.Equal(t, "3", targets[0].User.ID)
}

func TestRoleTargetsIdempotenceGuard(t *testing.T) {
	members := []*discordgo.Member{
		member("1", "vip"),
		member("2"),
	}
	action := command.RoleAction{Op: "add", Selection: command.SelectEveryone, RoleID: "vip"}

	// First invocation only touches the member without the role.
	targets := roleTargets(members, action)
	require.Len(t, targets, 1)
	assert.Equal(t, "2", targets[0].User.ID)

	// After the grant lands, a repeat invocation skips everyone.
	members[1].Roles = append(members[1].Roles, "vip")
	assert.Empty(t, roleTargets(members, action))

	// Same guard the other way: remove skips non-holders.
	remove := command.RoleAction{Op: "remove", Selection: command.SelectEveryone, RoleID: "vip"}
	members[0].Roles = nil
	targets = roleTargets(members, remove)
	require.Len(t, targets, 1)
	assert.Equal(t, "2", targets[0].User.ID)
}

func TestVerificationChannelWinsOverCommands(t *testing.T) {
	rules := config.AntiRaidRules{
		VerificationChannelID: "verify",
		ExcludeRoles:          []string{"staff"},
	}
	b := &Bot{verifier: antiraid.NewVerifier(rules, zap.NewNop())}

	// A member in the verification channel is intercepted before any
	// command dispatch can see the message, whatever its content.
	assert.True(t, b.interceptsVerification("verify", []string{"casual"}, false))

	// Excluded roles and admins keep normal command access there.
	assert.False(t, b.interceptsVerification("verify", []string{"staff"}, false))
	assert.False(t, b.interceptsVerification("verify", nil, true))

	// Other channels are never intercepted.
	assert.False(t, b.interceptsVerification("general", []string{"casual"}, false))
}

func TestLastMemberID(t *testing.T) {
	id, ok := lastMemberID([]*discordgo.Member{member("1"), member("2")})
	require.True(t, ok)
	assert.Equal(t, "2", id)

	_, ok = lastMemberID(nil)
	assert.False(t, ok)

	_, ok = lastMemberID([]*discordgo.Member{member("1"), {}})
	assert.False(t, ok)
}
