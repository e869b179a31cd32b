package command

import (
	"strings"
	"testing"

	"warden/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolver struct {
	members  map[string]*discordgo.Member
	roles    map[string]*discordgo.Role
	channels map[string]*discordgo.Channel
	botPerms int64
}

func (f *fakeResolver) Member(id string) (*discordgo.Member, bool) {
	member, ok := f.members[id]
	return member, ok
}

func (f *fakeResolver) Role(id string) (*discordgo.Role, bool) {
	role, ok := f.roles[id]
	return role, ok
}

func (f *fakeResolver) Channel(id string) (*discordgo.Channel, bool) {
	channel, ok := f.channels[id]
	return channel, ok
}

func (f *fakeResolver) BotPermissions(string) int64 { return f.botPerms }

func testRouter(t *testing.T) (*Router, *fakeResolver) {
	t.Helper()
	resolver := &fakeResolver{
		members: map[string]*discordgo.Member{
			"1001": {User: &discordgo.User{ID: "1001", Username: "pic", Avatar: "abcd"}},
			"1002": {User: &discordgo.User{ID: "1002", Username: "blank", Avatar: ""}},
		},
		roles: map[string]*discordgo.Role{
			"2001": {ID: "2001", Name: "helpers"},
		},
		channels: map[string]*discordgo.Channel{
			"3001": {ID: "3001", Name: "lounge", Type: discordgo.ChannelTypeGuildVoice},
			"3002": {ID: "3002", Name: "general", Type: discordgo.ChannelTypeGuildText},
		},
		botPerms: discordgo.PermissionVoiceMoveMembers | discordgo.PermissionVoiceMuteMembers,
	}
	rules := &config.RuleSet{
		ToggleGroups: []config.ToggleGroup{
			{
				ID: "movie-night",
				On: []config.ChannelPermToggle{{
					ChannelID:  "3002",
					Overwrites: []config.PermOverwrite{{SubjectID: "2001", Kind: "role", Allow: 1024}},
				}},
			},
			{ID: "quiet-hours"},
		},
		CommandRoles: map[string][]string{
			"fetch-members": {"mod"},
			"role":          {"mod"},
			"toggle-perms":  {"mod"},
			"voice":         {"mod"},
		},
	}
	return NewRouter("!", rules, resolver, zap.NewNop()), resolver
}

func TestParse(t *testing.T) {
	inv := Parse("!role add everyone <@&2001>", "!")
	require.NotNil(t, inv)
	assert.Equal(t, "role", inv.Command)
	assert.Equal(t, []string{"add", "everyone", "<@&2001>"}, inv.Args)

	assert.Nil(t, Parse("hello there", "!"))
	assert.Nil(t, Parse("?role add", "!"))
	assert.Nil(t, Parse("!", "!"))

	quoted := Parse(`!fetch-members string "two words"`, "!")
	require.NotNil(t, quoted)
	assert.Equal(t, []string{"string", "two words"}, quoted.Args)
}

func TestDispatchUnknownCommandIsSilent(t *testing.T) {
	router, _ := testRouter(t)
	action, cmdErr := router.Dispatch("!frobnicate now", "u1", []string{"mod"}, false)
	assert.Nil(t, action)
	assert.Nil(t, cmdErr)
}

func TestDispatchPermissionFirst(t *testing.T) {
	router, _ := testRouter(t)
	// Bad route AND missing permission: permission wins.
	action, cmdErr := router.Dispatch("!fetch-members nonsense x", "u1", []string{"pleb"}, false)
	assert.Nil(t, action)
	require.NotNil(t, cmdErr)
	assert.Equal(t, KindPermission, cmdErr.Kind)
}

func TestDispatchRouteLiteral(t *testing.T) {
	router, _ := testRouter(t)
	action, cmdErr := router.Dispatch("!fetch-members nonsense x", "u1", []string{"mod"}, false)
	assert.Nil(t, action)
	require.NotNil(t, cmdErr)
	assert.Equal(t, KindValidation, cmdErr.Kind)
	assert.Equal(t, "route", cmdErr.Field)
	assert.Equal(t, "nonsense", cmdErr.Got)
	// The error lists exactly the valid literal set.
	assert.Contains(t, cmdErr.Usage, "avatar|role|string|username")

	// A bad literal outranks a missing target argument.
	_, cmdErr = router.Dispatch("!fetch-members bogus", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "route", cmdErr.Field)
	assert.Equal(t, "bogus", cmdErr.Got)
}

func TestFetchMembersAvatarPrecondition(t *testing.T) {
	router, _ := testRouter(t)

	action, cmdErr := router.Dispatch("!fetch-members avatar <@1001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	fetch, ok := action.(FetchMembersAction)
	require.True(t, ok)
	assert.Equal(t, "abcd", fetch.AvatarHash)

	// Member without an avatar: distinct precondition error.
	action, cmdErr = router.Dispatch("!fetch-members avatar <@1002>", "u1", []string{"mod"}, false)
	assert.Nil(t, action)
	require.NotNil(t, cmdErr)
	assert.Equal(t, KindPrecondition, cmdErr.Kind)
	assert.Contains(t, cmdErr.Usage, "does not have an avatar to compare from")
}

func TestFetchMembersRoutes(t *testing.T) {
	router, _ := testRouter(t)

	action, cmdErr := router.Dispatch("!fetch-members role <@&2001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	assert.Equal(t, "helpers", action.(FetchMembersAction).Role.Name)

	action, cmdErr = router.Dispatch(`!fetch-members string "two words"`, "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	assert.Equal(t, "two words", action.(FetchMembersAction).Query)

	action, cmdErr = router.Dispatch("!fetch-members username <@!1001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	assert.Equal(t, "pic", action.(FetchMembersAction).Member.User.Username)

	// Unresolvable targets.
	_, cmdErr = router.Dispatch("!fetch-members role <@&9999>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, KindValidation, cmdErr.Kind)

	_, cmdErr = router.Dispatch("!fetch-members username notamention", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "target", cmdErr.Field)
}

func TestRoleCommand(t *testing.T) {
	router, _ := testRouter(t)

	action, cmdErr := router.Dispatch("!role add everyone <@&2001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	role := action.(RoleAction)
	assert.Equal(t, SelectEveryone, role.Selection)
	assert.Equal(t, "2001", role.RoleID)

	action, cmdErr = router.Dispatch("!role add no-role <@&2001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	assert.Equal(t, SelectNoRole, action.(RoleAction).Selection)

	// no-role is only valid with add.
	_, cmdErr = router.Dispatch("!role remove no-role <@&2001>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "selection", cmdErr.Field)
	assert.Contains(t, cmdErr.Usage, "only valid with add")

	action, cmdErr = router.Dispatch("!role remove <@&2001> <@&2001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	role = action.(RoleAction)
	assert.Equal(t, SelectRole, role.Selection)
	assert.Equal(t, "2001", role.SelectionRoleID)

	_, cmdErr = router.Dispatch("!role add everyone <@&9999>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "role", cmdErr.Field)

	_, cmdErr = router.Dispatch("!role add helpers <@&2001>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "selection", cmdErr.Field)
}

func TestTogglePermsCommand(t *testing.T) {
	router, _ := testRouter(t)

	action, cmdErr := router.Dispatch("!toggle-perms movie-night on", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	toggle := action.(TogglePermsAction)
	assert.Equal(t, "on", toggle.Direction)
	require.Len(t, toggle.Toggles, 1)

	// Unknown group: usage lists known ids as on/off pairs.
	_, cmdErr = router.Dispatch("!toggle-perms unknown-group on", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "group", cmdErr.Field)
	assert.Equal(t, "unknown-group", cmdErr.Got)
	assert.Contains(t, cmdErr.Usage, "!toggle-perms movie-night on")
	assert.Contains(t, cmdErr.Usage, "!toggle-perms movie-night off")
	assert.Contains(t, cmdErr.Usage, "quiet-hours")

	_, cmdErr = router.Dispatch("!toggle-perms movie-night sideways", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "direction", cmdErr.Field)

	// Group exists but the direction has no toggles configured.
	_, cmdErr = router.Dispatch("!toggle-perms quiet-hours on", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "direction", cmdErr.Field)
	assert.Contains(t, cmdErr.Usage, "no on toggles")
}

func TestVoiceCommand(t *testing.T) {
	router, resolver := testRouter(t)

	action, cmdErr := router.Dispatch("!voice disconnect <#3001>", "u1", []string{"mod"}, false)
	require.Nil(t, cmdErr)
	voice := action.(VoiceAction)
	assert.Equal(t, "disconnect", voice.Op)
	assert.Equal(t, "3001", voice.ChannelID)

	// Text channel rejected.
	_, cmdErr = router.Dispatch("!voice unmute <#3002>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, "channel", cmdErr.Field)
	assert.Contains(t, cmdErr.Usage, "voice or stage")

	// Missing bot permission names the permission.
	resolver.botPerms = 0
	_, cmdErr = router.Dispatch("!voice disconnect <#3001>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Equal(t, KindPrecondition, cmdErr.Kind)
	assert.Contains(t, cmdErr.Usage, "Move Members")

	_, cmdErr = router.Dispatch("!voice unmute <#3001>", "u1", []string{"mod"}, false)
	require.NotNil(t, cmdErr)
	assert.Contains(t, cmdErr.Usage, "Mute Members")
}

func TestAdminBypassesCommandRoles(t *testing.T) {
	router, _ := testRouter(t)
	action, cmdErr := router.Dispatch("!toggle-perms movie-night on", "u1", nil, true)
	assert.Nil(t, cmdErr)
	assert.NotNil(t, action)
}

func TestMentionParsing(t *testing.T) {
	for raw, want := range map[string]string{
		"<@123>":  "123",
		"<@!123>": "123",
	} {
		id, ok := ParseMemberMention(raw)
		if !ok || id != want {
			t.Fatalf("ParseMemberMention(%q) = %q, %v", raw, id, ok)
		}
	}
	if _, ok := ParseMemberMention("<@&123>"); ok {
		t.Fatalf("role mention must not parse as member")
	}
	if _, ok := ParseRoleMention("<@123>"); ok {
		t.Fatalf("member mention must not parse as role")
	}
	if id, ok := ParseChannelMention("<#55>"); !ok || id != "55" {
		t.Fatalf("ParseChannelMention = %q, %v", id, ok)
	}
	if _, ok := ParseChannelMention("<#(bad)>"); ok {
		t.Fatalf("non-numeric id must not parse")
	}
	if !strings.HasPrefix("<@&123>", "<@") {
		t.Fatal("sanity")
	}
}
