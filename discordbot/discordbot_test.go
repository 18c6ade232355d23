package discordbot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/handlers"
	"github.com/fanzyb/roblox-mooncrest/services"
)

type fakeAPI struct {
	roles     map[string][]string
	embeds    map[string][]*discordgo.MessageEmbed
	responses []*discordgo.InteractionResponse
	status    string
	failAdd   error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{roles: map[string][]string{}, embeds: map[string][]*discordgo.MessageEmbed{}}
}

func (f *fakeAPI) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: f.roles[userID]}, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	if f.failAdd != nil {
		return f.failAdd
	}
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	kept := f.roles[userID][:0]
	for _, r := range f.roles[userID] {
		if r != roleID {
			kept = append(kept, r)
		}
	}
	f.roles[userID] = kept
	return nil
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.embeds[channelID] = append(f.embeds[channelID], e)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeAPI) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeAPI) ApplicationCommandBulkOverwrite(_, _ string, cmds []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	return cmds, nil
}

func (f *fakeAPI) UpdateWatchStatus(_ int, name string) error {
	f.status = name
	return nil
}

func TestGuildRoles(t *testing.T) {
	api := newFakeAPI()
	g := &Guild{API: api, GuildID: "G"}
	ctx := context.Background()

	if err := g.AddRole(ctx, "U1", "R1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.HasRole(ctx, "U1", "R1"); !ok {
		t.Fatal("role not held after add")
	}
	if err := g.RemoveRole(ctx, "U1", "R1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.HasRole(ctx, "U1", "R1"); ok {
		t.Fatal("role still held after remove")
	}

	api.failAdd = errors.New("missing permissions")
	if err := g.AddRole(ctx, "U1", "R1"); err == nil {
		t.Fatal("expected add failure")
	}

	if err := g.SetPresence(ctx, "1,500 climbers"); err != nil || api.status != "1,500 climbers" {
		t.Fatalf("status=%q err=%v", api.status, err)
	}
}

func TestChannelNotifierRoutesByKind(t *testing.T) {
	api := newFakeAPI()
	n := &ChannelNotifier{API: api, Channels: map[services.EventKind]string{services.EventLink: "C-link"}}

	ev := services.Event{
		Kind:      services.EventLink,
		Title:     "Account verified",
		Actor:     "mod",
		Fields:    []services.EventField{{Name: "Roblox", Value: "Alice (100)"}},
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), services.Event{Kind: services.EventLedger, Title: "XP"}); err != nil {
		t.Fatal(err)
	}

	got := api.embeds["C-link"]
	if len(got) != 1 || len(api.embeds) != 1 {
		t.Fatalf("embeds=%v", api.embeds)
	}
	if got[0].Title != "🔗 Account verified" || got[0].Footer.Text != "by mod" || got[0].Timestamp != "2023-11-14T22:13:20Z" {
		t.Fatalf("embed=%+v", got[0])
	}
}

type listOnly struct{ handlers.Handler }

func (listOnly) HandleListReward(context.Context, handlers.ListRewardCommand) handlers.Reply {
	return handlers.Reply{Content: "rewards", Ephemeral: true}
}

func TestRouterRespondsToKnownInteractions(t *testing.T) {
	api := newFakeAPI()
	r := &Router{API: api, Handler: listOnly{}}

	r.Serve(context.Background(), &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: "U1"}},
		Data:   discordgo.ApplicationCommandInteractionData{Name: "list-reward"},
	}})
	r.Serve(context.Background(), &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: "U1"}},
		Data:   discordgo.ApplicationCommandInteractionData{Name: "shop"},
	}})

	if len(api.responses) != 1 {
		t.Fatalf("responses=%d, want 1", len(api.responses))
	}
	resp := api.responses[0]
	if resp.Data.Content != "rewards" || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("response=%+v", resp.Data)
	}
}

func TestRouterAnswersMalformedCommandWithError(t *testing.T) {
	api := newFakeAPI()
	r := &Router{API: api, Handler: listOnly{}}

	r.Serve(context.Background(), &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:   discordgo.InteractionApplicationCommand,
		Member: &discordgo.Member{User: &discordgo.User{ID: "U1"}},
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "leaderboard",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{
				{Name: "metric", Type: discordgo.ApplicationCommandOptionString, Value: "gold"},
			},
		},
	}})

	if len(api.responses) != 1 {
		t.Fatalf("responses=%d, want 1", len(api.responses))
	}
	resp := api.responses[0]
	if resp.Data.Content != "❌ An error occurred." || resp.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Fatalf("response=%+v", resp.Data)
	}
}

func TestRegisterCommands(t *testing.T) {
	if err := RegisterCommands(context.Background(), newFakeAPI(), "app", "G", handlers.Commands()); err != nil {
		t.Fatal(err)
	}
}
