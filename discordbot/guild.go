// discordbot/guild.go
package discordbot

import (
	"context"
	"fmt"
	"log"
	"slices"

	"github.com/bwmarrin/discordgo"
)

// API is the part of *discordgo.Session the bot uses.
type API interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	UpdateWatchStatus(idle int, name string) error
}

var _ API = (*discordgo.Session)(nil)

// Guild manages roles and presence for the one guild the bot serves.
type Guild struct {
	API     API
	GuildID string
}

func (g *Guild) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	m, err := g.API.GuildMember(g.GuildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("fetch member %s: %w", userID, err)
	}
	return slices.Contains(m.Roles, roleID), nil
}

func (g *Guild) AddRole(ctx context.Context, userID, roleID string) error {
	if err := g.API.GuildMemberRoleAdd(g.GuildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %s to %s: %w", roleID, userID, err)
	}
	log.Printf("[DISCORD] ➕ role %s → %s", roleID, userID)
	return nil
}

func (g *Guild) RemoveRole(ctx context.Context, userID, roleID string) error {
	if err := g.API.GuildMemberRoleRemove(g.GuildID, userID, roleID, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("remove role %s from %s: %w", roleID, userID, err)
	}
	log.Printf("[DISCORD] ➖ role %s ✕ %s", roleID, userID)
	return nil
}

// SetPresence shows text as a "Watching" status.
func (g *Guild) SetPresence(_ context.Context, text string) error {
	return g.API.UpdateWatchStatus(0, text)
}

// RegisterCommands replaces the guild's slash commands with cmds.
// An empty guildID registers them globally.
func RegisterCommands(ctx context.Context, api API, appID, guildID string, cmds []*discordgo.ApplicationCommand) error {
	out, err := api.ApplicationCommandBulkOverwrite(appID, guildID, cmds, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	log.Printf("[DISCORD] ✅ registered %d commands (guild %q)", len(out), guildID)
	return nil
}
