// handlers/commands.go
package handlers

import (
	"github.com/bwmarrin/discordgo"
)

func usernameOpt(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "username",
		Description: "Roblox username",
		Required:    required,
	}
}

func memberOpt(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "member",
		Description: "Linked Discord member",
		Required:    required,
	}
}

func ledgerSubcommands(unit string) []*discordgo.ApplicationCommandOption {
	zero := 0.0
	subs := make([]*discordgo.ApplicationCommandOption, 0, 3)
	for _, s := range []struct{ name, desc string }{
		{"add", "Add " + unit},
		{"remove", "Remove " + unit},
		{"set", "Set " + unit},
	} {
		subs = append(subs, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionSubCommand,
			Name:        s.name,
			Description: s.desc,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: unit + " amount",
					Required:    true,
					MinValue:    &zero,
				},
				usernameOpt(false),
				memberOpt(false),
			},
		})
	}
	return subs
}

func sub(name, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: desc,
		Options:     opts,
	}
}

// Commands is the slash command table registered with --register-commands.
func Commands() []*discordgo.ApplicationCommand {
	one := 1.0
	return []*discordgo.ApplicationCommand{
		{Name: "xp", Description: "Manage user XP", Options: ledgerSubcommands("XP")},
		{Name: "expo", Description: "Manage user Expedition count", Options: ledgerSubcommands("Expedition")},
		{
			Name:        "link",
			Description: "Manage Roblox ↔ Discord links",
			Options: []*discordgo.ApplicationCommandOption{
				sub("initiate", "Register a Roblox account without linking it", usernameOpt(true)),
				sub("member", "Link a Roblox account to a Discord member (overrides existing links)", usernameOpt(true), memberOpt(true)),
				sub("remove", "Unlink a Roblox account", usernameOpt(true)),
				sub("status", "Show the link state of a Roblox account", usernameOpt(true)),
			},
		},
		{
			Name:        "verify",
			Description: "Link your Roblox account",
			Options: []*discordgo.ApplicationCommandOption{
				sub("account", "Verify with your Roblox username", usernameOpt(true)),
				sub("setup", "Post the verification panel in this channel"),
			},
		},
		{
			Name:        "rank",
			Description: "Check rank of a Roblox user",
			Options:     []*discordgo.ApplicationCommandOption{usernameOpt(false), memberOpt(false)},
		},
		{
			Name:        "leaderboard",
			Description: "Show the leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "metric",
					Description: "Sort by",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "XP", Value: "xp"},
						{Name: "Expeditions", Value: "activity"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page number",
					MinValue:    &one,
				},
			},
		},
		{Name: "hall-of-fame", Description: "Show climbers with achievements"},
		{Name: "list-reward", Description: "List every achievement"},
		{
			Name:        "reward",
			Description: "Give or remove achievements (interactive)",
			Options: []*discordgo.ApplicationCommandOption{
				sub("add", "Give an achievement to a user", usernameOpt(false), memberOpt(false)),
				sub("remove", "Remove an achievement from a user", usernameOpt(false), memberOpt(false)),
			},
		},
		{Name: "debug", Description: "Show system debug info (Admin or debug role only)"},
	}
}
