// handlers/parse.go
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/services"
	"github.com/google/uuid"
)

const (
	VerifyOpenID   = "verify:open"
	VerifyModalID  = "verify:modal"
	UsernameInput  = "username"
	rewardIDPrefix = "reward"
)

// ErrUnknownInteraction is returned for commands and components this bot does not own.
var ErrUnknownInteraction = errors.New("unknown interaction")

// Parse resolves a raw interaction into its variant once, at the boundary.
func Parse(ic *discordgo.InteractionCreate) (Interaction, error) {
	if ic == nil || ic.Interaction == nil {
		return nil, ErrUnknownInteraction
	}
	base := Base{
		Caller:     callerOf(ic.Interaction),
		TraceID:    uuid.NewString(),
		ReceivedAt: time.Now(),
	}

	switch ic.Type {
	case discordgo.InteractionApplicationCommand:
		return parseCommand(base, ic.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		return parseComponent(base, ic.MessageComponentData())
	case discordgo.InteractionModalSubmit:
		return parseModal(base, ic.ModalSubmitData())
	}
	return nil, fmt.Errorf("interaction type %d: %w", ic.Type, ErrUnknownInteraction)
}

func callerOf(i *discordgo.Interaction) services.Caller {
	if i.Member != nil && i.Member.User != nil {
		return services.Caller{
			PlatformID:    i.Member.User.ID,
			Tag:           i.Member.User.String(),
			Administrator: i.Member.Permissions&discordgo.PermissionAdministrator != 0,
			RoleIDs:       i.Member.Roles,
		}
	}
	if i.User != nil {
		return services.Caller{PlatformID: i.User.ID, Tag: i.User.String()}
	}
	return services.Caller{}
}

type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionsOf(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) str(name string) string {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionString {
		return strings.TrimSpace(v.StringValue())
	}
	return ""
}

func (o options) integer(name string) (int64, bool) {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionInteger {
		return v.IntValue(), true
	}
	return 0, false
}

func (o options) user(name string) string {
	if v, ok := o[name]; ok && v.Type == discordgo.ApplicationCommandOptionUser {
		if u := v.UserValue(nil); u != nil {
			return u.ID
		}
	}
	return ""
}

// target reads the username / member pair; with neither set it falls back to self when allowed.
func (o options) target(self string) services.Target {
	if name := o.str("username"); name != "" {
		return services.Target{Username: name}
	}
	if id := o.user("member"); id != "" {
		return services.Target{PlatformID: id}
	}
	return services.Target{PlatformID: self}
}

// subcommand splits "/name sub ..." into the sub name and its options.
func subcommand(data discordgo.ApplicationCommandInteractionData) (string, options, error) {
	if len(data.Options) == 0 || data.Options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", nil, fmt.Errorf("/%s without subcommand: %w", data.Name, ErrUnknownInteraction)
	}
	sub := data.Options[0]
	return sub.Name, optionsOf(sub.Options), nil
}

func parseCommand(base Base, data discordgo.ApplicationCommandInteractionData) (Interaction, error) {
	switch data.Name {
	case "xp", "expo":
		sub, opts, err := subcommand(data)
		if err != nil {
			return nil, err
		}
		op := services.Op(sub)
		if op != services.OpAdd && op != services.OpRemove && op != services.OpSet {
			return nil, fmt.Errorf("/%s %s: %w", data.Name, sub, ErrUnknownInteraction)
		}
		amount, _ := opts.integer("amount")
		cmd := LedgerCommand{Base: base, Op: op, Target: opts.target(""), Amount: amount}
		if data.Name == "xp" {
			return XPCommand{cmd}, nil
		}
		return ActivityCommand{cmd}, nil

	case "link":
		sub, opts, err := subcommand(data)
		if err != nil {
			return nil, err
		}
		action := LinkAction(sub)
		switch action {
		case LinkInitiate, LinkMember, LinkRemove, LinkStatus:
		default:
			return nil, fmt.Errorf("/link %s: %w", sub, ErrUnknownInteraction)
		}
		return LinkCommand{Base: base, Action: action, Username: opts.str("username"), MemberID: opts.user("member")}, nil

	case "verify":
		sub, opts, err := subcommand(data)
		if err != nil {
			return nil, err
		}
		switch sub {
		case "account":
			return VerifyAccountCommand{Base: base, Username: opts.str("username")}, nil
		case "setup":
			return VerifySetupCommand{Base: base}, nil
		}
		return nil, fmt.Errorf("/verify %s: %w", sub, ErrUnknownInteraction)

	case "rank":
		return RankCommand{Base: base, Target: optionsOf(data.Options).target(base.Caller.PlatformID)}, nil

	case "leaderboard":
		opts := optionsOf(data.Options)
		metric, err := services.ParseMetric(opts.str("metric"))
		if err != nil {
			return nil, err
		}
		page, ok := opts.integer("page")
		if !ok {
			page = 1
		}
		return LeaderboardCommand{Base: base, Metric: metric, Page: int(page)}, nil

	case "hall-of-fame":
		return HallOfFameCommand{Base: base}, nil
	case "list-reward":
		return ListRewardCommand{Base: base}, nil
	case "debug":
		return DebugCommand{Base: base}, nil

	case "reward":
		sub, opts, err := subcommand(data)
		if err != nil {
			return nil, err
		}
		action, err := rewardAction(sub)
		if err != nil {
			return nil, err
		}
		return RewardCommand{Base: base, Action: action, Target: opts.target("")}, nil
	}
	return nil, fmt.Errorf("/%s: %w", data.Name, ErrUnknownInteraction)
}

func rewardAction(s string) (services.SyncAction, error) {
	switch s {
	case "add":
		return services.SyncGrant, nil
	case "remove":
		return services.SyncRevoke, nil
	}
	return "", fmt.Errorf("reward action %q: %w", s, ErrUnknownInteraction)
}

// RewardSelectID renders reward:<add|remove>:<externalID>.
func RewardSelectID(action services.SyncAction, externalID string) string {
	verb := "add"
	if action == services.SyncRevoke {
		verb = "remove"
	}
	return strings.Join([]string{rewardIDPrefix, verb, externalID}, ":")
}

func parseComponent(base Base, data discordgo.MessageComponentInteractionData) (Interaction, error) {
	id := data.CustomID
	switch {
	case id == VerifyOpenID:
		return VerifyOpenButton{Base: base}, nil

	case services.IsLeaderboardToken(id):
		tok, err := services.DecodeLeaderboardToken(id)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrUnknownInteraction)
		}
		return LeaderboardButton{Base: base, Token: tok}, nil

	case strings.HasPrefix(id, rewardIDPrefix+":"):
		parts := strings.Split(id, ":")
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("reward component %q: %w", id, ErrUnknownInteraction)
		}
		action, err := rewardAction(parts[1])
		if err != nil {
			return nil, err
		}
		if len(data.Values) != 1 {
			return nil, fmt.Errorf("reward component %q without a selection: %w", id, ErrUnknownInteraction)
		}
		achievementID, err := strconv.Atoi(data.Values[0])
		if err != nil {
			return nil, fmt.Errorf("reward value %q: %w", data.Values[0], ErrUnknownInteraction)
		}
		return RewardSelect{Base: base, Action: action, ExternalID: parts[2], AchievementID: achievementID}, nil
	}
	return nil, fmt.Errorf("component %q: %w", id, ErrUnknownInteraction)
}

func parseModal(base Base, data discordgo.ModalSubmitInteractionData) (Interaction, error) {
	if data.CustomID != VerifyModalID {
		return nil, fmt.Errorf("modal %q: %w", data.CustomID, ErrUnknownInteraction)
	}
	return VerifyModalSubmit{Base: base, Username: textInput(data.Components, UsernameInput)}, nil
}

func textInput(rows []discordgo.MessageComponent, id string) string {
	for _, row := range rows {
		var children []discordgo.MessageComponent
		switch r := row.(type) {
		case *discordgo.ActionsRow:
			children = r.Components
		case discordgo.ActionsRow:
			children = r.Components
		}
		for _, c := range children {
			switch ti := c.(type) {
			case *discordgo.TextInput:
				if ti.CustomID == id {
					return strings.TrimSpace(ti.Value)
				}
			case discordgo.TextInput:
				if ti.CustomID == id {
					return strings.TrimSpace(ti.Value)
				}
			}
		}
	}
	return ""
}
