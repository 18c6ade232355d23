// handlers/render.go
package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/services"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// number renders n with thousands separators.
func number(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}

// ProgressBar draws the 10-cell bar shown on rank cards.
func ProgressBar(percent int) string {
	filled := max(0, min(10, percent/10))
	return strings.Repeat("⬜", filled) + strings.Repeat("🔳", 10-filled)
}

func nextLevelText(p services.Progress) string {
	if p.MaxLevel {
		return "🎉 Max level reached!"
	}
	return fmt.Sprintf("Needs **%s XP** to reach **%s**", number(p.Remaining), p.NextTierName)
}

func achievementList(defs []models.AchievementDef) string {
	if len(defs) == 0 {
		return "None"
	}
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, "🏅 "+d.Name)
	}
	return strings.Join(names, "\n")
}

func rankEmbed(card *services.RankCard, color int) *discordgo.MessageEmbed {
	acc := card.Account
	e := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s (%s)", acc.ExternalUsername, acc.ExternalID),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "XP", Value: number(acc.XP), Inline: true},
			{Name: "Level", Value: card.Progress.TierName, Inline: true},
			{Name: "Expeditions", Value: number(acc.ActivityCount), Inline: true},
			{Name: "Progress", Value: fmt.Sprintf("%s (%d%%)", ProgressBar(card.Progress.PercentToNext), card.Progress.PercentToNext)},
			{Name: "Next Level", Value: nextLevelText(card.Progress)},
			{Name: "🏅 Achievements", Value: achievementList(card.Achievements)},
			{Name: "XP Rank", Value: "#" + number(card.XPPosition), Inline: true},
			{Name: "Expedition Rank", Value: "#" + number(card.ActivityPosition), Inline: true},
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if acc.IsLinked() {
		e.Description = "Linked to <@" + acc.LinkedTo() + ">"
	}
	if card.AvatarURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: card.AvatarURL}
	}
	return e
}

func leaderboardEmbed(p *services.LeaderboardPage, color int) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, row := range p.Rows {
		medal := fmt.Sprintf("**#%d**", row.Rank)
		switch row.Rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		fmt.Fprintf(&b, "%s **%s** — %s %s • %s\n", medal, row.Username, number(row.Value), p.Metric.Label(), row.TierName)
	}
	desc := b.String()
	if desc == "" {
		desc = "⚠️ No users found."
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🏆 %s Leaderboard (Page %d/%d)", p.Metric.Label(), p.PageNumber, p.TotalPages),
		Description: desc,
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%s climbers", number(p.Total))},
	}
}

// leaderboardControls renders prev / next / metric switch. Expired pages get disabled buttons.
func leaderboardControls(p *services.LeaderboardPage, issued time.Time, disabled bool) []discordgo.MessageComponent {
	c := services.ControlsFor(p, issued)
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{
				CustomID: c.Prev.Encode(),
				Label:    "◀ Prev",
				Style:    discordgo.SecondaryButton,
				Disabled: disabled || !p.HasPrev(),
			},
			discordgo.Button{
				CustomID: c.Next.Encode(),
				Label:    "Next ▶",
				Style:    discordgo.SecondaryButton,
				Disabled: disabled || !p.HasNext(),
			},
			discordgo.Button{
				CustomID: c.Switch.Encode(),
				Label:    "Sort by " + p.Metric.Other().Label(),
				Style:    discordgo.PrimaryButton,
				Disabled: disabled,
			},
		}},
	}
}

func hallOfFameEmbed(entries []services.HallOfFameEntry, color int) *discordgo.MessageEmbed {
	var b strings.Builder
	for i, e := range entries {
		names := make([]string, 0, len(e.Achievements))
		for _, d := range e.Achievements {
			names = append(names, d.Name)
		}
		fmt.Fprintf(&b, "**%d. %s** — %s XP\n🏅 %s\n", i+1, e.Account.ExternalUsername, number(e.Account.XP), strings.Join(names, ", "))
	}
	return &discordgo.MessageEmbed{
		Title:       "🏆 Hall of Fame",
		Description: truncate(b.String(), 4000),
		Color:       color,
	}
}

func rewardListEmbed(defs []models.AchievementDef, color int) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, d := range defs {
		fmt.Fprintf(&b, "**#%d %s** — %s", d.ID, d.Name, d.Description)
		if d.RoleID != "" {
			fmt.Fprintf(&b, " (<@&%s>)", d.RoleID)
		}
		b.WriteString("\n")
	}
	desc := b.String()
	if desc == "" {
		desc = "⚠️ No achievements configured."
	}
	return &discordgo.MessageEmbed{Title: "🎖 Available Rewards", Description: truncate(desc, 4000), Color: color}
}

func debugEmbed(s *services.Stats, grants services.RoleGrants, color int) *discordgo.MessageEmbed {
	group := "unavailable"
	if s.Group != nil {
		group = fmt.Sprintf("%s (%s members)", s.Group.Name, number(s.Group.MemberCount))
	}
	return &discordgo.MessageEmbed{
		Title: "🧠 System Debug Information",
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Users in DB", Value: number(s.Totals.Accounts), Inline: true},
			{Name: "Linked", Value: number(s.Totals.Linked), Inline: true},
			{Name: "Total XP", Value: number(s.Totals.XP), Inline: true},
			{Name: "Total Expeditions", Value: number(s.Totals.ActivityCount), Inline: true},
			{Name: "Levels", Value: fmt.Sprint(s.Levels), Inline: true},
			{Name: "Achievements Configured", Value: fmt.Sprint(s.Rewards), Inline: true},
			{Name: "XP Manager Roles", Value: fmt.Sprint(len(grants[services.CapManageXP])), Inline: true},
			{Name: "Reward Manager Roles", Value: fmt.Sprint(len(grants[services.CapManageRewards])), Inline: true},
			{Name: "Debug Manager Roles", Value: fmt.Sprint(len(grants[services.CapDebug])), Inline: true},
			{Name: "Group", Value: group, Inline: true},
			{Name: "Live Streams", Value: fmt.Sprint(s.Streams), Inline: true},
			{Name: "Bot Uptime", Value: s.Uptime.String(), Inline: true},
			{Name: "Go Version", Value: s.GoVersion, Inline: true},
			{Name: "Goroutines", Value: fmt.Sprint(s.Goroutines), Inline: true},
			{Name: "Heap", Value: fmt.Sprintf("%.1f MiB", float64(s.HeapBytes)/(1<<20)), Inline: true},
		},
	}
}

func verifyPanel(color int) Reply {
	return Reply{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🔗 Verify your Roblox account",
			Description: "Press the button below and enter your Roblox username to link it to your Discord account.",
			Color:       color,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: VerifyOpenID, Label: "✅ Verify", Style: discordgo.SuccessButton},
			}},
		},
	}
}

func verifyModal() Reply {
	return Reply{
		Kind:       ReplyModal,
		ModalID:    VerifyModalID,
		ModalTitle: "Roblox verification",
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    UsernameInput,
					Label:       "Roblox username",
					Style:       discordgo.TextInputShort,
					Placeholder: "e.g. Builderman",
					Required:    true,
					MinLength:   3,
					MaxLength:   20,
				},
			}},
		},
	}
}

// rewardMenu builds the achievement select for a target. Discord caps options at 25.
func rewardMenu(action services.SyncAction, acc *models.LinkedAccount, defs []models.AchievementDef) []discordgo.MessageComponent {
	opts := make([]discordgo.SelectMenuOption, 0, min(25, len(defs)))
	for _, d := range defs {
		if len(opts) == 25 {
			break
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       truncate(d.Name, 100),
			Value:       fmt.Sprint(d.ID),
			Description: truncate(d.Description, 100),
		})
	}
	placeholder := "Select an achievement to give"
	if action == services.SyncRevoke {
		placeholder = "Select an achievement to remove"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    RewardSelectID(action, acc.ExternalID),
				Placeholder: placeholder,
				Options:     opts,
			},
		}},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
