// discordbot/notifier.go
package discordbot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/services"
)

// ChannelNotifier posts events as embeds to the log channel configured for their kind.
// Kinds without a channel are dropped.
type ChannelNotifier struct {
	API      API
	Channels map[services.EventKind]string
	Color    int
}

var _ services.Notifier = (*ChannelNotifier)(nil)

func (n *ChannelNotifier) Notify(ctx context.Context, ev services.Event) error {
	channelID := n.Channels[ev.Kind]
	if channelID == "" {
		return nil
	}
	if _, err := n.API.ChannelMessageSendEmbed(channelID, EventEmbed(ev, n.Color), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("post %s event to %s: %w", ev.Kind, channelID, err)
	}
	return nil
}

var eventIcons = map[services.EventKind]string{
	services.EventLink:        "🔗",
	services.EventLedger:      "📈",
	services.EventAchievement: "🏆",
}

func EventEmbed(ev services.Event, color int) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:     eventIcons[ev.Kind] + " " + ev.Title,
		Color:     color,
		Timestamp: ev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for _, f := range ev.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	if ev.Actor != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "by " + ev.Actor}
	}
	return e
}
