// handlers/reply.go
package handlers

import (
	"github.com/bwmarrin/discordgo"
)

type ReplyKind int

const (
	ReplyMessage ReplyKind = iota // new message
	ReplyUpdate                   // edit the message the component lives on
	ReplyModal                    // open a modal
)

// Reply is what a handler wants sent back for one interaction.
type Reply struct {
	Kind       ReplyKind
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool

	ModalID    string
	ModalTitle string
}

func ephemeral(content string) Reply {
	return Reply{Content: content, Ephemeral: true}
}

// Response converts the reply into the Discord wire response.
func (r Reply) Response() *discordgo.InteractionResponse {
	switch r.Kind {
	case ReplyModal:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: &discordgo.InteractionResponseData{
				CustomID:   r.ModalID,
				Title:      r.ModalTitle,
				Components: r.Components,
			},
		}
	case ReplyUpdate:
		components := r.Components
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    r.Content,
				Embeds:     r.Embeds,
				Components: components,
			},
		}
	}

	data := &discordgo.InteractionResponseData{
		Content:    r.Content,
		Embeds:     r.Embeds,
		Components: r.Components,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
	if r.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}
