// discordbot/interactions.go
package discordbot

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/handlers"
)

// interactionTimeout stays under Discord's three second acknowledgement window.
const interactionTimeout = 2500 * time.Millisecond

// Router answers every interaction the gateway delivers.
type Router struct {
	API     API
	Handler handlers.Handler
}

// OnInteraction is registered with Session.AddHandler.
func (r *Router) OnInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	r.Serve(context.Background(), ic)
}

// Serve parses, dispatches and responds. Unknown interactions are logged and left unanswered;
// malformed known ones get a generic ephemeral error.
func (r *Router) Serve(ctx context.Context, ic *discordgo.InteractionCreate) {
	in, err := handlers.Parse(ic)
	if err != nil {
		if errors.Is(err, handlers.ErrUnknownInteraction) {
			log.Printf("[DISCORD] ⚠️ ignoring interaction: %v", err)
			return
		}
		log.Printf("[DISCORD] ❌ parse interaction: %v", err)
		reply := handlers.Reply{Content: "❌ An error occurred.", Ephemeral: true}
		if err := r.API.InteractionRespond(ic.Interaction, reply.Response()); err != nil {
			log.Printf("[DISCORD] ❌ respond to malformed interaction: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(ctx, interactionTimeout)
	defer cancel()
	reply := handlers.Dispatch(ctx, in, r.Handler)

	if err := r.API.InteractionRespond(ic.Interaction, reply.Response()); err != nil {
		log.Printf("[DISCORD] ❌ respond to %T (trace %s): %v", in, in.Meta().TraceID, err)
	}
}
