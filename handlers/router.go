// handlers/router.go
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/services"
)

// Bot implements Handler on top of the services.
type Bot struct {
	Links    *services.LinkService
	Ledger   *services.LedgerService
	Board    *services.LeaderboardService
	Stats    *services.StatsService
	Resolver *services.TargetResolver
	Catalog  *services.AchievementCatalog
	Grants   services.RoleGrants

	PageSize   int
	ButtonTTL  time.Duration
	EmbedColor int
	Now        func() time.Time
}

var _ Handler = (*Bot)(nil)

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// Dispatch runs one interaction. Failures and panics become an ephemeral reply;
// nothing escapes to the session loop.
func Dispatch(ctx context.Context, in Interaction, h Handler) (reply Reply) {
	meta := in.Meta()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[BOT] 💥 panic in %T (trace %s): %v\n%s", in, meta.TraceID, r, debug.Stack())
			reply = ephemeral(fmt.Sprintf("❌ An error occurred. (ref `%s`)", short(meta.TraceID)))
		}
	}()
	return in.Accept(ctx, h)
}

// errorReply maps the error taxonomy to user-facing text.
func errorReply(meta Base, err error) Reply {
	var already *services.AlreadyLinkedError
	switch {
	case errors.As(err, &already):
		if already.PlatformIsTarget {
			return ephemeral(fmt.Sprintf("❌ This Roblox account is already linked to <@%s>.", already.PlatformID))
		}
		return ephemeral(fmt.Sprintf("❌ <@%s> is already linked to Roblox account **%s** (%s).", already.PlatformID, already.OwnerUsername, already.OwnerExternalID))
	case errors.Is(err, services.ErrNotLinked):
		return ephemeral("⚠️ That Discord user has not linked a Roblox account.")
	case errors.Is(err, services.ErrNotFound):
		return ephemeral("⚠️ Roblox user not found.")
	case errors.Is(err, services.ErrNotEligible):
		return ephemeral("❌ User is not in the community group.")
	case errors.Is(err, services.ErrPermission):
		return ephemeral("❌ You do not have permission to use this command.")
	case errors.Is(err, services.ErrUpstreamUnavailable):
		return ephemeral("⚠️ Roblox is not responding right now. Please try again in a moment.")
	case errors.Is(err, services.ErrConflict):
		return ephemeral("⚠️ That link changed while your request was processed. Please try again.")
	case errors.Is(err, services.ErrInvalidAmount):
		return ephemeral("❌ Amount must be zero or a positive whole number.")
	case errors.Is(err, services.ErrUnknownAchievement):
		return ephemeral("⚠️ Achievement not found.")
	}
	log.Printf("[BOT] ❌ %s failed (trace %s): %v", meta.Caller.PlatformID, meta.TraceID, err)
	return ephemeral(fmt.Sprintf("❌ An error occurred. (ref `%s`)", short(meta.TraceID)))
}

func short(trace string) string {
	if len(trace) > 8 {
		return trace[:8]
	}
	return trace
}

func (b *Bot) authorize(meta Base, capability services.Capability) error {
	if err := services.Authorize(meta.Caller, capability, b.Grants); err != nil {
		log.Printf("🚫 [BOT] %s denied %s", meta.Caller.Tag, capability)
		return err
	}
	return nil
}

func (b *Bot) actor(meta Base) string {
	if meta.Caller.Tag != "" {
		return meta.Caller.Tag
	}
	return meta.Caller.PlatformID
}

// Ledger commands

func (b *Bot) HandleXP(ctx context.Context, c XPCommand) Reply {
	return b.adjust(ctx, c.LedgerCommand, services.FieldXP)
}

func (b *Bot) HandleActivity(ctx context.Context, c ActivityCommand) Reply {
	return b.adjust(ctx, c.LedgerCommand, services.FieldActivity)
}

func (b *Bot) adjust(ctx context.Context, c LedgerCommand, field services.Field) Reply {
	if err := b.authorize(c.Base, services.CapManageXP); err != nil {
		return errorReply(c.Base, err)
	}
	res, err := b.Ledger.Adjust(ctx, services.AdjustRequest{
		Target: c.Target,
		Field:  field,
		Op:     c.Op,
		Amount: c.Amount,
		Actor:  b.actor(c.Base),
	})
	if err != nil {
		return errorReply(c.Base, err)
	}

	name := res.Account.ExternalUsername
	if field == services.FieldActivity {
		return Reply{Content: fmt.Sprintf("✅ %s %s Expedition count for **%s**. Total: **%s**", c.Op, number(c.Amount), name, number(res.After))}
	}
	msg := fmt.Sprintf("✅ %s %s XP for **%s**. Total: **%s XP**", c.Op, number(c.Amount), name, number(res.After))
	switch {
	case res.LeveledUp:
		msg += fmt.Sprintf("\n🎉 **%s** leveled up to **%s**!", name, res.ToTier)
	case res.LevelChanged:
		msg += fmt.Sprintf("\n⬇️ **%s** dropped to **%s**.", name, res.ToTier)
	}
	return Reply{Content: msg}
}

// Linking

func (b *Bot) HandleLink(ctx context.Context, c LinkCommand) Reply {
	if err := b.authorize(c.Base, services.CapManageLinks); err != nil {
		return errorReply(c.Base, err)
	}
	var (
		out *services.LinkOutcome
		err error
	)
	switch c.Action {
	case LinkInitiate:
		out, err = b.Links.AdminInitiate(ctx, c.Username)
	case LinkMember:
		if c.MemberID == "" {
			return ephemeral("⚠️ Pick the Discord member to link.")
		}
		out, err = b.Links.AdminForceLink(ctx, c.Username, c.MemberID, b.actor(c.Base))
	case LinkRemove:
		out, err = b.Links.AdminRemove(ctx, c.Username, b.actor(c.Base))
	case LinkStatus:
		out, err = b.Links.Status(ctx, c.Username)
	default:
		return ephemeral("⚠️ Unknown action.")
	}
	if err != nil {
		return errorReply(c.Base, err)
	}
	return Reply{Content: linkMessage(c.Action, out), Ephemeral: true}
}

func linkMessage(action LinkAction, out *services.LinkOutcome) string {
	name := out.User.Name
	switch action {
	case LinkInitiate:
		if out.Created {
			return fmt.Sprintf("📝 Registered **%s** (%d).", name, out.User.ID)
		}
		return fmt.Sprintf("ℹ️ **%s** (%d) is already registered.", name, out.User.ID)
	case LinkMember:
		if out.AlreadyLinked {
			return fmt.Sprintf("ℹ️ **%s** is already linked to <@%s>.", name, out.Account.LinkedTo())
		}
		msg := fmt.Sprintf("✅ Linked **%s** to <@%s>.", name, out.Account.LinkedTo())
		for _, d := range out.Displaced {
			if d.ExternalID == out.Account.ExternalID {
				msg += fmt.Sprintf("\n🔁 Previous link to <@%s> was replaced.", d.LinkedTo())
			} else {
				msg += fmt.Sprintf("\n🔁 <@%s> was unlinked from **%s**.", d.LinkedTo(), d.ExternalUsername)
			}
		}
		return msg
	case LinkRemove:
		if !out.Changed {
			return fmt.Sprintf("ℹ️ **%s** is not linked.", name)
		}
		return fmt.Sprintf("❌ Unlinked **%s**. XP and achievements were kept.", name)
	}
	switch out.State {
	case services.StateLinked:
		return fmt.Sprintf("🔗 **%s** (%d) is linked to <@%s>.", name, out.User.ID, out.Account.LinkedTo())
	case services.StateRegistered:
		return fmt.Sprintf("📝 **%s** (%d) is registered but not linked.", name, out.User.ID)
	}
	return fmt.Sprintf("❔ **%s** (%d) is not registered.", name, out.User.ID)
}

func (b *Bot) HandleVerifyAccount(ctx context.Context, c VerifyAccountCommand) Reply {
	return b.selfVerify(ctx, c.Base, c.Username)
}

func (b *Bot) HandleVerifyModal(ctx context.Context, c VerifyModalSubmit) Reply {
	return b.selfVerify(ctx, c.Base, c.Username)
}

func (b *Bot) selfVerify(ctx context.Context, meta Base, username string) Reply {
	if username == "" {
		return ephemeral("⚠️ Please enter your Roblox username.")
	}
	if meta.Caller.PlatformID == "" {
		return ephemeral("⚠️ Verification only works inside the server.")
	}
	out, err := b.Links.SelfVerify(ctx, username, meta.Caller.PlatformID)
	if err != nil {
		return errorReply(meta, err)
	}
	if out.AlreadyLinked {
		return ephemeral(fmt.Sprintf("✅ You are already linked to **%s**.", out.User.Name))
	}
	return ephemeral(fmt.Sprintf("✅ Verified! Your Discord account is now linked to **%s**.", out.User.Name))
}

func (b *Bot) HandleVerifySetup(ctx context.Context, c VerifySetupCommand) Reply {
	if err := b.authorize(c.Base, services.CapManageLinks); err != nil {
		return errorReply(c.Base, err)
	}
	return verifyPanel(b.EmbedColor)
}

func (b *Bot) HandleVerifyOpen(ctx context.Context, c VerifyOpenButton) Reply {
	return verifyModal()
}

// Views

func (b *Bot) HandleRank(ctx context.Context, c RankCommand) Reply {
	card, err := b.Board.RankCard(ctx, c.Target)
	if err != nil {
		return errorReply(c.Base, err)
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{rankEmbed(card, b.EmbedColor)}}
}

func (b *Bot) HandleLeaderboard(ctx context.Context, c LeaderboardCommand) Reply {
	reply, err := b.leaderboardReply(ctx, c.Metric, c.Page, false)
	if err != nil {
		return errorReply(c.Base, err)
	}
	return reply
}

// HandleLeaderboardButton serves a click from the token alone. An expired token
// re-renders the page it was on with every control disabled.
func (b *Bot) HandleLeaderboardButton(ctx context.Context, c LeaderboardButton) Reply {
	metric, page := c.Token.Target()
	expired := c.Token.Expired(b.now(), b.ButtonTTL)
	if expired {
		metric, page = c.Token.Current()
	}
	reply, err := b.leaderboardReply(ctx, metric, page, expired)
	if err != nil {
		return errorReply(c.Base, err)
	}
	reply.Kind = ReplyUpdate
	return reply
}

func (b *Bot) leaderboardReply(ctx context.Context, metric services.Metric, page int, disabled bool) (Reply, error) {
	p, err := b.Board.Page(ctx, metric, page, b.PageSize)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Embeds:     []*discordgo.MessageEmbed{leaderboardEmbed(p, b.EmbedColor)},
		Components: leaderboardControls(p, b.now(), disabled),
	}, nil
}

func (b *Bot) HandleHallOfFame(ctx context.Context, c HallOfFameCommand) Reply {
	entries, err := b.Board.HallOfFame(ctx)
	if err != nil {
		return errorReply(c.Base, err)
	}
	if len(entries) == 0 {
		return ephemeral("⚠️ No climbers with achievements yet.")
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{hallOfFameEmbed(entries, b.EmbedColor)}}
}

func (b *Bot) HandleListReward(ctx context.Context, c ListRewardCommand) Reply {
	return Reply{Embeds: []*discordgo.MessageEmbed{rewardListEmbed(b.Catalog.All(), b.EmbedColor)}, Ephemeral: true}
}

func (b *Bot) HandleDebug(ctx context.Context, c DebugCommand) Reply {
	if err := b.authorize(c.Base, services.CapDebug); err != nil {
		return errorReply(c.Base, err)
	}
	stats, err := b.Stats.Snapshot(ctx)
	if err != nil {
		return errorReply(c.Base, err)
	}
	return Reply{Embeds: []*discordgo.MessageEmbed{debugEmbed(stats, b.Grants, b.EmbedColor)}, Ephemeral: true}
}

// Rewards

func (b *Bot) HandleReward(ctx context.Context, c RewardCommand) Reply {
	if err := b.authorize(c.Base, services.CapManageRewards); err != nil {
		return errorReply(c.Base, err)
	}
	acc, err := b.Resolver.Resolve(ctx, c.Target)
	if err != nil {
		return errorReply(c.Base, err)
	}

	var choices []models.AchievementDef
	if c.Action == services.SyncGrant {
		for _, d := range b.Catalog.All() {
			if !acc.HasAchievement(d.ID) {
				choices = append(choices, d)
			}
		}
		if len(choices) == 0 {
			return ephemeral(fmt.Sprintf("⚠️ **%s** already has every achievement.", acc.ExternalUsername))
		}
		return Reply{
			Content:    fmt.Sprintf("🎖 Select achievement to give to **%s**", acc.ExternalUsername),
			Components: rewardMenu(c.Action, acc, choices),
			Ephemeral:  true,
		}
	}

	if len(acc.Achievements) == 0 {
		return ephemeral("⚠️ User has no achievements.")
	}
	choices = b.Catalog.Resolve(acc.Achievements)
	if len(choices) == 0 {
		return ephemeral("⚠️ No known achievements to remove for this user.")
	}
	return Reply{
		Content:    fmt.Sprintf("🗑 Select achievement to remove from **%s**", acc.ExternalUsername),
		Components: rewardMenu(c.Action, acc, choices),
		Ephemeral:  true,
	}
}

func (b *Bot) HandleRewardSelect(ctx context.Context, c RewardSelect) Reply {
	if err := b.authorize(c.Base, services.CapManageRewards); err != nil {
		return errorReply(c.Base, err)
	}
	target := services.Target{ExternalID: c.ExternalID}
	var (
		change *services.AchievementChange
		err    error
	)
	if c.Action == services.SyncGrant {
		change, err = b.Ledger.GrantAchievement(ctx, target, c.AchievementID, b.actor(c.Base))
	} else {
		change, err = b.Ledger.RevokeAchievement(ctx, target, c.AchievementID, b.actor(c.Base))
	}
	if err != nil {
		r := errorReply(c.Base, err)
		r.Kind = ReplyUpdate
		return r
	}

	name, user := change.Achievement.Name, change.Account.ExternalUsername
	var msg string
	switch {
	case c.Action == services.SyncGrant && change.Changed:
		msg = fmt.Sprintf("✅ Added **%s** to **%s**", name, user)
	case c.Action == services.SyncGrant:
		msg = fmt.Sprintf("ℹ️ **%s** already has **%s**", user, name)
	case change.Changed:
		msg = fmt.Sprintf("🗑 Removed **%s** from **%s**", name, user)
	default:
		msg = fmt.Sprintf("ℹ️ **%s** does not have **%s**", user, name)
	}
	return Reply{Kind: ReplyUpdate, Content: msg}
}
