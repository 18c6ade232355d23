package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
)

// LinkState is where a Roblox account sits in the linking lifecycle.
type LinkState string

const (
	StateUnregistered LinkState = "unregistered"
	StateRegistered   LinkState = "registered"
	StateLinked       LinkState = "linked"
)

func stateOf(acc *models.LinkedAccount) LinkState {
	switch {
	case acc == nil:
		return StateUnregistered
	case acc.IsLinked():
		return StateLinked
	default:
		return StateRegistered
	}
}

// LinkOutcome is the result of a link workflow operation.
type LinkOutcome struct {
	User    *RobloxUser
	Account *models.LinkedAccount
	State   LinkState

	Created       bool                    // record registered by this call
	Changed       bool                    // link state changed
	AlreadyLinked bool                    // idempotent repeat of an existing link
	Displaced     []*models.LinkedAccount // records that lost their link to a force-link
}

// LinkService runs the self-service and admin linking flows.
type LinkService struct {
	Accounts     repository.AccountRepository
	Identity     IdentityProvider
	Roles        RoleManager
	Notifier     Notifier
	Spawn        Spawner
	GroupID      int64
	LinkedRoleID string
}

// SelfVerify links platformID to the Roblox account named username.
// Repeating a successful verify returns AlreadyLinked instead of an error.
func (s *LinkService) SelfVerify(ctx context.Context, username, platformID string) (*LinkOutcome, error) {
	user, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	externalID := strconv.FormatInt(user.ID, 10)

	if done, err := s.checkExisting(ctx, externalID, platformID); err != nil || done != nil {
		if done != nil {
			done.User = user
		}
		return done, err
	}

	if s.GroupID != 0 {
		in, err := s.Identity.IsInGroup(ctx, user.ID, s.GroupID)
		if err != nil {
			return nil, err
		}
		if !in {
			return nil, fmt.Errorf("%s is not in group %d: %w", user.Name, s.GroupID, ErrNotEligible)
		}
	}

	acc, created, err := s.Accounts.Ensure(ctx, externalID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", user.Name, err)
	}

	if err := s.Accounts.LinkPlatform(ctx, externalID, platformID); err != nil {
		if !errors.Is(err, ErrConflict) {
			return nil, fmt.Errorf("link %s to %s: %w", externalID, platformID, err)
		}
		// A concurrent verify won the unique index; report whoever holds it now.
		log.Printf("[LINK] ⚠️ lost link race for %s/%s: %v", externalID, platformID, err)
		done, rerr := s.checkExisting(ctx, externalID, platformID)
		if rerr != nil || done != nil {
			if done != nil {
				done.User = user
			}
			return done, rerr
		}
		return nil, err
	}
	acc.PlatformID = &platformID

	log.Printf("[LINK] ✅ %s (%s) verified as %s", user.Name, externalID, platformID)
	s.grantLinkedRole(ctx, platformID)
	s.emit("Account verified", platformID, acc)
	return &LinkOutcome{User: user, Account: acc, State: StateLinked, Created: created, Changed: true}, nil
}

// checkExisting returns an idempotent outcome when the link already exists, an
// *AlreadyLinkedError when either side is owned by someone else, or (nil, nil) to proceed.
func (s *LinkService) checkExisting(ctx context.Context, externalID, platformID string) (*LinkOutcome, error) {
	owned, found, err := s.Accounts.FindByPlatformID(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("find link for %s: %w", platformID, err)
	}
	if found {
		if owned.ExternalID == externalID {
			return &LinkOutcome{Account: owned, State: StateLinked, AlreadyLinked: true}, nil
		}
		return nil, &AlreadyLinkedError{
			PlatformID:      platformID,
			OwnerExternalID: owned.ExternalID,
			OwnerUsername:   owned.ExternalUsername,
			RequestedFor:    externalID,
		}
	}

	acc, found, err := s.Accounts.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", externalID, err)
	}
	if found && acc.IsLinked() && acc.LinkedTo() != platformID {
		return nil, &AlreadyLinkedError{
			PlatformID:       acc.LinkedTo(),
			OwnerExternalID:  acc.ExternalID,
			OwnerUsername:    acc.ExternalUsername,
			RequestedFor:     externalID,
			PlatformIsTarget: true,
		}
	}
	return nil, nil
}

// AdminInitiate registers the Roblox account without linking it.
func (s *LinkService) AdminInitiate(ctx context.Context, username string) (*LinkOutcome, error) {
	user, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	acc, created, err := s.Accounts.Ensure(ctx, strconv.FormatInt(user.ID, 10), user.Name)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", user.Name, err)
	}
	if created {
		log.Printf("[LINK] 📝 registered %s (%s)", user.Name, acc.ExternalID)
	}
	return &LinkOutcome{User: user, Account: acc, State: stateOf(acc), Created: created, Changed: created}, nil
}

// AdminForceLink links platformID to username, taking it away from any other record first.
// Group membership is not checked.
func (s *LinkService) AdminForceLink(ctx context.Context, username, platformID, actor string) (*LinkOutcome, error) {
	user, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	externalID := strconv.FormatInt(user.ID, 10)
	acc, created, err := s.Accounts.Ensure(ctx, externalID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", user.Name, err)
	}
	if acc.LinkedTo() == platformID {
		return &LinkOutcome{User: user, Account: acc, State: StateLinked, AlreadyLinked: true}, nil
	}

	out := &LinkOutcome{User: user, State: StateLinked, Created: created, Changed: true}
	if acc.IsLinked() {
		// The Roblox account itself was linked to another Discord user.
		displaced := acc.Clone()
		out.Displaced = append(out.Displaced, &displaced)
	}

	previous, err := s.Accounts.ReassignPlatform(ctx, externalID, platformID)
	if err != nil {
		return nil, fmt.Errorf("force link %s to %s: %w", externalID, platformID, err)
	}
	if previous != nil {
		out.Displaced = append([]*models.LinkedAccount{previous}, out.Displaced...)
	}
	for _, d := range out.Displaced {
		log.Printf("[LINK] 🔁 %s (%s) unlinked from %s by force link", d.ExternalUsername, d.ExternalID, d.LinkedTo())
		s.revokeLinkedRole(ctx, d.LinkedTo())
	}

	acc.PlatformID = &platformID
	out.Account = acc
	log.Printf("[LINK] ✅ %s (%s) force-linked to %s by %s", user.Name, externalID, platformID, actor)
	s.grantLinkedRole(ctx, platformID)
	s.emit("Account force-linked by "+actor, platformID, acc)
	return out, nil
}

// AdminRemove clears the link and leaves the ledger untouched.
func (s *LinkService) AdminRemove(ctx context.Context, username, actor string) (*LinkOutcome, error) {
	user, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	externalID := strconv.FormatInt(user.ID, 10)
	acc, found, err := s.Accounts.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", externalID, err)
	}
	if !found {
		return &LinkOutcome{User: user, State: StateUnregistered}, nil
	}
	if !acc.IsLinked() {
		return &LinkOutcome{User: user, Account: acc, State: StateRegistered}, nil
	}

	former := acc.LinkedTo()
	removed, err := s.Accounts.UnlinkPlatform(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("unlink %s: %w", externalID, err)
	}
	acc.PlatformID = nil
	if !removed {
		return &LinkOutcome{User: user, Account: acc, State: StateRegistered}, nil
	}

	log.Printf("[LINK] ❌ %s (%s) unlinked from %s by %s", user.Name, externalID, former, actor)
	s.revokeLinkedRole(ctx, former)
	s.emit("Account unlinked by "+actor, former, acc)
	return &LinkOutcome{User: user, Account: acc, State: StateRegistered, Changed: true}, nil
}

// Status is a read-only projection; it only refreshes a stale stored username.
func (s *LinkService) Status(ctx context.Context, username string) (*LinkOutcome, error) {
	user, err := s.resolve(ctx, username)
	if err != nil {
		return nil, err
	}
	externalID := strconv.FormatInt(user.ID, 10)
	acc, found, err := s.Accounts.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", externalID, err)
	}
	if found && acc.ExternalUsername != user.Name {
		stale := acc.ExternalUsername
		if refreshed, _, err := s.Accounts.Ensure(ctx, externalID, user.Name); err == nil {
			acc = refreshed
		}
		if f, ok := s.Identity.(UsernameForgetter); ok {
			_ = runEffect("forget cached username "+stale, func() error { return f.Forget(ctx, stale) })
		}
	}
	return &LinkOutcome{User: user, Account: acc, State: stateOf(acc)}, nil
}

func (s *LinkService) resolve(ctx context.Context, username string) (*RobloxUser, error) {
	return (&TargetResolver{Accounts: s.Accounts, Identity: s.Identity}).lookup(ctx, username)
}

func (s *LinkService) grantLinkedRole(ctx context.Context, platformID string) {
	if s.Roles == nil || s.LinkedRoleID == "" || platformID == "" {
		return
	}
	_ = runEffect("grant linked role to "+platformID, func() error {
		return s.Roles.AddRole(ctx, platformID, s.LinkedRoleID)
	})
}

func (s *LinkService) revokeLinkedRole(ctx context.Context, platformID string) {
	if s.Roles == nil || s.LinkedRoleID == "" || platformID == "" {
		return
	}
	_ = runEffect("revoke linked role from "+platformID, func() error {
		return s.Roles.RemoveRole(ctx, platformID, s.LinkedRoleID)
	})
}

func (s *LinkService) emit(title, platformID string, acc *models.LinkedAccount) {
	spawn := s.Spawn
	if spawn == nil {
		spawn = GoSpawner
	}
	notify(spawn, s.Notifier, Event{
		Kind:  EventLink,
		Title: title,
		Fields: []EventField{
			{Name: "Discord", Value: "<@" + platformID + ">"},
			{Name: "Roblox", Value: fmt.Sprintf("%s (%s)", acc.ExternalUsername, acc.ExternalID)},
		},
	})
}
