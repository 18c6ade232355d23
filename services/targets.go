package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fanzyb/roblox-mooncrest/models"
	"github.com/fanzyb/roblox-mooncrest/repository"
)

// Target names an account either by Roblox username, by linked Discord user or by Roblox id.
// Exactly one field is expected to be set; Username wins over PlatformID over ExternalID.
type Target struct {
	Username   string
	PlatformID string
	ExternalID string
}

func (t Target) String() string {
	switch {
	case t.Username != "":
		return t.Username
	case t.PlatformID != "":
		return "<@" + t.PlatformID + ">"
	default:
		return t.ExternalID
	}
}

// TargetResolver turns a Target into a ledger record.
type TargetResolver struct {
	Accounts repository.AccountRepository
	Identity IdentityProvider
}

// Gate rejects a resolved Roblox user before anything is written for it.
type Gate func(ctx context.Context, userID int64, name string) error

// Resolve looks the target up. Usernames go through Roblox and create the record on
// first contact; Discord users and Roblox ids must already have a record.
func (r *TargetResolver) Resolve(ctx context.Context, t Target) (*models.LinkedAccount, error) {
	return r.ResolveGated(ctx, t, nil)
}

// ResolveGated is Resolve with gate run on the Roblox id first. A username that fails
// the gate never gets a record.
func (r *TargetResolver) ResolveGated(ctx context.Context, t Target, gate Gate) (*models.LinkedAccount, error) {
	switch {
	case strings.TrimSpace(t.Username) != "":
		user, err := r.lookup(ctx, t.Username)
		if err != nil {
			return nil, err
		}
		if gate != nil {
			if err := gate(ctx, user.ID, user.Name); err != nil {
				return nil, err
			}
		}
		acc, _, err := r.Accounts.Ensure(ctx, strconv.FormatInt(user.ID, 10), user.Name)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", user.Name, err)
		}
		return acc, nil

	case t.PlatformID != "":
		acc, found, err := r.Accounts.FindByPlatformID(ctx, t.PlatformID)
		if err != nil {
			return nil, fmt.Errorf("find linked account for %s: %w", t.PlatformID, err)
		}
		if !found {
			return nil, fmt.Errorf("discord user %s: %w", t.PlatformID, ErrNotLinked)
		}
		return acc, gateAccount(ctx, acc, gate)

	case t.ExternalID != "":
		acc, found, err := r.Accounts.FindByExternalID(ctx, t.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("find account %s: %w", t.ExternalID, err)
		}
		if !found {
			return nil, fmt.Errorf("account %s: %w", t.ExternalID, ErrNotFound)
		}
		return acc, gateAccount(ctx, acc, gate)
	}
	return nil, fmt.Errorf("empty target: %w", ErrNotFound)
}

func gateAccount(ctx context.Context, acc *models.LinkedAccount, gate Gate) error {
	if gate == nil {
		return nil
	}
	id, err := externalUserID(acc)
	if err != nil {
		return err
	}
	return gate(ctx, id, acc.ExternalUsername)
}

// lookup resolves a username, mapping absence to ErrNotFound.
func (r *TargetResolver) lookup(ctx context.Context, username string) (*RobloxUser, error) {
	username = strings.TrimSpace(username)
	user, err := r.Identity.ResolveUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("roblox user %q: %w", username, ErrNotFound)
	}
	return user, nil
}

// externalUserID parses the numeric Roblox id stored as text.
func externalUserID(acc *models.LinkedAccount) (int64, error) {
	id, err := strconv.ParseInt(acc.ExternalID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("account %s has a non-numeric roblox id: %w", acc.ExternalID, err)
	}
	return id, nil
}
