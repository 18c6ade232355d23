package services

import (
	"errors"
	"fmt"

	"github.com/fanzyb/roblox-mooncrest/repository"
)

var (
	// ErrNotFound: the Roblox username did not resolve, or a Discord user has no linked account.
	ErrNotFound = errors.New("not found")
	// ErrNotLinked: a Discord user was named but owns no linked account. It matches ErrNotFound.
	ErrNotLinked = fmt.Errorf("no linked roblox account: %w", ErrNotFound)
	// ErrNotEligible: a gating condition (group membership) is not met.
	ErrNotEligible = errors.New("not eligible")
	// ErrAlreadyLinked: a non-override path tried to give one identity two owners.
	ErrAlreadyLinked = errors.New("already linked")
	// ErrConflict: the store rejected a write on the platform id unique index.
	ErrConflict = repository.ErrConflict
	// ErrPermission: the caller lacks the administrator capability or a configured role.
	ErrPermission = errors.New("permission denied")
	// ErrUpstreamUnavailable: Roblox was unreachable or returned something unparseable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	ErrInvalidAmount      = errors.New("amount must be a non-negative integer")
	ErrUnknownAchievement = errors.New("unknown achievement")
)

// AlreadyLinkedError names the account that already holds the link.
type AlreadyLinkedError struct {
	PlatformID       string // Discord user that owns the link
	OwnerExternalID  string
	OwnerUsername    string
	RequestedFor     string // Roblox id the caller asked for
	PlatformIsTarget bool   // true when the Roblox account is the contested side
}

func (e *AlreadyLinkedError) Error() string {
	if e.PlatformIsTarget {
		return fmt.Sprintf("roblox account %s is already linked to discord user %s", e.RequestedFor, e.PlatformID)
	}
	return fmt.Sprintf("discord user %s is already linked to roblox account %s (%s)", e.PlatformID, e.OwnerUsername, e.OwnerExternalID)
}

func (e *AlreadyLinkedError) Unwrap() error { return ErrAlreadyLinked }
