package discord

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// PermissionChecker decides whether a guild member may talk to the bot and
// place calls.
type PermissionChecker struct {
	callerRoleID string
}

// NewPermissionChecker creates a PermissionChecker for the given role ID.
func NewPermissionChecker(callerRoleID string) *PermissionChecker {
	return &PermissionChecker{callerRoleID: callerRoleID}
}

// IsCaller reports whether member holds the caller role. If no role is
// configured, everyone is a caller. A nil member (direct messages) is only
// allowed when no role is configured.
func (p *PermissionChecker) IsCaller(member *discordgo.Member) bool {
	if p.callerRoleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	return slices.Contains(member.Roles, p.callerRoleID)
}
