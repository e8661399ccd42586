// Package commands describes slash commands registered with the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a bot command with its handler and menu metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are hidden from the menu and gated by the admin id.
	AdminOnly bool
	Hidden    bool
	// Aliases may be given with or without the leading slash.
	Aliases []string
}
