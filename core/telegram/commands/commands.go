package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Descriptions holds translated menu descriptions keyed by IETF language code.
	Descriptions map[string]string
	AdminOnly    bool
	Hidden       bool
	Aliases      []string
}

// DescriptionFor returns the translated description, falling back to Description.
func (c Command) DescriptionFor(lang string) string {
	if d, ok := c.Descriptions[lang]; ok && d != "" {
		return d
	}
	return c.Description
}
