// Package ui renders run summaries, tag counts and rule listings for the
// terminal. Colors follow the Ayu palette and adapt to light and dark
// backgrounds.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tone is the meaning of a piece of output, mapped to one color.
type tone int

const (
	tonePass tone = iota
	toneWarn
	toneFail
	toneMuted
	toneAccent
)

// Ayu bright colors (https://terminalcolors.com/themes/ayu/), light then dark.
var palette = map[tone]lipgloss.AdaptiveColor{
	tonePass:   {Light: "#86b300", Dark: "#c2d94c"},
	toneWarn:   {Light: "#f2ae49", Dark: "#ffb454"},
	toneFail:   {Light: "#f07171", Dark: "#f07178"},
	toneMuted:  {Light: "#828c99", Dark: "#6c7680"},
	toneAccent: {Light: "#399ee6", Dark: "#59c2ff"},
}

func style(t tone) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(palette[t])
}

// outcome icons; the plain forms are used when emoji are off.
var icons = map[tone][2]string{
	tonePass: {"✓", "ok"},
	toneWarn: {"⚠", "!"},
	toneFail: {"✗", "x"},
}

const separatorWidth = 42

// RenderPass renders text in the success color.
func RenderPass(s string) string { return style(tonePass).Render(s) }

// RenderWarn renders text in the warning color.
func RenderWarn(s string) string { return style(toneWarn).Render(s) }

// RenderFail renders text in the failure color.
func RenderFail(s string) string { return style(toneFail).Render(s) }

// RenderMuted renders secondary text such as labels.
func RenderMuted(s string) string { return style(toneMuted).Render(s) }

// RenderAccent highlights names: tags, backends.
func RenderAccent(s string) string { return style(toneAccent).Render(s) }

// RenderCategory renders an upper-cased bold section header.
func RenderCategory(s string) string {
	return style(toneAccent).Bold(true).Render(strings.ToUpper(s))
}

// RenderSeparator renders a muted horizontal rule.
func RenderSeparator() string {
	return RenderMuted(strings.Repeat("─", separatorWidth))
}

func RenderPassIcon() string { return renderIcon(tonePass) }
func RenderWarnIcon() string { return renderIcon(toneWarn) }
func RenderFailIcon() string { return renderIcon(toneFail) }

func renderIcon(t tone) string {
	pair := icons[t]
	glyph := pair[1]
	if ShouldUseEmoji() {
		glyph = pair[0]
	}
	return style(t).Render(glyph)
}
