package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/storefront/pkg/categorize"
	"github.com/rubiojr/storefront/pkg/navigate"
	"github.com/rubiojr/storefront/pkg/storage"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)
)

var titleCaser = cases.Title(language.English)

// formatResults renders a categorized result the way the dropdown shows it.
func formatResults(query string, r categorize.Result) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render(fmt.Sprintf("Results for %q", query)))
	out.WriteString("\n")

	if r.Empty() {
		out.WriteString(noDataStyle.Render("No results."))
		out.WriteString("\n")
		return out.String()
	}

	for _, section := range r.Sections() {
		out.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", titleCaser.String(section.Category), len(section.Items))))
		out.WriteString("\n")
		for _, it := range section.Items {
			line := fmt.Sprintf("%2d. %s", it.Index, it.Label)
			switch {
			case it.Collection != nil:
				line += " " + metaStyle.Render(it.Collection.ContractAddress)
			case it.Attribute != nil:
				line += " " + metaStyle.Render(it.Attribute.ContractAddress)
			}
			out.WriteString(itemStyle.Render(line))
			out.WriteString("\n")
		}
	}

	out.WriteString("\n" + metaStyle.Render("Powered by smart NFT search") + "\n")
	return out.String()
}

// formatTarget renders a resolved selection.
func formatTarget(text string, target navigate.Target) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render(fmt.Sprintf("Resolved %q", text)))
	out.WriteString("\n")
	out.WriteString(fmt.Sprintf("Kind: %s\n", titleCaser.String(target.Kind)))
	if target.ContractAddress != "" {
		out.WriteString(fmt.Sprintf("Contract: %s\n", target.ContractAddress))
	}
	if target.TokenID != "" {
		out.WriteString(fmt.Sprintf("Token: %s\n", target.TokenID))
	}
	for _, f := range target.Filters {
		out.WriteString(fmt.Sprintf("Filter: %s = %s\n", f.Key, f.Value))
	}
	if u := target.URL(); u != "" {
		out.WriteString(urlStyle.Render(u) + "\n")
	}
	return out.String()
}

func formatNotice(msg string) string {
	return noticeStyle.Render(msg) + "\n"
}

// formatHistory renders recent selections, newest first.
func formatHistory(entries []storage.Entry) string {
	var out strings.Builder
	out.WriteString(titleStyle.Render("Recent selections"))
	out.WriteString("\n")

	if len(entries) == 0 {
		out.WriteString(noDataStyle.Render("No selections recorded yet."))
		out.WriteString("\n")
		return out.String()
	}

	for _, e := range entries {
		out.WriteString(fmt.Sprintf("%-12s %s %s\n",
			titleCaser.String(e.Kind),
			e.Label,
			metaStyle.Render(formatTime(e.CreatedAt)),
		))
		if e.URL != "" {
			out.WriteString(itemStyle.Render(urlStyle.Render(e.URL)) + "\n")
		}
	}
	return out.String()
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}
