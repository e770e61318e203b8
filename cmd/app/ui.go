package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/itemdesk/internal/itemstore"
	"github.com/starford/itemdesk/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	panelStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	priorityStyles = map[models.Priority]lipgloss.Style{
		models.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		models.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
)

func ok(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render("✔ "+msg))
}

func fail(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("✖ "+msg))
}

func panel(w io.Writer, lines []string) {
	fmt.Fprintln(w, panelStyle.Render(strings.Join(lines, "\n")))
}

func priorityLabel(p models.Priority) string {
	if st, found := priorityStyles[p]; found {
		return st.Render(fmt.Sprintf("%-6s", p))
	}
	return string(p)
}

func itemLine(it models.Item) string {
	return fmt.Sprintf("%d  %s  %s  %s",
		it.ID,
		priorityLabel(it.Priority),
		titleStyle.Render(it.Name),
		mutedStyle.Render(it.UpdatedAt.Local().Format("2006-01-02 15:04")),
	)
}

func renderItem(w io.Writer, it models.Item) {
	panel(w, []string{
		titleStyle.Render(it.Name),
		it.Description,
		"",
		"id        " + fmt.Sprint(it.ID),
		"priority  " + priorityLabel(it.Priority),
		"created   " + it.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		"updated   " + it.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
	})
}

func renderPage(w io.Writer, page itemstore.Page) {
	if page.Total == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no items"))
		return
	}
	lines := make([]string, 0, len(page.Items)+2)
	for _, it := range page.Items {
		lines = append(lines, itemLine(it))
	}
	if len(page.Items) == 0 {
		lines = append(lines, mutedStyle.Render("(past the last page)"))
	}
	lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("page %d/%d · %d items", page.Page, page.TotalPages, page.Total)))
	panel(w, lines)
}

// renderError prints validation problems one per line.
func renderError(w io.Writer, err error) {
	if ve, isValidation := asValidation(err); isValidation {
		for _, m := range ve.Messages() {
			fail(w, m)
		}
		return
	}
	fail(w, err.Error())
}
