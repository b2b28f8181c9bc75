// Package render draws a reconciled thread as an indented comment tree for
// the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/restitch/internal/view"
	"github.com/restitch/pkg/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	metaStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	authorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	removedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	deletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")) // yellow
	editedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))  // blue
	summaryStyle = lipgloss.NewStyle().Bold(true)
)

// Thread renders the post header, the comment tree and a summary footer.
// Comments whose parents are not part of the view render at the root level.
func Thread(tv *view.ThreadView) string {
	var b strings.Builder
	writePost(&b, tv.Post)

	known := make(map[string]bool, len(tv.Comments))
	for _, c := range tv.Comments {
		known[c.ID] = true
	}
	children := make(map[string][]*models.Comment)
	var roots []*models.Comment
	for _, c := range tv.Comments {
		if c.TopLevel() || !known[c.ParentID] {
			roots = append(roots, c)
		} else {
			children[c.ParentID] = append(children[c.ParentID], c)
		}
	}
	sortByCreated(roots)
	for id := range children {
		sortByCreated(children[id])
	}

	for _, c := range roots {
		writeComment(&b, c, children, 0)
	}

	writeSummary(&b, tv.Stats.Comments, tv.Stats.Removed, tv.Stats.Deleted, tv.Stats.LoadedAll)
	return b.String()
}

func sortByCreated(comments []*models.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedUTC < comments[j].CreatedUTC
	})
}

func writePost(b *strings.Builder, post *models.Post) {
	if post == nil {
		return
	}
	title := titleStyle.Render(post.Title)
	if post.Placeholder {
		b.WriteString(title + "  " + deletedStyle.Render("[post unavailable]") + "\n\n")
		return
	}
	b.WriteString(title + "\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s  %d points  %d comments", post.Author, post.Score, post.NumComments)) + "\n\n")
}

func writeComment(b *strings.Builder, c *models.Comment, children map[string][]*models.Comment, depth int) {
	indent := strings.Repeat("  ", depth)

	header := authorStyle.Render(c.Author) + metaStyle.Render(fmt.Sprintf("  %d points", c.Score))
	switch {
	case c.Removed:
		header += "  " + removedStyle.Render("[removed]")
	case c.Deleted:
		header += "  " + deletedStyle.Render("[deleted]")
	}
	b.WriteString(indent + header + "\n")

	for _, line := range strings.Split(c.Body, "\n") {
		b.WriteString(indent + line + "\n")
	}
	if c.EditedBody != "" && c.EditedBody != c.Body {
		b.WriteString(indent + editedStyle.Render("edited:") + "\n")
		for _, line := range strings.Split(c.EditedBody, "\n") {
			b.WriteString(indent + line + "\n")
		}
	}
	b.WriteString("\n")

	for _, child := range children[c.ID] {
		writeComment(b, child, children, depth+1)
	}
}

func writeSummary(b *strings.Builder, comments, removed, deleted int, loadedAll bool) {
	coverage := "partial coverage"
	if loadedAll {
		coverage = "full coverage"
	}
	b.WriteString(summaryStyle.Render(fmt.Sprintf("%d comments, %d removed, %d deleted (%s)", comments, removed, deleted, coverage)) + "\n")
}
