package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/campadventure/signup/internal/domain/registration"
)

// RenderProgress draws the step indicator on one line.
func RenderProgress(steps []registration.ProgressStep) string {
	parts := make([]string, len(steps))
	for i, s := range steps {
		label := fmt.Sprintf("%d %s", s.Number, s.Title)
		switch {
		case s.Current:
			parts[i] = currentStyle.Render("● " + label)
		case s.Completed:
			parts[i] = doneStyle.Render("✓ " + label)
		default:
			parts[i] = pendingStyle.Render("○ " + label)
		}
	}
	return strings.Join(parts, pendingStyle.Render("  ─  "))
}

// RenderSummary draws the review cards in a bordered panel.
func RenderSummary(sum registration.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Review Your Registration"))
	b.WriteString("\n")
	for i, sec := range sum.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(sec.Title))
		b.WriteString("\n")
		for _, l := range sec.Lines {
			b.WriteString(labelStyle.Render(l.Label+": ") + valueStyle.Render(l.Value) + "\n")
		}
		if len(sec.Items) == 0 && sec.Lines == nil {
			b.WriteString(labelStyle.Render("No activities selected") + "\n")
		}
		for _, it := range sec.Items {
			b.WriteString("  • " + valueStyle.Render(it) + "\n")
		}
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderFieldErrors lists what a step refused.
func RenderFieldErrors(ve *registration.ValidationError) string {
	lines := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		lines[i] = errorStyle.Render(fmt.Sprintf("✗ %s: %s", f.Field, f.Message))
	}
	return strings.Join(lines, "\n")
}

// RenderNotice draws a submit notice; destructive ones are red.
func RenderNotice(n registration.Notice) string {
	style := noticeStyle.BorderForeground(lipgloss.Color("42"))
	if n.Destructive {
		style = noticeStyle.BorderForeground(lipgloss.Color("196"))
	}
	return style.Render(valueStyle.Render(n.Title) + "\n" + n.Description)
}

// RenderCompletion is the terminal screen after a successful submit.
func RenderCompletion(v registration.View) string {
	return panelStyle.Render(titleStyle.Render(v.Title) + "\n" + v.Message)
}
