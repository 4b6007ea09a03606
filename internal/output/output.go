// Package output provides styled terminal output helpers (success, error,
// warning, record and sync-status formatting) using lipgloss.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmreid/daybook/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	statusStyles = map[models.SyncStatus]lipgloss.Style{
		models.SyncIdle:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		models.SyncSyncing:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncSuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncError:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		models.SyncConflict: lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// FormatRecord renders a one-line summary of a record.
func FormatRecord(rec models.Record) string {
	var body string
	switch r := rec.(type) {
	case *models.Workout:
		body = fmt.Sprintf("%s  %dmin", r.Activity, r.DurationMin)
		if r.DistanceKM > 0 {
			body += fmt.Sprintf("  %.1fkm", r.DistanceKM)
		}
	case *models.Metric:
		body = fmt.Sprintf("%s  %.2f%s", r.Name, r.Value, r.Unit)
	case *models.Note:
		body = r.Title
	default:
		body = rec.RecordID()
	}
	line := fmt.Sprintf("%s  %s  %s",
		subtleStyle.Render(shortID(rec.RecordID())),
		titleStyle.Render(body),
		subtleStyle.Render(fmt.Sprintf("v%d %s", rec.Meta().Version, relativeTime(rec.Meta().UpdatedAt))))
	if rec.Meta().Deleted() {
		line += "  " + warningStyle.Render("[deleted]")
	}
	return line
}

// FormatSyncStatus renders one collection's sync state.
func FormatSyncStatus(md models.SyncMetadata) string {
	style, ok := statusStyles[md.Status]
	if !ok {
		style = subtleStyle
	}
	parts := []string{
		fmt.Sprintf("%-10s", md.Collection),
		style.Render(string(md.Status)),
	}
	if md.RecordCount > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("%d records", md.RecordCount)))
	}
	if md.ConflictCount > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("%d conflicts", md.ConflictCount)))
	}
	if md.LastSyncAt != nil {
		parts = append(parts, subtleStyle.Render("synced "+relativeTime(*md.LastSyncAt)))
	}
	if md.ErrorMessage != "" {
		parts = append(parts, errorStyle.Render(md.ErrorMessage))
	}
	return strings.Join(parts, "  ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
