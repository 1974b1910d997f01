// Package ui renders log entries as single-line status markers for the terminal.
package ui

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// FieldMarker overrides the marker chosen from the entry level
const FieldMarker = "marker"

// MarkerOK marks a completed step
const MarkerOK = "ok"

var (
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// OK returns an entry rendered with the ok marker
func OK(logger logrus.FieldLogger) *logrus.Entry {
	return logger.WithField(FieldMarker, MarkerOK)
}

// MarkerFormatter renders "ℹ️  message key=value" style lines
type MarkerFormatter struct {
	// NoColor disables lipgloss styling
	NoColor bool
}

// NewMarkerFormatter honours NO_COLOR
func NewMarkerFormatter() *MarkerFormatter {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &MarkerFormatter{NoColor: noColor}
}

func (f *MarkerFormatter) render(style lipgloss.Style, s string) string {
	if f.NoColor {
		return s
	}
	return style.Render(s)
}

// Format implements logrus.Formatter
func (f *MarkerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var marker string
	var style lipgloss.Style

	switch {
	case entry.Data[FieldMarker] == MarkerOK:
		marker, style = "✅", okStyle
	case entry.Level <= logrus.ErrorLevel:
		marker, style = "❌", failStyle
	case entry.Level == logrus.WarnLevel:
		marker, style = "⚠️ ", warnStyle
	case entry.Level >= logrus.DebugLevel:
		marker, style = "🔍", dimStyle
	default:
		marker, style = "ℹ️ ", infoStyle
	}

	var b bytes.Buffer
	b.WriteString(marker)
	b.WriteString(" ")
	b.WriteString(f.render(style, entry.Message))

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == FieldMarker {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, fmt.Sprintf("%s=%v", k, entry.Data[k]))
		}
		b.WriteString(" ")
		b.WriteString(f.render(dimStyle, strings.Join(fields, " ")))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// StateStyle colours a pod state for the status table
func (f *MarkerFormatter) StateStyle(state string) string {
	switch state {
	case "running":
		return f.render(okStyle, "🟢 "+state)
	case "degraded":
		return f.render(warnStyle, "🟡 "+state)
	default:
		return f.render(failStyle, "🔴 "+state)
	}
}
