package ui

import (
	"fmt"
	"strings"
	"time"

	"parallelmind/internal/domain"
)

// FormatElapsed renders whole seconds as mm:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// FormatOffset renders a segment offset in seconds as mm:ss.
func FormatOffset(seconds float64) string {
	return FormatElapsed(int(seconds))
}

// CaptureLine summarizes the capture session on one line.
func CaptureLine(status domain.CaptureStatus) string {
	switch status.State {
	case domain.CaptureStateRecording:
		return RecordingDotStyle.Render("● REC") + " " + FormatElapsed(status.ElapsedSeconds)
	case domain.CaptureStateStopped:
		return PendingStyle.Render("■ STOPPED") + " " + FormatElapsed(status.ElapsedSeconds) +
			DimStyle.Render(fmt.Sprintf("  %s ready to upload", formatBytes(status.AudioBytes)))
	case domain.CaptureStateUploading:
		return BusyStyle.Render("↑ UPLOADING") + " " + ProgressBar(status.UploadPercent, 20)
	default:
		return IdleDotStyle.Render("○ IDLE")
	}
}

// ProgressBar draws a fixed-width bar with the percentage appended.
func ProgressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if width <= 0 {
		width = 20
	}
	filled := percent * width / 100
	return ReadyStyle.Render(strings.Repeat("█", filled)) +
		DimStyle.Render(strings.Repeat("░", width-filled)) +
		fmt.Sprintf(" %3d%%", percent)
}

// StatusBadge colors a conversation status.
func StatusBadge(status domain.ConversationStatus) string {
	label := strings.ToUpper(string(status))
	switch status {
	case domain.StatusProcessed:
		return ReadyStyle.Render(label)
	case domain.StatusError:
		return ErrorStyle.Render(label)
	default:
		return PendingStyle.Render(label)
	}
}

// ConversationHeader renders the id, file name, status and creation time.
func ConversationHeader(conv domain.Conversation) string {
	header := TitleStyle.Render("Conversation "+string(conv.ID)) + "  " + StatusBadge(conv.Status)
	var meta []string
	if conv.Filename != "" {
		meta = append(meta, conv.Filename)
	}
	if !conv.CreatedAt.IsZero() {
		meta = append(meta, conv.CreatedAt.Format(time.DateTime))
	}
	meta = append(meta, fmt.Sprintf("%d segments", len(conv.Segments)))
	return header + "\n" + DimStyle.Render(strings.Join(meta, " · "))
}

// Transcript renders diarized segments, one per line.
func Transcript(segments []domain.Segment) string {
	if len(segments) == 0 {
		return DimStyle.Render("No transcript yet.")
	}
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, SegmentLine(seg))
	}
	return strings.Join(lines, "\n")
}

func SegmentLine(seg domain.Segment) string {
	return TimestampStyle.Render("["+FormatOffset(seg.StartTime)+"]") + " " +
		SpeakerStyle.Render(speaker(seg.SpeakerLabel)+":") + " " + seg.Text
}

func SummaryBlock(summary domain.Summary) string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render("Summary"))
	b.WriteString("\n")
	b.WriteString(summary.Summary)
	if len(summary.KeyPoints) > 0 {
		b.WriteString("\n\n")
		b.WriteString(SectionStyle.Render("Key points"))
		for _, point := range summary.KeyPoints {
			b.WriteString("\n  • ")
			b.WriteString(point)
		}
	}
	return b.String()
}

func SuggestionsBlock(suggestions domain.ReplySuggestions) string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render("Suggested replies"))
	if len(suggestions.Replies) == 0 {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render("No suggestions."))
	}
	for i, reply := range suggestions.Replies {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, reply)
	}
	if len(suggestions.ContextSegments) > 0 {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render("Based on:"))
		for _, seg := range suggestions.ContextSegments {
			b.WriteString("\n  ")
			b.WriteString(SegmentLine(seg))
		}
	}
	return b.String()
}

func SearchBlock(results domain.SearchResults) string {
	var b strings.Builder
	b.WriteString(SectionStyle.Render(fmt.Sprintf("Search: %q", results.Query)))
	if len(results.Results) == 0 {
		b.WriteString("\n")
		b.WriteString(DimStyle.Render("No matches."))
	}
	for _, hit := range results.Results {
		fmt.Fprintf(&b, "\n  %s %s %s %s",
			DimStyle.Render(fmt.Sprintf("%.2f", hit.SimilarityScore)),
			TimestampStyle.Render("["+FormatOffset(hit.StartTime)+"-"+FormatOffset(hit.EndTime)+"]"),
			SpeakerStyle.Render(speaker(hit.SpeakerLabel)+":"),
			hit.Text,
		)
	}
	return b.String()
}

// ConversationTable renders one page of the conversation list.
func ConversationTable(page domain.ConversationPage) string {
	if len(page.Conversations) == 0 {
		return DimStyle.Render("No conversations.")
	}
	lines := []string{SectionStyle.Render(fmt.Sprintf("%-8s %-12s %-20s %8s  %s", "ID", "STATUS", "CREATED", "SEGMENTS", "FILE"))}
	for _, conv := range page.Conversations {
		created := ""
		if !conv.CreatedAt.IsZero() {
			created = conv.CreatedAt.Format(time.DateTime)
		}
		lines = append(lines, fmt.Sprintf("%-8s %-12s %-20s %8d  %s",
			conv.ID, conv.Status, created, conv.SegmentCount, conv.Filename))
	}
	lines = append(lines, DimStyle.Render(fmt.Sprintf("%d of %d", len(page.Conversations), page.Total)))
	return strings.Join(lines, "\n")
}

// InsightStates renders one badge per insight kind.
func InsightStates(states []domain.InsightState) string {
	parts := make([]string, 0, len(states))
	for _, state := range states {
		label := string(state.Kind)
		switch {
		case state.Busy:
			parts = append(parts, BusyStyle.Render("⟳ "+label))
		case state.LastError != "":
			parts = append(parts, ErrorStyle.Render("✗ "+label))
		case state.HasResult:
			parts = append(parts, ReadyStyle.Render("✓ "+label))
		default:
			parts = append(parts, DimStyle.Render("· "+label))
		}
	}
	return strings.Join(parts, "  ")
}

// Footer renders key bindings as "key desc" pairs.
func Footer(bindings [][2]string) string {
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		parts = append(parts, FooterKeyStyle.Render(binding[0])+" "+FooterDescStyle.Render(binding[1]))
	}
	return strings.Join(parts, "  ")
}

func Divider(width int) string {
	if width <= 0 {
		width = 40
	}
	return DividerStyle.Render(strings.Repeat("─", width))
}

func speaker(label string) string {
	if strings.TrimSpace(label) == "" {
		return "UNKNOWN"
	}
	return label
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
