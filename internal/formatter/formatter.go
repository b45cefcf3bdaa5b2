// package formatter renders mix listings as CSV, Markdown or plain text reports for moderators
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

// Format is a report output format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// Formats lists the supported formats in the order they are documented.
var Formats = []Format{FormatCSV, FormatMarkdown, FormatText}

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatMarkdown:
		return "md"
	default:
		return "txt"
	}
}

// MixReport is a titled list of mixes.
type MixReport struct {
	Title       string
	GeneratedAt time.Time
	Mixes       []*models.Mix
}

// NewMixReport creates a report stamped with the current time.
func NewMixReport(title string, mixes []*models.Mix) *MixReport {
	return &MixReport{Title: title, GeneratedAt: time.Now().UTC(), Mixes: mixes}
}

var csvHeaders = []string{"ID", "Title", "DJ", "Genre", "Status", "Duration", "Plays", "Featured", "Submitted", "Rejection Reason"}

// ExportMixesCSV writes one row per mix under a header row.
func ExportMixesCSV(report *MixReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, mix := range report.Mixes {
		record := []string{
			mix.ID,
			mix.Title,
			mix.DJName,
			mix.GenreName,
			string(mix.Status),
			strconv.Itoa(mix.DurationSeconds),
			strconv.Itoa(mix.PlayCount),
			strconv.FormatBool(mix.Featured),
			mix.CreatedAt.UTC().Format(time.RFC3339),
			mix.RejectionReason,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportMixesMarkdown renders a heading, status totals and a numbered mix list.
func ExportMixesMarkdown(report *MixReport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", report.Title)
	fmt.Fprintf(&buf, "**Generated**: %s\n", report.GeneratedAt.Format(time.RFC1123))
	fmt.Fprintf(&buf, "**Mixes**: %d\n", len(report.Mixes))
	for _, line := range statusTotals(report.Mixes) {
		fmt.Fprintf(&buf, "- %s\n", line)
	}
	buf.WriteString("\n## Mixes\n\n")

	for i, mix := range report.Mixes {
		genre := ""
		if mix.GenreName != "" {
			genre = fmt.Sprintf(" (%s)", mix.GenreName)
		}
		fmt.Fprintf(&buf, "%d. **%s** by %s%s [%s] `%s`", i+1, mix.Title, djName(mix), genre,
			shared.FormatDuration(mix.DurationSeconds), mix.Status)
		if mix.Featured {
			buf.WriteString(" ★")
		}
		buf.WriteString("\n")
		if mix.RejectionReason != "" {
			fmt.Fprintf(&buf, "   > %s\n", mix.RejectionReason)
		}
	}

	return buf.Bytes(), nil
}

// ExportMixesText renders one line per mix.
func ExportMixesText(report *MixReport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", report.Title)
	fmt.Fprintf(&buf, "Mixes: %d\n\n", len(report.Mixes))

	for i, mix := range report.Mixes {
		fmt.Fprintf(&buf, "%d. %s - %s [%s] %s\n", i+1, djName(mix), mix.Title, mix.Status, mix.ID)
	}

	return buf.Bytes(), nil
}

// Export renders report in format.
func Export(format Format, report *MixReport) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportMixesCSV(report)
	case FormatMarkdown:
		return ExportMixesMarkdown(report)
	case FormatText:
		return ExportMixesText(report)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// Write renders report in format to w.
func Write(w io.Writer, format Format, report *MixReport) error {
	data, err := Export(format, report)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", format, err)
	}
	return nil
}

// WriteFile renders report to path. An empty path defaults to mixes.{ext} in the working directory.
func WriteFile(format Format, report *MixReport, path string) (string, error) {
	if path == "" {
		path = "mixes." + format.Extension()
	}

	data, err := Export(format, report)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

func djName(mix *models.Mix) string {
	if mix.DJName != "" {
		return mix.DJName
	}
	return "unknown DJ"
}

func statusTotals(mixes []*models.Mix) []string {
	counts := map[models.MixStatus]int{}
	for _, mix := range mixes {
		counts[mix.Status]++
	}
	lines := []string{}
	for _, status := range []models.MixStatus{models.MixPending, models.MixApproved, models.MixRejected} {
		if counts[status] > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", status, counts[status]))
		}
	}
	return lines
}
