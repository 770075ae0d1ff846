package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/naseridev/deepscene/internal/pipeline"
)

var (
	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#90EE90"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD580")).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666")).
			Padding(0, 1)
)

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func renderEncode(r *pipeline.EncodeResult) string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("File hidden successfully in '%s'", r.OutputPath)))
	b.WriteString("\n")
	b.WriteString(row("File:", r.FileName))
	b.WriteString(row("Encrypted:", yesNo(r.Encrypted)))
	b.WriteString(row("Compressed:", yesNo(r.Compressed)))
	if r.ConvertedToPNG {
		b.WriteString(row("Converted to PNG:", "Yes"))
	}

	if r.Compressed {
		reduction := 0.0
		if r.FinalSize < r.OriginalSize {
			reduction = float64(r.OriginalSize-r.FinalSize) / float64(r.OriginalSize) * 100
		}
		b.WriteString(row("Original size:", fmt.Sprintf("%d bytes", r.OriginalSize)))
		b.WriteString(row("Final size:", fmt.Sprintf("%d bytes (%.2f%% reduction)", r.FinalSize, reduction)))
	} else {
		b.WriteString(row("Payload size:", fmt.Sprintf("%d bytes", r.OriginalSize)))
	}

	b.WriteString("\n")
	b.WriteString(noteStyle.Render("Only lossless formats (PNG, BMP, TIFF) preserve hidden data.\n" +
		"Lossy formats (JPEG, WebP) will corrupt the embedded information."))
	b.WriteString("\n")
	return b.String()
}

func renderDecode(r *pipeline.DecodeResult) string {
	var b strings.Builder

	b.WriteString(successStyle.Render(fmt.Sprintf("File extracted successfully to '%s'", r.OutputPath)))
	b.WriteString("\n")
	b.WriteString(row("File name:", r.FileName))
	b.WriteString(row("Encrypted:", yesNo(r.Encrypted)))
	b.WriteString(row("Compressed:", yesNo(r.Compressed)))
	b.WriteString(row("Extracted:", fmt.Sprintf("%d bytes", r.FileSize)))
	return b.String()
}

func renderInspection(info *pipeline.Inspection) string {
	var b strings.Builder

	b.WriteString(successStyle.Render(info.Path))
	b.WriteString("\n")
	b.WriteString(row("Format:", info.Format))
	b.WriteString(row("Dimensions:", fmt.Sprintf("%dx%d", info.Width, info.Height)))
	b.WriteString(row("Lossless:", yesNo(info.Lossless)))
	b.WriteString(row("Capacity:", fmt.Sprintf("%d bytes (%d usable)", info.Capacity, info.MaxPayload)))

	if info.HasPayload {
		b.WriteString(row("Embedded data:", fmt.Sprintf("Yes, %d bytes", info.Embedded)))
	} else {
		b.WriteString(row("Embedded data:", "None detected"))
	}

	b.WriteString(row("LSB zeros:", fmt.Sprintf("%.2f%% of %d pixels", info.LSB.ZeroRatio, info.LSB.Pixels)))
	b.WriteString(row("LSB entropy:", fmt.Sprintf("%.4f bits/byte", info.LSB.Entropy)))
	if info.LSB.LooksRandom() {
		b.WriteString(row("Assessment:", "LSBs look random (encrypted or compressed data, or noise)"))
	} else {
		b.WriteString(row("Assessment:", "LSBs are biased"))
	}
	return b.String()
}
