// Package subtitle renders caption records as TXT, SRT, TSV and WebVTT text.
package subtitle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"livecap/internal/caption"
)

// Format names a subtitle output.
type Format string

const (
	TXT Format = "txt"
	SRT Format = "srt"
	TSV Format = "tsv"
	VTT Format = "vtt"
)

// Formats lists every output written on save, in write order.
var Formats = []Format{TXT, SRT, TSV, VTT}

// Style controls Timestamp output.
type Style struct {
	Hours bool // include a leading HH: field
	Sep   byte // separator before milliseconds
}

var (
	srtStyle = Style{Hours: true, Sep: ','}
	vttStyle = Style{Hours: false, Sep: '.'}
)

// Millis converts seconds to whole milliseconds, truncating. Negative input
// yields zero.
func Millis(sec float64) int64 {
	if sec <= 0 || math.IsNaN(sec) {
		return 0
	}
	// The epsilon absorbs binary representation error (2.3*1000 = 2299.9999...).
	return int64(math.Floor(sec*1000 + 1e-6))
}

// Timestamp formats sec as [HH:]MM:SS<sep>mmm. Without Hours the minutes field
// wraps at 60.
func Timestamp(sec float64, st Style) string {
	ms := Millis(sec)
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	frac := ms % 1000
	if st.Hours {
		return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, st.Sep, frac)
	}
	return fmt.Sprintf("%02d:%02d%c%03d", m, s, st.Sep, frac)
}

// FormatSRT renders sec as HH:MM:SS,mmm.
func FormatSRT(sec float64) string { return Timestamp(sec, srtStyle) }

// FormatVTT renders sec as MM:SS.mmm.
func FormatVTT(sec float64) string { return Timestamp(sec, vttStyle) }

// Text joins caption texts with newlines.
func Text(recs []caption.Record) string {
	lines := make([]string, len(recs))
	for i, r := range recs {
		lines[i] = r.Text
	}
	return strings.Join(lines, "\n")
}

// SubRip renders numbered SRT blocks, each followed by a blank line.
func SubRip(recs []caption.Record) string {
	var b strings.Builder
	for i, r := range recs {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('\n')
		b.WriteString(FormatSRT(r.Start) + " --> " + FormatSRT(r.End))
		b.WriteByte('\n')
		b.WriteString(r.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Table renders a tab separated table with millisecond start/end columns.
func Table(recs []caption.Record) string {
	var b strings.Builder
	b.WriteString("start\tend\ttext\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "%d\t%d\t%s\n", Millis(r.Start), Millis(r.End), r.Text)
	}
	return b.String()
}

// WebVTT renders a WEBVTT document without cue identifiers.
func WebVTT(recs []caption.Record) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, r := range recs {
		b.WriteString(FormatVTT(r.Start) + " --> " + FormatVTT(r.End))
		b.WriteByte('\n')
		b.WriteString(r.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Render dispatches on f.
func Render(f Format, recs []caption.Record) (string, error) {
	switch f {
	case TXT:
		return Text(recs), nil
	case SRT:
		return SubRip(recs), nil
	case TSV:
		return Table(recs), nil
	case VTT:
		return WebVTT(recs), nil
	default:
		return "", fmt.Errorf("unknown subtitle format %q", f)
	}
}

// ParseFormat accepts a format name with or without a leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown subtitle format %q (want txt, srt, tsv or vtt)", s)
}
