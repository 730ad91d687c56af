package subtitle

import (
	"path/filepath"
	"strings"
)

// Files are the output paths written for one saved session.
type Files struct {
	Audio string
	TXT   string
	SRT   string
	TSV   string
	VTT   string
}

// Paths derives subtitle paths from the audio filename. An existing extension
// is replaced; otherwise the suffix is appended.
func Paths(audio string) Files {
	base := audio
	if ext := filepath.Ext(audio); ext != "" {
		base = strings.TrimSuffix(audio, ext)
	}
	return Files{
		Audio: audio,
		TXT:   base + ".txt",
		SRT:   base + ".srt",
		TSV:   base + ".tsv",
		VTT:   base + ".vtt",
	}
}

// For returns the path for a subtitle format.
func (f Files) For(format Format) string {
	switch format {
	case TXT:
		return f.TXT
	case SRT:
		return f.SRT
	case TSV:
		return f.TSV
	case VTT:
		return f.VTT
	}
	return ""
}

// All lists the audio path followed by every subtitle path.
func (f Files) All() []string {
	return []string{f.Audio, f.TXT, f.SRT, f.TSV, f.VTT}
}
