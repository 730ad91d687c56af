package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/subtitle"
)

// SaveResult describes one written recording.
type SaveResult struct {
	SessionID string         `json:"session_id"`
	Files     subtitle.Files `json:"files"`
	Captions  int            `json:"captions"`
	Seconds   float64        `json:"seconds"`
	Backend   string         `json:"backend"`
	Started   time.Time      `json:"started"`
	Saved     time.Time      `json:"saved"`
}

// DefaultName is the ctime-style name used when none is given,
// e.g. "Mon_Jan__2_15:04:05_2006.wav".
func DefaultName(now time.Time) string {
	return strings.ReplaceAll(now.Format("Mon Jan _2 15:04:05 2006"), " ", "_") + ".wav"
}

// resolveName applies the default, the .wav suffix and the output directory.
func resolveName(name, dir string, now time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName(now)
	}
	if !strings.EqualFold(filepath.Ext(name), ".wav") {
		name += ".wav"
	}
	if !filepath.IsAbs(name) && dir != "" {
		name = filepath.Join(dir, name)
	}
	return name
}

func existingFiles(files subtitle.Files) []string {
	var out []string
	for _, p := range files.All() {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func writeOutputs(files subtitle.Files, samples []int16, sampleRate, channels int, recs []caption.Record) error {
	if err := audio.WriteWAV(files.Audio, samples, sampleRate, channels); err != nil {
		return &FileWriteError{Path: files.Audio, Err: err}
	}
	for _, f := range subtitle.Formats {
		body, err := subtitle.Render(f, recs)
		if err != nil {
			return err
		}
		path := files.For(f)
		if err := writeFileAtomic(path, []byte(body)); err != nil {
			return &FileWriteError{Path: path, Err: err}
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Join(err, os.Remove(tmp))
	}
	return nil
}

// save writes the held recording under name. Data is cleared only on success.
func (c *Controller) save(ctx context.Context, name string, confirm Confirmer) (*SaveResult, error) {
	recs := c.ledger.All()
	samples := c.buffer.Samples()
	seconds := c.buffer.Seconds()
	if len(samples) == 0 && len(recs) == 0 {
		return nil, ErrNothingToSave
	}
	if confirm == nil {
		confirm = c.opts.Confirmer
	}

	c.mu.Lock()
	sessionID, started := c.sessionID, c.started
	c.mu.Unlock()

	now := c.opts.Now()
	files := subtitle.Paths(resolveName(name, c.opts.OutputDir, now))
	log := c.logger.WithField("session", sessionID)

	if existing := existingFiles(files); len(existing) > 0 {
		ok, err := confirm.ConfirmOverwrite(ctx, existing)
		if err != nil {
			return nil, err
		}
		if !ok {
			log.Infof("save to %s declined; recording kept", files.Audio)
			return nil, ErrOverwriteDeclined
		}
	}

	if err := writeOutputs(files, samples, c.opts.SampleRate, c.opts.Channels, recs); err != nil {
		log.Errorf("save failed: %v", err)
		c.observeSave(false, 0)
		return nil, err
	}

	res := &SaveResult{
		SessionID: sessionID,
		Files:     files,
		Captions:  len(recs),
		Seconds:   seconds,
		Backend:   c.opts.Backend.Name(),
		Started:   started,
		Saved:     now,
	}
	c.ledger.Clear()
	c.buffer.Clear()
	c.observeSave(true, res.Seconds)
	log.Infof("saved %s (%d captions, %.1fs)", files.Audio, res.Captions, res.Seconds)

	if c.opts.Archiver != nil {
		if err := c.opts.Archiver.Archive(ctx, *res, recs); err != nil {
			log.Warnf("archive: %v", err)
		}
	}
	if c.opts.Hook != nil {
		if err := c.opts.Hook.AfterSave(ctx, *res); err != nil {
			log.Warnf("post-save hook: %v", err)
		}
	}
	return res, nil
}

// Hooks runs several PostSave steps in order and joins their errors.
type Hooks []PostSave

func (h Hooks) AfterSave(ctx context.Context, res SaveResult) error {
	var errs []error
	for _, step := range h {
		if err := step.AfterSave(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
