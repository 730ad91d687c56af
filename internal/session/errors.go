package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is running.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrSavePending is returned by Start while the previous session is being saved.
	ErrSavePending = errors.New("previous recording is still being saved")
	// ErrOverwriteDeclined aborts a save; the recording stays in memory.
	ErrOverwriteDeclined = errors.New("overwrite declined")
	// ErrNothingToSave is returned by Save when no audio or captions are held.
	ErrNothingToSave = errors.New("nothing to save")
	// ErrBusy is returned by Save while recording.
	ErrBusy = errors.New("cannot save while recording")
)

// FileWriteError reports an output file that could not be written. The
// recording stays in memory so the save can be retried.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error { return e.Err }
