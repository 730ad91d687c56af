//go:build whisper

package doctor

import (
	"fmt"

	"livecap/internal/audio"
)

func checkPortAudio() Result {
	mic, err := audio.NewMic()
	if err != nil {
		return Result{Name: "microphone", Pass: false, Detail: fmt.Sprintf("init failed: %v (install with: brew install portaudio)", err)}
	}
	defer mic.Close()
	devs, err := mic.Devices()
	if err != nil {
		return Result{Name: "microphone", Pass: false, Detail: err.Error()}
	}
	if len(devs) == 0 {
		return Result{Name: "microphone", Pass: false, Detail: "no input devices"}
	}
	return Result{Name: "microphone", Pass: true, Detail: fmt.Sprintf("%d input devices", len(devs))}
}
