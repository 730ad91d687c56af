//go:build !whisper

package doctor

func checkPortAudio() Result {
	return Result{Name: "microphone", Pass: false, Detail: "built without capture support; rebuild with -tags whisper"}
}
