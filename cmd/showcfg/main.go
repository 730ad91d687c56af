package main

import (
	"flag"
	"fmt"

	"livecap/internal/config"
)

func main() {
	path := flag.String("c", "", "config file")
	flag.Parse()
	cfg, err := config.Load(*path)
	if err != nil {
		panic(err)
	}
	fmt.Printf("config=%s\n", cfg.Paths.ConfigPath)
	fmt.Printf("backend=%s device=%q rate=%d channels=%d chunk_sec=%g\n",
		cfg.Backend.Kind, cfg.Audio.DeviceName, cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.ChunkSec)
	fmt.Printf("output_dir=%s overwrite=%s max_duration=%s\n", cfg.Session.OutputDir, cfg.Session.Overwrite, cfg.MaxDuration())
	fmt.Printf("hook.command=%q args=%v\n", cfg.Hook.Command, cfg.Hook.Args)
}
