package session

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Confirmer decides whether existing output files may be replaced.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, existing []string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, existing []string) (bool, error)

func (f ConfirmFunc) ConfirmOverwrite(ctx context.Context, existing []string) (bool, error) {
	return f(ctx, existing)
}

var (
	// Always replaces existing files.
	Always Confirmer = ConfirmFunc(func(context.Context, []string) (bool, error) { return true, nil })
	// Never refuses to replace existing files.
	Never Confirmer = ConfirmFunc(func(context.Context, []string) (bool, error) { return false, nil })
)

// Policy maps session.overwrite to a Confirmer. "ask" defers to ask, or
// refuses when nobody can be asked.
func Policy(mode string, ask Confirmer) Confirmer {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return Always
	case "never":
		return Never
	}
	if ask == nil {
		return Never
	}
	return ask
}

// Prompt asks on a terminal and accepts y or yes.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

func (p Prompt) ConfirmOverwrite(ctx context.Context, existing []string) (bool, error) {
	fmt.Fprintln(p.Out, "These files already exist:")
	for _, path := range existing {
		fmt.Fprintf(p.Out, "  %s\n", path)
	}
	fmt.Fprint(p.Out, "Overwrite? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- line
	}()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
