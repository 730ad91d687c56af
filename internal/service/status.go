package service

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Status returns the plist path for label and whether it is installed.
func Status(label string) (string, bool) {
	plist := LaunchdPath(label)
	_, err := os.Stat(plist)
	return plist, err == nil
}

// Remove deletes the plist for label. A missing plist is not an error.
func Remove(label string) (string, error) {
	plist := LaunchdPath(label)
	if err := os.Remove(plist); err != nil && !errors.Is(err, os.ErrNotExist) {
		return plist, err
	}
	return plist, nil
}

// ParseEnv turns KEY=VAL pairs into the plist environment.
func ParseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("bad env %q, want KEY=VAL", p)
		}
		env[strings.TrimSpace(k)] = v
	}
	return env, nil
}
