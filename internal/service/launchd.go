// Package service provides launchd plist generation for macOS.
package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

// DefaultLabel is the launchd label of the livecap agent.
const DefaultLabel = "com.livecap.agent"

const launchdTemplate = `<?xml version='1.0' encoding='UTF-8'?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
  <key>Label</key><string>{{.Label}}</string>
  <key>ProgramArguments</key>
  <array>
    <string>{{.Binary}}</string>
    <string>serve</string>
    <string>--config</string>
    <string>{{.Config}}</string>
  </array>
  <key>ProcessType</key><string>Interactive</string>
  <key>RunAtLoad</key><true/>
  <key>KeepAlive</key><dict><key>SuccessfulExit</key><false/></dict>
  <key>ExitTimeOut</key><integer>90</integer>
  <key>StandardOutPath</key><string>{{.Log}}</string>
  <key>StandardErrorPath</key><string>{{.Log}}</string>
  {{- if .Env }}
  <key>EnvironmentVariables</key>
  <dict>
    {{- range $k, $v := .Env }}
    <key>{{$k}}</key><string>{{$v}}</string>
    {{- end }}
  </dict>
  {{- end }}
</dict>
</plist>
`

var plistTemplate = template.Must(template.New("launchd").Parse(launchdTemplate))

// LaunchdParams fills the plist template. Log receives the agent's stdout
// and stderr; the daemon's own log is configured separately.
type LaunchdParams struct {
	Label  string
	Binary string
	Config string
	Log    string
	Env    map[string]string
}

// LaunchdPath returns the plist path for a label.
func LaunchdPath(label string) string {
	return filepath.Join(os.Getenv("HOME"), "Library", "LaunchAgents", fmt.Sprintf("%s.plist", label))
}

// RenderPlist writes the plist for params to w.
func RenderPlist(w io.Writer, params LaunchdParams) error {
	return plistTemplate.Execute(w, params)
}

// WritePlist writes a user-level launchd plist.
func WritePlist(params LaunchdParams) (string, error) {
	path := LaunchdPath(params.Label)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := RenderPlist(f, params); err != nil {
		return "", err
	}
	return path, f.Close()
}
