package control

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"livecap/internal/audio"
	"livecap/internal/caption"
	"livecap/internal/session"
)

// Control socket operations.
const (
	OpStatus  = "status"
	OpHealth  = "health"
	OpStart   = "start"
	OpStop    = "stop"
	OpSave    = "save"
	OpDevices = "devices"
)

// Request is one JSON line sent to the daemon.
type Request struct {
	Op        string `json:"op"`
	Name      string `json:"name,omitempty"`
	Overwrite bool   `json:"overwrite,omitempty"`
}

type Status struct {
	Running   bool             `json:"running"`
	UptimeSec float64          `json:"uptime_sec"`
	Session   session.Status   `json:"session"`
	Recent    []caption.Record `json:"recent"`
	Viewers   int              `json:"viewers"`
}

// Response answers every op other than status.
type Response struct {
	OK        bool                `json:"ok"`
	Message   string              `json:"message"`
	SessionID string              `json:"session_id,omitempty"`
	Saved     *session.SaveResult `json:"saved,omitempty"`
	Devices   []audio.Device      `json:"devices,omitempty"`
}

const dialTimeout = 2 * time.Second

// Call sends req over the unix socket at path and decodes one reply into out.
func Call(path string, req Request, out any) error {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(bufio.NewReader(conn)).Decode(out); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return nil
}

// Do sends req and turns a failed Response into an error.
func Do(path string, req Request) (Response, error) {
	var resp Response
	if err := Call(path, req, &resp); err != nil {
		return resp, err
	}
	if !resp.OK {
		return resp, fmt.Errorf("%s: %s", req.Op, resp.Message)
	}
	return resp, nil
}
