// Package netwatch keeps the device online: it owns the wireless radio and
// runs the resilience state machine that escalates from soft reconnects
// through a forced radio reset to an access-point fallback for
// reconfiguration.
package netwatch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Alpha162/armoured-candles/pkg/logger"
)

// Radio is the wireless control surface the state machine drives. All calls
// block until the underlying command completes or the context expires.
type Radio interface {
	// Connect joins the given station network.
	Connect(ctx context.Context, ssid, password string) error

	// Connected reports whether the radio believes it has a station link.
	// This is the radio's own view; it can be true while traffic is dead.
	Connected(ctx context.Context) (bool, error)

	// Reset tears the radio fully down and back up, dropping any ghost
	// association state the firmware is holding.
	Reset(ctx context.Context) error

	// StartAccessPoint brings up the local configuration hotspot.
	StartAccessPoint(ctx context.Context, ssid, password string) error

	// StopAccessPoint tears the hotspot down.
	StopAccessPoint(ctx context.Context) error
}

// ConnectivityError wraps a failed radio operation.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity: %s: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

const hotspotConnectionName = "armoured-candles-ap"

// SystemRadio drives the wireless interface through NetworkManager's nmcli.
type SystemRadio struct {
	iface      string
	cmdTimeout time.Duration
	log        *logrus.Entry
}

// NewSystemRadio builds a radio bound to one interface. Each nmcli invocation
// is bounded by cmdTimeout on top of the caller's context.
func NewSystemRadio(iface string, cmdTimeout time.Duration, log *logrus.Logger) *SystemRadio {
	return &SystemRadio{
		iface:      iface,
		cmdTimeout: cmdTimeout,
		log:        logger.WithComponent(log, "radio"),
	}
}

func (r *SystemRadio) run(ctx context.Context, op string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cmdTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "nmcli", args...).CombinedOutput()
	if err != nil {
		r.log.WithFields(logrus.Fields{"op": op, "output": strings.TrimSpace(string(out))}).
			WithError(err).Warn("nmcli command failed")
		return "", &ConnectivityError{Op: op, Err: err}
	}
	return string(out), nil
}

func (r *SystemRadio) Connect(ctx context.Context, ssid, password string) error {
	r.log.WithField("ssid", ssid).Info("Connecting to station network")
	args := []string{"device", "wifi", "connect", ssid, "ifname", r.iface}
	if password != "" {
		args = append(args, "password", password)
	}
	_, err := r.run(ctx, "connect", args...)
	return err
}

func (r *SystemRadio) Connected(ctx context.Context) (bool, error) {
	out, err := r.run(ctx, "status", "-t", "-f", "GENERAL.STATE", "device", "show", r.iface)
	if err != nil {
		return false, err
	}
	// nmcli prints "GENERAL.STATE:100 (connected)"
	return strings.Contains(out, "(connected)"), nil
}

func (r *SystemRadio) Reset(ctx context.Context) error {
	r.log.Info("Forcing radio reset")
	if _, err := r.run(ctx, "reset-off", "radio", "wifi", "off"); err != nil {
		return err
	}
	_, err := r.run(ctx, "reset-on", "radio", "wifi", "on")
	return err
}

func (r *SystemRadio) StartAccessPoint(ctx context.Context, ssid, password string) error {
	r.log.WithField("ssid", ssid).Info("Starting fallback access point")
	args := []string{
		"device", "wifi", "hotspot",
		"ifname", r.iface,
		"con-name", hotspotConnectionName,
		"ssid", ssid,
	}
	if password != "" {
		args = append(args, "password", password)
	}
	_, err := r.run(ctx, "hotspot-up", args...)
	return err
}

func (r *SystemRadio) StopAccessPoint(ctx context.Context) error {
	r.log.Info("Stopping fallback access point")
	_, err := r.run(ctx, "hotspot-down", "connection", "down", hotspotConnectionName)
	return err
}
