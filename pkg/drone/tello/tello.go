// Package tello drives a Ryze Tello over its text-based SDK protocol:
// newline-free ASCII commands on UDP port 8889, answered with "ok", an
// error string, or a bare value for queries. Frame decoding is not
// handled here; pair the driver with an external FrameSource such as
// httpcam when marker search is needed.
package tello

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/eaglewings/perch/pkg/drone"
)

const (
	// DefaultAddr is the Tello's command address in AP mode.
	DefaultAddr = "192.168.10.1:8889"

	// respTimeout matches the SDK's worst observed command latency.
	respTimeout = 7 * time.Second
)

// Forward distance limits imposed by the SDK.
const (
	minForwardCm = 20
	maxForwardCm = 500
)

var _ drone.Commander = &Driver{}

// Driver is a Commander backed by the Tello SDK protocol. Commands are
// serialized: the SDK answers one command at a time.
type Driver struct {
	addr string

	mu   sync.Mutex
	conn net.Conn
}

func New(addr string) *Driver {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Driver{addr: addr}
}

// Connect dials the command port and enters SDK mode.
func (d *Driver) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		return nil
	}

	conn, err := net.Dial("udp", d.addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to dial %s", d.addr)
	}
	d.conn = conn

	if _, err := d.exchangeLocked("command"); err != nil {
		conn.Close()
		d.conn = nil
		return pkgerrors.Wrap(err, "failed to enter SDK mode")
	}

	logrus.Infof("connected to tello at %s", d.addr)
	return nil
}

// exchangeLocked sends one command and reads its single response. The
// caller must hold d.mu.
func (d *Driver) exchangeLocked(cmd string) (string, error) {
	if d.conn == nil {
		return "", pkgerrors.New("not connected")
	}

	logrus.Debugf("tello <- %q", cmd)
	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to send %q", cmd)
	}

	if err := d.conn.SetReadDeadline(time.Now().Add(respTimeout)); err != nil {
		return "", pkgerrors.Wrap(err, "failed to set read deadline")
	}

	buf := make([]byte, 1024)
	n, err := d.conn.Read(buf)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "no response to %q", cmd)
	}

	resp := strings.TrimSpace(string(buf[:n]))
	logrus.Debugf("tello -> %q", resp)
	return resp, nil
}

// command sends a control command and expects "ok".
func (d *Driver) command(cmd string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	resp, err := d.exchangeLocked(cmd)
	if err != nil {
		return err
	}
	if !strings.EqualFold(resp, "ok") {
		return pkgerrors.Errorf("%q failed: %s", cmd, resp)
	}
	return nil
}

// query sends a read command and returns the raw response.
func (d *Driver) query(cmd string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.exchangeLocked(cmd)
}

func (d *Driver) BatteryPercentage() (int, error) {
	resp, err := d.query("battery?")
	if err != nil {
		return 0, err
	}

	level, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil {
		return 0, pkgerrors.Errorf("unexpected battery response %q", resp)
	}
	return level, nil
}

func (d *Driver) TakeOff() error {
	return d.command("takeoff")
}

func (d *Driver) Land() error {
	return d.command("land")
}

func (d *Driver) MoveForward(distanceCm int) error {
	if distanceCm < minForwardCm {
		distanceCm = minForwardCm
	}
	if distanceCm > maxForwardCm {
		distanceCm = maxForwardCm
	}
	return d.command("forward " + strconv.Itoa(distanceCm))
}

func (d *Driver) RotateClockwise(degrees int) error {
	if degrees < 1 {
		degrees = 1
	}
	if degrees > 360 {
		degrees = 360
	}
	return d.command("cw " + strconv.Itoa(degrees))
}

func (d *Driver) StreamOn() error {
	return d.command("streamon")
}

func (d *Driver) StreamOff() error {
	return d.command("streamoff")
}

// End lands (best effort) and releases the link. Safe to call twice.
func (d *Driver) End() error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := d.command("land"); err != nil {
		logrus.Warnf("failed to land before disconnect: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	logrus.Info("tello link closed")
	return err
}
