package bus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/inno/internal/config"
	"github.com/llehouerou/inno/internal/matcher"
)

const (
	upowerDest          = "org.freedesktop.UPower"
	upowerPath          = "/org/freedesktop/UPower"
	upowerDeviceIface   = "org.freedesktop.UPower.Device"
	upowerDisplayDevice = "/org/freedesktop/UPower/devices/DisplayDevice"
)

// ErrNoBattery is returned when no battery device can be read.
var ErrNoBattery = errors.New("no battery device")

// deviceSource reads UPower devices. The bus implementation is busSource.
type deviceSource interface {
	Property(ctx context.Context, path dbus.ObjectPath, name string) (dbus.Variant, error)
	Devices(ctx context.Context) ([]dbus.ObjectPath, error)
}

type busSource struct {
	conn *dbus.Conn
}

func (s busSource) Property(ctx context.Context, path dbus.ObjectPath, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := s.conn.Object(upowerDest, path).
		CallWithContext(ctx, "org.freedesktop.DBus.Properties.Get", 0, upowerDeviceIface, name).
		Store(&v)
	return v, err
}

func (s busSource) Devices(ctx context.Context) ([]dbus.ObjectPath, error) {
	var paths []dbus.ObjectPath
	err := s.conn.Object(upowerDest, upowerPath).
		CallWithContext(ctx, upowerDest+".EnumerateDevices", 0).
		Store(&paths)
	return paths, err
}

// UPower answers battery queries according to the configured battery mode.
type UPower struct {
	src  deviceSource
	mode config.BatteryMode
}

// NewUPower queries UPower over conn, which must be a system bus
// connection.
func NewUPower(conn *dbus.Conn, mode config.BatteryMode) *UPower {
	return &UPower{src: busSource{conn: conn}, mode: mode}
}

// QueryBattery implements matcher.BatteryQuerier. path is the device that
// emitted the signal; it is used as is in "first" mode.
func (u *UPower) QueryBattery(ctx context.Context, path string) (float64, string, error) {
	switch u.mode {
	case config.BatteryCombined:
		return u.device(ctx, upowerDisplayDevice)
	case config.BatteryHighest, config.BatteryLowest:
		return u.extreme(ctx, u.mode == config.BatteryHighest)
	default:
		return u.device(ctx, dbus.ObjectPath(path))
	}
}

func (u *UPower) device(ctx context.Context, path dbus.ObjectPath) (float64, string, error) {
	pv, err := u.src.Property(ctx, path, "Percentage")
	if err != nil {
		return 0, "", fmt.Errorf("read %s Percentage: %w", path, err)
	}
	pct, ok := matcher.ToFloat(pv)
	if !ok {
		return 0, "", fmt.Errorf("read %s Percentage: unexpected %s", path, pv.Signature())
	}

	sv, err := u.src.Property(ctx, path, "State")
	if err != nil {
		return 0, "", fmt.Errorf("read %s State: %w", path, err)
	}
	code, ok := matcher.ToFloat(sv)
	if !ok {
		return 0, "", fmt.Errorf("read %s State: unexpected %s", path, sv.Signature())
	}

	return pct, matcher.UPowerState(uint32(code)), nil
}

// extreme returns the battery with the highest (or lowest) percentage.
// Batteries that cannot be read are skipped.
func (u *UPower) extreme(ctx context.Context, highest bool) (float64, string, error) {
	paths, err := u.src.Devices(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("enumerate devices: %w", err)
	}

	found := false
	var bestPct float64
	var bestState string
	for _, p := range paths {
		if !IsBatteryPath(string(p)) {
			continue
		}
		pct, state, err := u.device(ctx, p)
		if err != nil {
			continue
		}
		if !found || (highest && pct > bestPct) || (!highest && pct < bestPct) {
			bestPct, bestState, found = pct, state, true
		}
	}
	if !found {
		return 0, "", ErrNoBattery
	}
	return bestPct, bestState, nil
}

// IsBatteryPath reports whether a UPower object path names a battery.
func IsBatteryPath(path string) bool {
	return strings.Contains(path, "battery") || strings.Contains(path, "BAT")
}
