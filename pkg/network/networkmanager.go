package network

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	nmDest        = "org.freedesktop.NetworkManager"
	nmPath        = dbus.ObjectPath("/org/freedesktop/NetworkManager")
	nmSettingsPth = dbus.ObjectPath("/org/freedesktop/NetworkManager/Settings")
	nmIface       = "org.freedesktop.NetworkManager"
	nmDeviceIfc   = "org.freedesktop.NetworkManager.Device"
	nmSettingsIfc = "org.freedesktop.NetworkManager.Settings"
	nmConnIfc     = "org.freedesktop.NetworkManager.Settings.Connection"
	propsSet      = "org.freedesktop.DBus.Properties.Set"

	// NM_DEVICE_STATE_ACTIVATED
	nmDeviceActivated = 100
)

// nmBus is the slice of the system bus the radio needs.
type nmBus interface {
	Call(path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call
	Property(path dbus.ObjectPath, name string) (dbus.Variant, error)
	Close() error
}

type systemBus struct {
	conn *dbus.Conn
}

func (b systemBus) Call(path dbus.ObjectPath, method string, args ...interface{}) *dbus.Call {
	return b.conn.Object(nmDest, path).Call(method, 0, args...)
}

func (b systemBus) Property(path dbus.ObjectPath, name string) (dbus.Variant, error) {
	return b.conn.Object(nmDest, path).GetProperty(name)
}

func (b systemBus) Close() error { return b.conn.Close() }

// NetworkManagerRadio drives one Wi-Fi interface through NetworkManager.
// Link state is the activation state of that interface only.
type NetworkManagerRadio struct {
	bus   nmBus
	iface string
}

// NewNetworkManagerRadio opens a private system bus connection owned by the
// radio; Close releases it.
func NewNetworkManagerRadio(iface string) (*NetworkManagerRadio, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbus system bus: %w", err)
	}
	return &NetworkManagerRadio{bus: systemBus{conn: conn}, iface: iface}, nil
}

// Activate turns the wireless radio on.
func (r *NetworkManagerRadio) Activate() error {
	if err := r.bus.Call(nmPath, propsSet, nmIface, "WirelessEnabled", dbus.MakeVariant(true)).Err; err != nil {
		return fmt.Errorf("enable wireless: %w", err)
	}
	return nil
}

func (r *NetworkManagerRadio) device() (dbus.ObjectPath, error) {
	var device dbus.ObjectPath
	if err := r.bus.Call(nmPath, nmIface+".GetDeviceByIpIface", r.iface).Store(&device); err != nil {
		return "", fmt.Errorf("find device %s: %w", r.iface, err)
	}
	return device, nil
}

func (r *NetworkManagerRadio) deviceState() (uint32, error) {
	device, err := r.device()
	if err != nil {
		return 0, err
	}
	v, err := r.bus.Property(device, nmDeviceIfc+".State")
	if err != nil {
		return 0, fmt.Errorf("device %s state: %w", r.iface, err)
	}
	state, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected State type %T", v.Value())
	}
	return state, nil
}

func (r *NetworkManagerRadio) IsConnected() bool {
	state, err := r.deviceState()
	return err == nil && state == nmDeviceActivated
}

// Connect activates the saved profile named ssid on the interface, creating
// it on first use. It does not wait for the link.
func (r *NetworkManagerRadio) Connect(ssid, password string) error {
	device, err := r.device()
	if err != nil {
		return err
	}

	profile, err := r.findProfile(ssid)
	if err != nil {
		return err
	}
	var active dbus.ObjectPath
	if profile != "" {
		call := r.bus.Call(nmPath, nmIface+".ActivateConnection", profile, device, dbus.ObjectPath("/"))
		if err := call.Store(&active); err != nil {
			return fmt.Errorf("activate %q: %w", ssid, err)
		}
		return nil
	}

	call := r.bus.Call(nmPath, nmIface+".AddAndActivateConnection", wifiSettings(ssid, password), device, dbus.ObjectPath("/"))
	if err := call.Store(&profile, &active); err != nil {
		return fmt.Errorf("add and activate %q: %w", ssid, err)
	}
	return nil
}

// findProfile returns the saved connection whose id is ssid, or "".
func (r *NetworkManagerRadio) findProfile(ssid string) (dbus.ObjectPath, error) {
	var profiles []dbus.ObjectPath
	if err := r.bus.Call(nmSettingsPth, nmSettingsIfc+".ListConnections").Store(&profiles); err != nil {
		return "", fmt.Errorf("list connections: %w", err)
	}
	for _, p := range profiles {
		var settings map[string]map[string]dbus.Variant
		if err := r.bus.Call(p, nmConnIfc+".GetSettings").Store(&settings); err != nil {
			continue
		}
		if id, ok := settings["connection"]["id"].Value().(string); ok && id == ssid {
			return p, nil
		}
	}
	return "", nil
}

func wifiSettings(ssid, password string) map[string]map[string]dbus.Variant {
	settings := map[string]map[string]dbus.Variant{
		"connection": {
			"id":   dbus.MakeVariant(ssid),
			"type": dbus.MakeVariant("802-11-wireless"),
		},
		"802-11-wireless": {
			"ssid": dbus.MakeVariant([]byte(ssid)),
			"mode": dbus.MakeVariant("infrastructure"),
		},
	}
	if password != "" {
		settings["802-11-wireless-security"] = map[string]dbus.Variant{
			"key-mgmt": dbus.MakeVariant("wpa-psk"),
			"psk":      dbus.MakeVariant(password),
		}
	}
	return settings
}

// Status returns the NetworkManager device state of the interface.
func (r *NetworkManagerRadio) Status() string {
	state, err := r.deviceState()
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("device=%d", state)
}

func (r *NetworkManagerRadio) Close() error {
	return r.bus.Close()
}

// StaticRadio is an always-up link for hosts whose network is managed
// elsewhere.
type StaticRadio struct{}

func (StaticRadio) Activate() error                     { return nil }
func (StaticRadio) IsConnected() bool                   { return true }
func (StaticRadio) Connect(ssid, password string) error { return nil }
func (StaticRadio) Status() string                      { return "static" }
