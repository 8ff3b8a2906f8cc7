// ABOUTME: Device identity carried through request handlers via context
// ABOUTME: WithDevice/FromContext mirror the usual context-value accessor pair

package auth

import "context"

// LocalDevice is the device id used when auth is disabled.
const LocalDevice = "local"

// Device is the caller's identity.
type Device struct {
	ID string
	// Anonymous is true when auth is disabled and the caller is LocalDevice.
	Anonymous bool
}

type deviceContextKey struct{}

// WithDevice returns a context carrying d.
func WithDevice(ctx context.Context, d *Device) context.Context {
	return context.WithValue(ctx, deviceContextKey{}, d)
}

// FromContext returns the caller's Device, or nil.
func FromContext(ctx context.Context) *Device {
	d, _ := ctx.Value(deviceContextKey{}).(*Device)
	return d
}

// DeviceID returns the caller's device id, or "" when none is attached.
func DeviceID(ctx context.Context) string {
	if d := FromContext(ctx); d != nil {
		return d.ID
	}
	return ""
}
