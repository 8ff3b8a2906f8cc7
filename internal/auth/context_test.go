package auth

import (
	"context"
	"testing"
)

func TestDeviceContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Fatal("FromContext on empty context should be nil")
	}
	if got := DeviceID(ctx); got != "" {
		t.Errorf("DeviceID() = %q, want empty", got)
	}

	ctx = WithDevice(ctx, &Device{ID: "phone"})
	if got := DeviceID(ctx); got != "phone" {
		t.Errorf("DeviceID() = %q, want %q", got, "phone")
	}
	if FromContext(ctx).Anonymous {
		t.Error("token device should not be anonymous")
	}
}
