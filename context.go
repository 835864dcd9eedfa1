package goSession

import (
	"context"

	"github.com/MrEthical07/goSession/device"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type deviceIDContextKey struct{}

// WithClientIP attaches the caller’s IP address to ctx. The Orchestrator uses
// it for secondary per-IP rate limiting and audit logging.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used by the
// device fingerprint subsystem to derive platform and model attributes.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithDeviceID attaches a stable install-scoped device identifier to ctx.
// When absent, the fingerprint service mints and caches one.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey{}, deviceID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

func deviceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	deviceID, _ := ctx.Value(deviceIDContextKey{}).(string)
	return deviceID
}

// contextAttributes assembles the fingerprint inputs carried on ctx. It is
// the default device.AttributeFunc wired by Builder.Build.
func contextAttributes(ctx context.Context) device.Attributes {
	return device.Attributes{
		UserAgent: userAgentFromContext(ctx),
		ClientIP:  clientIPFromContext(ctx),
		DeviceID:  deviceIDFromContext(ctx),
	}
}

// requestMetadata is the metadata map handed to the rate limiter for
// secondary throttles.
func requestMetadata(ctx context.Context) map[string]string {
	md := map[string]string{}
	if ip := clientIPFromContext(ctx); ip != "" {
		md["ip"] = ip
	}
	if ua := userAgentFromContext(ctx); ua != "" {
		md["user_agent"] = ua
	}
	return md
}
