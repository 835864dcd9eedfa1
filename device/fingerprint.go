package device

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"
)

// Attributes are the raw inputs a fingerprint is derived from. They are
// collected by the caller (typically from request context) via an
// [AttributeFunc].
type Attributes struct {
	UserAgent string
	ClientIP  string
	DeviceID  string
}

// AttributeFunc supplies the attributes of the device performing the current
// operation.
type AttributeFunc func(ctx context.Context) Attributes

// Fingerprint identifies one physical device. FingerprintID is a SHA-256
// digest over the stable attributes, so the same device yields the same ID
// across attempts while any attribute change yields a new one.
type Fingerprint struct {
	FingerprintID  string            `json:"fingerprint_id"`
	DeviceID       string            `json:"device_id"`
	DeviceName     string            `json:"device_name"`
	DeviceModel    string            `json:"device_model"`
	OSVersion      string            `json:"os_version"`
	Platform       string            `json:"platform"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// derive builds a Fingerprint from raw attributes. A missing device ID is
// replaced with a freshly minted UUID, which the caller is expected to cache
// for install-scoped stability.
func derive(attrs Attributes, now time.Time) *Fingerprint {
	deviceID := attrs.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
	}

	fp := &Fingerprint{
		DeviceID:  deviceID,
		CreatedAt: now,
	}

	if attrs.UserAgent != "" {
		ua := useragent.New(attrs.UserAgent)
		name, version := ua.Browser()
		fp.Platform = ua.OS()
		fp.OSVersion = ua.OSInfo().Version
		fp.DeviceModel = ua.Platform()
		fp.DeviceName = name
		if fp.DeviceModel == "" {
			fp.DeviceModel = ua.Model()
		}
		fp.AdditionalInfo = map[string]string{
			"browser_version": version,
			"mobile":          boolString(ua.Mobile()),
		}
	}
	if fp.Platform == "" {
		fp.Platform = "Unknown"
	}
	if fp.DeviceModel == "" {
		fp.DeviceModel = "Unknown Device"
	}
	if fp.DeviceName == "" {
		fp.DeviceName = fp.DeviceModel
	}

	fp.FingerprintID = hashAttributes(deviceID, fp.Platform, fp.OSVersion, fp.DeviceModel, attrs.UserAgent)
	return fp
}

// hashAttributes joins the stable attributes and hashes them; ordering is
// part of the identity.
func hashAttributes(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
