package auth

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the raw response shape of the licensing service. Success is a
// pointer so that an envelope which never carried the flag is detectable.
type Envelope struct {
	Success *bool          `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

// Reason identifies why an authentication attempt failed. The set is closed;
// codes the service introduces later fall through to ReasonUnknown.
type Reason string

const (
	ReasonLicenseNotFound      Reason = "LICENSE_NOT_FOUND"
	ReasonInvalidCredentials   Reason = "INVALID_USERNAME_OR_PASSWORD"
	ReasonLicenseNotActive     Reason = "LICENSE_NOT_ACTIVE"
	ReasonDeviceBoundElsewhere Reason = "DEVICE_ALREADY_REGISTERED_WITH_OTHER_LICENSE"
	ReasonLicenseExpired       Reason = "LICENSE_EXPIRED"
	ReasonHWIDMismatch         Reason = "HWID_MISMATCH"
	ReasonUnknown              Reason = "UNKNOWN"
)

// CooldownState is derived, never stored: how far into the HWID reset
// cooldown the account is. Available holds exactly when RemainingSeconds
// is zero.
type CooldownState struct {
	ElapsedSeconds   int64
	RemainingSeconds int64
	Available        bool
}

// NewCooldownState computes the cooldown arithmetic for a reset that last
// happened at lastReset with a cooldown period of cooldownSeconds.
func NewCooldownState(lastReset time.Time, cooldownSeconds int64, now time.Time) CooldownState {
	elapsed := int64(now.UTC().Sub(lastReset.UTC()).Seconds())
	remaining := cooldownSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return CooldownState{
		ElapsedSeconds:   elapsed,
		RemainingSeconds: remaining,
		Available:        remaining == 0,
	}
}

// Outcome is the classified result of an authentication attempt.
type Outcome struct {
	OK         bool
	LicenseKey string

	Reason     Reason
	RawMessage string
	Detail     string

	ExpiresAt *time.Time
	Cooldown  *CooldownState
}

// Classifier turns response envelopes into outcomes. It is stateless per
// call; the clock is injectable for cooldown tests.
type Classifier struct {
	now func() time.Time
}

// NewClassifier creates a classifier using the wall clock.
func NewClassifier() *Classifier {
	return &Classifier{now: time.Now}
}

// NewClassifierAt creates a classifier with a fixed clock.
func NewClassifierAt(now func() time.Time) *Classifier {
	return &Classifier{now: now}
}

// Classify determines success or failure and maps a failure reason onto the
// closed outcome set. Missing or unparseable enrichment fields degrade to a
// coarser detail; only an envelope without its success flag or failure
// reason is a hard error.
func (c *Classifier) Classify(env Envelope) (Outcome, error) {
	if env.Success == nil {
		return Outcome{}, fmt.Errorf("%w: missing success flag", ErrMalformedResponse)
	}

	if *env.Success {
		key, ok := stringField(env.Data, "key")
		if !ok {
			return Outcome{}, fmt.Errorf("%w: success response without issued key", ErrMalformedResponse)
		}
		return Outcome{OK: true, LicenseKey: key}, nil
	}

	if env.Message == "" {
		return Outcome{}, fmt.Errorf("%w: failure without reason code", ErrMalformedResponse)
	}

	out := Outcome{RawMessage: env.Message}

	switch Reason(env.Message) {
	case ReasonLicenseNotFound:
		out.Reason = ReasonLicenseNotFound
		out.Detail = "License key not found. Double-check it."
	case ReasonInvalidCredentials:
		out.Reason = ReasonInvalidCredentials
		out.Detail = "Wrong username or password."
	case ReasonLicenseNotActive:
		out.Reason = ReasonLicenseNotActive
		out.Detail = "License is not active. Contact support."
	case ReasonDeviceBoundElsewhere:
		out.Reason = ReasonDeviceBoundElsewhere
		out.Detail = "This device is already bound to another license."
	case ReasonLicenseExpired:
		out.Reason = ReasonLicenseExpired
		c.enrichExpiry(&out, env.Data)
	case ReasonHWIDMismatch:
		out.Reason = ReasonHWIDMismatch
		c.enrichCooldown(&out, env.Data)
	default:
		out.Reason = ReasonUnknown
		out.Detail = fmt.Sprintf("Unexpected error: %s. Contact support.", env.Message)
	}

	return out, nil
}

// enrichExpiry adds the parsed expiry timestamp when data carries one.
func (c *Classifier) enrichExpiry(out *Outcome, data map[string]any) {
	raw, ok := stringField(data, "expires_at")
	if !ok {
		out.Detail = "License has expired."
		return
	}

	expires, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		out.Detail = "License has expired (invalid date format)."
		return
	}

	expires = expires.UTC()
	out.ExpiresAt = &expires
	out.Detail = fmt.Sprintf("License expired on: %s UTC", expires.Format("2006-01-02 15:04:05"))
}

// enrichCooldown computes the HWID reset cooldown when the service allows a
// reset and supplies usable timing fields.
func (c *Classifier) enrichCooldown(out *Outcome, data map[string]any) {
	allowed, ok := boolField(data, "hwid_reset_allowed")
	if !ok || !allowed {
		out.Detail = "HWID does not match the registered device. Reset not allowed."
		return
	}

	lastRaw, haveLast := stringField(data, "last_hwid_reset_at")
	cooldownSeconds, haveCooldown := intField(data, "hwid_reset_cooldown")
	if !haveLast || !haveCooldown {
		out.Detail = "HWID does not match the registered device. Try resetting it."
		return
	}

	lastReset, err := time.Parse(time.RFC3339, lastRaw)
	if err != nil {
		out.Detail = "HWID does not match the registered device. Try resetting it (invalid timestamp)."
		return
	}

	state := NewCooldownState(lastReset, cooldownSeconds, c.now())
	out.Cooldown = &state

	if state.Available {
		out.Detail = "HWID does not match the registered device. Reset is now available."
	} else {
		out.Detail = fmt.Sprintf("HWID does not match the registered device. Reset available in %d seconds.", state.RemainingSeconds)
	}
}

func stringField(data map[string]any, key string) (string, bool) {
	value, ok := data[key].(string)
	return value, ok
}

func boolField(data map[string]any, key string) (bool, bool) {
	value, ok := data[key].(bool)
	return value, ok
}

// intField accepts the numeric encodings a decoded JSON document can carry.
func intField(data map[string]any, key string) (int64, bool) {
	switch value := data[key].(type) {
	case float64:
		return int64(value), true
	case int:
		return int64(value), true
	case int64:
		return value, true
	case json.Number:
		n, err := value.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}
