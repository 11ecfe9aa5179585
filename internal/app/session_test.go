package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/internal/client"
	"keygate/internal/config"
	"keygate/internal/fingerprint"
	"keygate/internal/licensetest"
)

// staticSource yields fixed attributes so the device identifier is stable
type staticSource struct{}

func (staticSource) ProcessorID(ctx context.Context) (string, error)    { return "cpu", nil }
func (staticSource) FirmwareSerial(ctx context.Context) (string, error) { return "fw", nil }
func (staticSource) DiskSerial(ctx context.Context) (string, error)     { return "disk", nil }

func runSession(t *testing.T, mock *licensetest.Server, limits config.Limits, input string) string {
	t.Helper()

	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	c := client.New(config.Service{
		BaseURL:   srv.URL,
		AppID:     "test-app",
		Timeout:   5 * time.Second,
		UserAgent: "keygate-test/1.0",
	})

	var out bytes.Buffer
	session := NewSession(limits, c, fingerprint.NewGenerator(staticSource{}), strings.NewReader(input), &out)
	session.DisableColor()

	require.NoError(t, session.Run(context.Background()))
	return out.String()
}

func defaultLimits() config.Limits {
	return config.Limits{AttemptsPerMinute: 60, Burst: 3}
}

func TestSessionLicenseLoginAndExit(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{Key: "GOOD-KEY", Active: true})

	out := runSession(t, mock, defaultLimits(), "GOOD-KEY\nexit\n")

	assert.Contains(t, out, "Your HWID: ")
	assert.Contains(t, out, "Login successful!")
	assert.Contains(t, out, "Welcome! You have access.")
	assert.Contains(t, out, "Bye!")
}

func TestSessionEmptyCredentialsDenied(t *testing.T) {
	out := runSession(t, licensetest.NewServer(), defaultLimits(), "\nalice\n\n")

	assert.Contains(t, out, "Both fields required.")
	assert.Contains(t, out, "Access denied. Goodbye.")
}

func TestSessionRetryAfterUnknownKey(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{Key: "GOOD-KEY", Active: true})

	out := runSession(t, mock, defaultLimits(), "WRONG-KEY\nGOOD-KEY\nexit\n")

	assert.Contains(t, out, "Authentication failed: LICENSE_NOT_FOUND")
	assert.Contains(t, out, "License key not found. Double-check it.")
	assert.Contains(t, out, "Login successful!")
}

func TestSessionExpiredLicenseNoRetry(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{
		Key:       "OLD-KEY",
		Active:    true,
		ExpiresAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	out := runSession(t, mock, defaultLimits(), "OLD-KEY\n")

	assert.Contains(t, out, "Authentication failed: LICENSE_EXPIRED")
	assert.Contains(t, out, "License expired on: 2023-01-01 00:00:00 UTC")
	assert.Contains(t, out, "Access denied. Goodbye.")
	assert.NotContains(t, out, "Login successful!")
}

func TestSessionRegisterFlow(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{Key: "GOOD-KEY", Active: true})

	out := runSession(t, mock, defaultLimits(), "GOOD-KEY\nregister\nalice\nsecret\n")

	assert.Contains(t, out, "=== Register Username & Password ===")
	assert.Contains(t, out, "SUCCESS: Registered successfully")
}

func TestSessionInvalidMenuCommand(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{Key: "GOOD-KEY", Active: true})

	out := runSession(t, mock, defaultLimits(), "GOOD-KEY\ndance\nexit\n")

	assert.Contains(t, out, "Invalid command.")
	assert.Contains(t, out, "Bye!")
}

func TestSessionAttemptLimiter(t *testing.T) {
	mock := licensetest.NewServer()

	limits := config.Limits{AttemptsPerMinute: 0.001, Burst: 1}
	out := runSession(t, mock, limits, "WRONG-1\nWRONG-2\n")

	assert.Contains(t, out, "Authentication failed: LICENSE_NOT_FOUND")
	assert.Contains(t, out, "Too many attempts. Try again later.")
	assert.Contains(t, out, "Access denied. Goodbye.")
}

func TestSessionHWIDMismatchDetail(t *testing.T) {
	mock := licensetest.NewServer()
	mock.Seed(licensetest.License{Key: "BOUND-KEY", Active: true, HWID: "someone-else"})

	out := runSession(t, mock, defaultLimits(), "BOUND-KEY\n")

	assert.Contains(t, out, "Authentication failed: HWID_MISMATCH")
	assert.Contains(t, out, "Reset not allowed")
}
