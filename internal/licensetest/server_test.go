package licensetest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, handler http.Handler, path string, payload any) envelope {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRegisterDuplicateUsername(t *testing.T) {
	srv := NewServer()
	srv.Seed(License{Key: "KEY-1", Active: true})
	handler := srv.Handler()

	env := postJSON(t, handler, "/register", map[string]string{
		"license": "KEY-1", "username": "alice", "password": "secret",
	})
	require.True(t, env.Success)

	env = postJSON(t, handler, "/register", map[string]string{
		"license": "KEY-1", "username": "alice", "password": "other",
	})
	assert.False(t, env.Success)
	assert.Equal(t, "USERNAME_TAKEN", env.Message)
}

func TestAuthenticateDeviceBoundToOtherLicense(t *testing.T) {
	srv := NewServer()
	srv.Seed(License{Key: "KEY-1", Active: true, HWID: "device-1"})
	srv.Seed(License{Key: "KEY-2", Active: true})
	handler := srv.Handler()

	env := postJSON(t, handler, "/authenticate", map[string]string{
		"license": "KEY-2", "hwid": "device-1",
	})

	assert.False(t, env.Success)
	assert.Equal(t, "DEVICE_ALREADY_REGISTERED_WITH_OTHER_LICENSE", env.Message)
}

func TestAuthenticateInactiveLicense(t *testing.T) {
	srv := NewServer()
	srv.Seed(License{Key: "KEY-1", Active: false})

	env := postJSON(t, srv.Handler(), "/authenticate", map[string]string{
		"license": "KEY-1", "hwid": "device-1",
	})

	assert.False(t, env.Success)
	assert.Equal(t, "LICENSE_NOT_ACTIVE", env.Message)
}

func TestAuthenticateBindsFirstDevice(t *testing.T) {
	srv := NewServer()
	srv.Seed(License{Key: "KEY-1", Active: true})
	handler := srv.Handler()

	env := postJSON(t, handler, "/authenticate", map[string]string{
		"license": "KEY-1", "hwid": "device-1",
	})
	require.True(t, env.Success)

	env = postJSON(t, handler, "/authenticate", map[string]string{
		"license": "KEY-1", "hwid": "device-2",
	})
	assert.False(t, env.Success)
	assert.Equal(t, "HWID_MISMATCH", env.Message)
}
