package auth

import (
	"strings"

	"keygate/internal/fingerprint"
)

// Credentials is the outbound authentication payload. Exactly one of the
// license key or the username/password pair is populated; the device
// identifier is always attached because the service binds licenses to
// devices, not accounts alone.
type Credentials struct {
	License  string `json:"license,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	HWID     string `json:"hwid"`
}

// RegisterRequest binds a username/password pair to an issued license key.
// The service identifies the device through the license, so no hwid field
// is sent for this operation.
type RegisterRequest struct {
	License  string `json:"license"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// BuildCredentials validates and assembles the authentication payload.
// A non-empty license key selects license mode and the username/password
// inputs are ignored; otherwise both username and password are required.
// All fields are trimmed of surrounding whitespace first. Pure
// construction, no I/O.
func BuildCredentials(licenseKey, username, password string, device fingerprint.DeviceID) (Credentials, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if licenseKey != "" {
		return Credentials{License: licenseKey, HWID: string(device)}, nil
	}

	if username == "" {
		return Credentials{}, &ValidationError{Field: "username"}
	}
	if password == "" {
		return Credentials{}, &ValidationError{Field: "password"}
	}

	return Credentials{Username: username, Password: password, HWID: string(device)}, nil
}

// BuildRegistration validates and assembles a registration payload.
func BuildRegistration(licenseKey, username, password string) (RegisterRequest, error) {
	licenseKey = strings.TrimSpace(licenseKey)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if licenseKey == "" {
		return RegisterRequest{}, &ValidationError{Field: "license"}
	}
	if username == "" {
		return RegisterRequest{}, &ValidationError{Field: "username"}
	}
	if password == "" {
		return RegisterRequest{}, &ValidationError{Field: "password"}
	}

	return RegisterRequest{License: licenseKey, Username: username, Password: password}, nil
}
