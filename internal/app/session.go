// Package app drives the interactive authentication session: prompting for
// credentials, submitting them through the license client and presenting
// the classified outcome.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"keygate/internal/auth"
	"keygate/internal/client"
	"keygate/internal/config"
	"keygate/internal/fingerprint"
	"keygate/internal/infrastructure"
)

// LicenseClient is the slice of the network client the session needs.
type LicenseClient interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (auth.Outcome, error)
	Register(ctx context.Context, req auth.RegisterRequest) (auth.Outcome, error)
}

// ANSI sequences for pass/fail output
const (
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorReset = "\033[0m"
)

// Session is one interactive run of the client.
type Session struct {
	client    LicenseClient
	generator *fingerprint.Generator
	limiter   *rate.Limiter
	in        *bufio.Reader
	out       io.Writer
	color     bool
}

// NewSession wires a session over the given I/O streams.
func NewSession(cfg config.Limits, lc LicenseClient, gen *fingerprint.Generator, in io.Reader, out io.Writer) *Session {
	return &Session{
		client:    lc,
		generator: gen,
		limiter:   rate.NewLimiter(rate.Limit(cfg.AttemptsPerMinute/60.0), cfg.Burst),
		in:        bufio.NewReader(in),
		out:       out,
		color:     true,
	}
}

// DisableColor turns off ANSI coloring, for dumb terminals and tests.
func (s *Session) DisableColor() {
	s.color = false
}

// Run executes the login flow and, on success, the post-login menu.
// The returned error is nil both for a completed session and for a denied
// login; it is non-nil only for operational failures (transport, hardware).
func (s *Session) Run(ctx context.Context) error {
	device, err := s.generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("failed to derive device identifier: %w", err)
	}
	fmt.Fprintf(s.out, "Your HWID: %s\n\n", device)

	licenseKey, ok, err := s.login(ctx, device)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.out, "\nAccess denied. Goodbye.")
		return nil
	}

	fmt.Fprintln(s.out, "\nWelcome! You have access.")
	return s.menu(ctx, licenseKey)
}

// login prompts for credentials and authenticates, re-prompting on rejected
// attempts while the limiter permits.
func (s *Session) login(ctx context.Context, device fingerprint.DeviceID) (string, bool, error) {
	for {
		if !s.limiter.Allow() {
			fmt.Fprintln(s.out, "Too many attempts. Try again later.")
			return "", false, nil
		}

		fmt.Fprintln(s.out, "=== Login ===")
		key := s.prompt("License key (press ENTER for username/password): ")

		var username, password string
		if key == "" {
			username = s.prompt("Username: ")
			password = s.prompt("Password: ")
		}

		creds, err := auth.BuildCredentials(key, username, password, device)
		if err != nil {
			if auth.IsValidationError(err) {
				fmt.Fprintln(s.out, "Both fields required.")
				return "", false, nil
			}
			return "", false, err
		}

		attemptCtx := infrastructure.WithTraceID(ctx, infrastructure.GenerateTraceID())
		outcome, err := s.client.Authenticate(attemptCtx, creds)
		if err != nil {
			if client.IsTransportError(err) {
				fmt.Fprintf(s.out, "Connection error: %v\n", err)
				return "", false, nil
			}
			return "", false, err
		}

		if outcome.OK {
			fmt.Fprintln(s.out, s.paint(colorGreen, "\nLogin successful!"))
			return outcome.LicenseKey, true, nil
		}

		s.printFailure(outcome)
		if !s.shouldRetry(outcome.Reason) {
			return "", false, nil
		}
		fmt.Fprintln(s.out)
	}
}

// shouldRetry reports whether a fresh attempt could plausibly change the
// outcome. A mistyped key or password can; a bound or expired license
// cannot.
func (s *Session) shouldRetry(reason auth.Reason) bool {
	switch reason {
	case auth.ReasonLicenseNotFound, auth.ReasonInvalidCredentials:
		return true
	default:
		return false
	}
}

// menu runs the post-login loop: register an account or exit.
func (s *Session) menu(ctx context.Context, licenseKey string) error {
	for {
		cmd := strings.ToLower(s.prompt("\nType 'register' or 'exit': "))
		switch cmd {
		case "exit":
			fmt.Fprintln(s.out, "Bye!")
			return nil
		case "register":
			return s.register(ctx, licenseKey)
		default:
			fmt.Fprintln(s.out, "Invalid command.")
		}
	}
}

// register binds a username/password pair to the issued license key.
func (s *Session) register(ctx context.Context, licenseKey string) error {
	fmt.Fprintln(s.out, "\n=== Register Username & Password ===")
	username := s.prompt("Username: ")
	password := s.prompt("Password: ")

	req, err := auth.BuildRegistration(licenseKey, username, password)
	if err != nil {
		if auth.IsValidationError(err) {
			fmt.Fprintln(s.out, "Can't be empty.")
			return nil
		}
		return err
	}

	attemptCtx := infrastructure.WithTraceID(ctx, infrastructure.GenerateTraceID())
	outcome, err := s.client.Register(attemptCtx, req)
	if err != nil {
		if client.IsTransportError(err) || errors.Is(err, auth.ErrMalformedResponse) {
			fmt.Fprintf(s.out, "Register failed: %v\n", err)
			return nil
		}
		return err
	}

	if outcome.OK {
		fmt.Fprintln(s.out, s.paint(colorGreen, fmt.Sprintf("\nSUCCESS: %s", outcome.RawMessage)))
	} else {
		fmt.Fprintln(s.out, s.paint(colorRed, fmt.Sprintf("\nFAILED: %s", outcome.RawMessage)))
	}
	return nil
}

// printFailure presents a rejected attempt: the raw reason in red, then the
// specific human-readable explanation the classifier derived.
func (s *Session) printFailure(outcome auth.Outcome) {
	fmt.Fprintln(s.out, s.paint(colorRed, fmt.Sprintf("\nAuthentication failed: %s", outcome.RawMessage)))
	fmt.Fprintln(s.out, outcome.Detail)

	slog.Debug("Authentication attempt rejected",
		slog.String("reason", string(outcome.Reason)),
	)
}

func (s *Session) prompt(label string) string {
	fmt.Fprint(s.out, label)
	line, _ := s.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (s *Session) paint(color, text string) string {
	if !s.color {
		return text
	}
	return color + text + colorReset
}
