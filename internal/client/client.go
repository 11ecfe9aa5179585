// Package client talks to the licensing service. It sends the credential
// payload, receives the response envelope and hands it to the classifier;
// transport failures stay distinguishable from authenticated-but-rejected
// outcomes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"keygate/internal/auth"
	"keygate/internal/config"
	"keygate/internal/infrastructure"
)

// TransportError reports a failure to complete the exchange with the
// licensing service: connectivity, timeouts, or a non-OK HTTP status.
// It is never an authentication verdict.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: licensing service returned status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is a transport-level failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// Client is the HTTP client for the licensing service.
type Client struct {
	baseURL    string
	appID      string
	userAgent  string
	httpClient *http.Client
	classifier *auth.Classifier
}

// New creates a client from the service configuration.
func New(cfg config.Service) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		appID:      cfg.AppID,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		classifier: auth.NewClassifier(),
	}
}

// Authenticate submits the credential payload and classifies the response.
func (c *Client) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Outcome, error) {
	ctx, span := infrastructure.Tracer().Start(ctx, "client.Authenticate")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("auth.license_mode", creds.License != ""),
		attribute.String("auth.app_id", c.appID),
	)

	env, err := c.post(ctx, "/authenticate", creds)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return auth.Outcome{}, err
	}

	outcome, err := c.classifier.Classify(env)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return auth.Outcome{}, err
	}

	logger := infrastructure.LoggerWithContext(ctx)
	if outcome.OK {
		logger.InfoContext(ctx, "Authentication succeeded",
			slog.String("action", "authenticate"),
		)
	} else {
		logger.WarnContext(ctx, "Authentication rejected",
			slog.String("action", "authenticate"),
			slog.String("reason", string(outcome.Reason)),
			slog.String("message", outcome.RawMessage),
		)
	}

	return outcome, nil
}

// Register binds a username/password pair to an issued license key.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (auth.Outcome, error) {
	ctx, span := infrastructure.Tracer().Start(ctx, "client.Register")
	defer span.End()

	env, err := c.post(ctx, "/register", req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return auth.Outcome{}, err
	}

	// Registration reuses the same envelope contract but issues no key on
	// success, so a bare success envelope is enough here.
	if env.Success != nil && *env.Success {
		return auth.Outcome{OK: true, RawMessage: env.Message}, nil
	}

	return c.classifier.Classify(env)
}

// post performs one JSON exchange with the licensing service.
func (c *Client) post(ctx context.Context, path string, payload any) (auth.Envelope, error) {
	var env auth.Envelope

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return env, &TransportError{Op: path, Err: err}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return env, &TransportError{Op: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.appID != "" {
		req.Header.Set("X-App-ID", c.appID)
	}

	logger := infrastructure.LoggerWithContext(ctx)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "Licensing service request failed",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return env, &TransportError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, &TransportError{Op: path, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		logger.ErrorContext(ctx, "Licensing service returned error status",
			slog.String("endpoint", endpoint),
			slog.Int("status_code", resp.StatusCode),
		)
		return env, &TransportError{Op: path, StatusCode: resp.StatusCode}
	}

	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", auth.ErrMalformedResponse, err)
	}

	logger.DebugContext(ctx, "Licensing service exchange complete",
		slog.String("endpoint", endpoint),
		slog.Duration("duration", time.Since(start)),
	)

	return env, nil
}
