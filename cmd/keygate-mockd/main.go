// keygate-mockd runs the mock licensing service standalone, seeded with a
// couple of licenses, for developing against the client without network
// access to the real service.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"keygate/internal/licensetest"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	flag.Parse()

	srv := licensetest.NewServer()
	srv.Seed(licensetest.License{Key: "DEMO-0000-0000-0001", Active: true})
	srv.Seed(licensetest.License{
		Key:       "DEMO-EXPIRED-0002",
		Active:    true,
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	})
	srv.Seed(licensetest.License{
		Key:              "DEMO-BOUND-0003",
		Active:           true,
		HWID:             "another-device",
		ResetAllowed:     true,
		LastHWIDReset:    time.Now().Add(-30 * time.Second),
		ResetCooldownSec: 300,
	})

	slog.Info("Mock licensing service listening",
		slog.String("addr", *addr),
	)

	if err := http.ListenAndServe(*addr, srv.Handler()); err != nil {
		slog.Error("Server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
