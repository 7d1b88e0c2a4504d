package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/mzyy94/airbeagle/internal/config"
	"github.com/mzyy94/airbeagle/internal/device"
	"github.com/mzyy94/airbeagle/internal/webui"
)

// ServiceType is the DNS-SD service type the HTTP API is advertised under.
const ServiceType = "_airbeagle._tcp"

func runServe(ctx context.Context, e *env, args []string) error {
	var g globals
	fs := newFlags(e, "serve", &g)
	port := fs.IntP("port", "p", 0, "HTTP listen port")
	noMDNS := fs.Bool("no-mdns", false, "do not advertise the API over mDNS")
	memory := fs.Bool("memory", false, "keep settings changes in memory only")
	heartbeat := fs.Duration("heartbeat", device.DefaultHeartbeatInterval, "device ping interval, 0 to disable")
	s, err := parse(fs, &g, args, 0)
	if err != nil {
		return err
	}
	if fs.Changed("port") {
		s.ListenPort = *port
	}

	var store *config.Store
	if *memory {
		store = config.NewMemoryStore(s)
	} else if store, err = config.NewStore(s.DataDir, s); err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	s = store.Get()
	log.Info().Str("path", store.Path()).Msg("settings loaded")

	dev := device.New(s.Device, s.Baud)
	defer dev.Disconnect()
	// The device may be switched off; it is connected again on first use.
	if err := dev.Connect(ctx); err != nil {
		log.Warn().Err(err).Str("device", s.Device).Msg("device not reachable yet")
	}
	if *heartbeat > 0 {
		hb := device.StartHeartbeat(ctx, dev, *heartbeat)
		defer hb.Stop()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.ListenPort))
	if err != nil {
		return err
	}
	listenPort := ln.Addr().(*net.TCPAddr).Port

	httpServer := &http.Server{
		Handler:           webui.LogMiddleware(webui.NewHandler(dev, store)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if !*noMDNS {
		mdnsServer, err := zeroconf.Register(
			s.ServiceName,
			ServiceType,
			"local.",
			listenPort,
			[]string{
				"txtvers=1",
				"path=/api",
				"device=" + s.Device,
			},
			nil,
		)
		if err != nil {
			ln.Close()
			return fmt.Errorf("mDNS registration: %w", err)
		}
		defer mdnsServer.Shutdown()
		log.Info().Str("name", s.ServiceName).Str("service", ServiceType).Msg("mDNS registered")
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).
			Str("url", "http://"+net.JoinHostPort(localIP(), strconv.Itoa(listenPort))+"/api/status").
			Msg("HTTP server starting")
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// localIP returns the address this host would use to reach the mDNS
// multicast group.
func localIP() string {
	conn, err := net.Dial("udp4", "224.0.0.251:5353")
	if err != nil {
		return "0.0.0.0"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}
