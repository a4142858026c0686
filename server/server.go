// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package server is the lifecycle orchestrator: start, connect, stop,
// destroy. It owns every sub-resource (tunnel, agent process, watchdog,
// sockets) and the transactional start/stop state machine that composes
// them.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/multierr"

	"go.scrcpygo.dev/mirrorclient/agentparams"
	"go.scrcpygo.dev/mirrorclient/bridge"
	"go.scrcpygo.dev/mirrorclient/errs"
	"go.scrcpygo.dev/mirrorclient/httpctl"
	"go.scrcpygo.dev/mirrorclient/internal/closeonce"
	"go.scrcpygo.dev/mirrorclient/internal/logger"
	"go.scrcpygo.dev/mirrorclient/internal/watchdog"
	"go.scrcpygo.dev/mirrorclient/netio"
	"go.scrcpygo.dev/mirrorclient/tunnel"
)

// ServerParams re-exports agentparams.ServerParams: the two packages
// share one type so agentparams.Argv never needs to import server.
type ServerParams = agentparams.ServerParams

// PortRange re-exports agentparams.PortRange for the same reason.
type PortRange = agentparams.PortRange

const agentVersion = "1.0"

// remoteArtifactPath is the fixed on-device location the agent artifact
// is pushed to before being launched via the bridge's shell subcommand.
const remoteArtifactPath = "/data/local/tmp/scrcpy-server"

// forwardConnectAttempts/forwardConnectDelay tune ConnectWithRetry for the
// forward path and directConnectAttempts/directConnectDelay for the direct
// path (the reverse path's own accept has no retry: it simply blocks on
// Accept).
const (
	forwardConnectAttempts = 100
	forwardConnectDelay    = 100 * time.Millisecond

	directConnectAttempts = 12
	directConnectDelay    = 1 * time.Second

	stopWatchdogBound = 1 * time.Second
)

// Server is a single-instance-per-session orchestrator. Exactly two
// goroutines touch it after Start returns: the caller, and the watchdog
// spawned by Start.
type Server struct {
	mu sync.Mutex

	bridge bridge.Bridge

	serial string
	url    string // non-empty in direct mode
	addr   string // direct-mode IPv4

	params ServerParams
	direct bool

	agentProcess bridge.Process
	watchdog     *watchdog.Watchdog

	terminated       bool
	terminatedSignal *sync.Cond

	listenSock   net.Listener
	listenClosed closeonce.Once
	videoSock    net.Conn
	controlSock  net.Conn

	mode         tunnel.Mode
	localPort    uint16
	hasLocalPort bool
	tunnelActive bool
}

// New returns an Initialized Server using the default ADB-backed bridge.
func New() *Server {
	return NewWithBridge(&bridge.ADBBridge{})
}

// NewWithBridge returns an Initialized Server using the given Bridge
// implementation, primarily for tests that supply a fake.
func NewWithBridge(b bridge.Bridge) *Server {
	s := &Server{bridge: b}
	s.terminatedSignal = sync.NewCond(&s.mu)
	return s
}

// Params returns the negotiated ServerParams from the most recent Start.
func (s *Server) Params() ServerParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// LocalPort returns the tunnel's negotiated local port, if any was
// negotiated (reverse and forward modes only).
func (s *Server) LocalPort() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localPort, s.hasLocalPort
}

// DirectParams configures Start for direct mode: url is the remote
// endpoint's base URL, addr its IPv4 for the data-plane connect.
type DirectParams struct {
	URL  string
	Addr string
}

// Start brings the server from Initialized to Started: for the bridge
// path it pushes the agent artifact, establishes a tunnel, launches the
// agent, and spawns a watchdog; for the direct path it issues the
// HttpCtl start call. Partial failures unwind everything acquired so
// far, in reverse order.
func (s *Server) Start(ctx context.Context, serial string, p ServerParams, direct *DirectParams) error {
	s.mu.Lock()
	s.serial = serial
	s.params = p
	s.mu.Unlock()

	if direct != nil {
		return s.startDirect(ctx, direct, p)
	}
	return s.startBridged(ctx, serial, p)
}

func (s *Server) startBridged(ctx context.Context, serial string, p ServerParams) (err error) {
	log := logger.FromContext(ctx)

	artifactPath, err := agentparams.ResolveArtifactPath(envLookup, execDir)
	if err != nil {
		return err
	}
	if err := s.bridge.Push(ctx, serial, artifactPath, remoteArtifactPath); err != nil {
		return err
	}

	mode, listener, err := tunnel.Establish(ctx, s.bridge, serial, tunnel.PortRange(p.PortRange), p.ForceADBForward)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = mode
	s.listenSock = listener
	switch m := mode.(type) {
	case tunnel.ReverseMode:
		s.localPort, s.hasLocalPort = m.LocalPort, true
	case tunnel.ForwardMode:
		s.localPort, s.hasLocalPort = m.LocalPort, true
	}
	s.mu.Unlock()

	_, tunnelForward := mode.(tunnel.ForwardMode)
	argv := agentparams.Argv(agentVersion, p, tunnelForward)
	proc, err := s.bridge.ExecAgent(ctx, serial, argv)
	if err != nil {
		s.unwindTunnel(ctx, serial)
		return err
	}
	s.mu.Lock()
	s.agentProcess = proc
	s.mu.Unlock()

	s.watchdog = watchdog.Spawn(ctx, proc, s.onTerminated, s.closeListenSock)

	s.mu.Lock()
	s.tunnelActive = true
	s.mu.Unlock()

	log.Infof("server: started (serial=%s mode=%T)", serial, mode)
	return nil
}

func (s *Server) startDirect(ctx context.Context, d *DirectParams, p ServerParams) error {
	s.mu.Lock()
	s.url = d.URL
	s.addr = d.Addr
	s.direct = true
	s.mu.Unlock()

	argv := agentparams.Argv(agentVersion, p, true)
	if err := httpctl.Start(ctx, d.URL, argv); err != nil {
		return err
	}

	// Direct mode has no local process handle, so no watchdog is spawned;
	// listenSock is never opened here either, so there is nothing for one
	// to force-close.
	s.mu.Lock()
	s.mode = tunnel.DirectMode{}
	s.tunnelActive = true
	s.mu.Unlock()

	logger.FromContext(ctx).Infof("server: started (direct, url=%s)", d.URL)
	return nil
}

// unwindTunnel reverses tunnel establishment when a later start step
// fails: first-CAS-close the listener (reverse mode only), then disable
// the tunnel registration.
func (s *Server) unwindTunnel(ctx context.Context, serial string) {
	s.closeListenSock()
	if s.mode != nil {
		if err := s.mode.Disable(ctx, s.bridge, serial); err != nil {
			logger.FromContext(ctx).Warnf("server: tunnel disable during unwind: %v", err)
		}
	}
}

func (s *Server) closeListenSock() {
	s.listenClosed.TryClose(func() {
		s.mu.Lock()
		l := s.listenSock
		s.mu.Unlock()
		if l != nil {
			netio.ShutdownAndClose(l)
		}
	})
}

// onTerminated is invoked by the watchdog the moment it observes the
// agent process exit.
func (s *Server) onTerminated() {
	s.mu.Lock()
	s.terminated = true
	s.terminatedSignal.Broadcast()
	s.mu.Unlock()
}

// Connect materializes the two data sockets: video strictly before
// control. On failure of the second socket, the first is left for
// Stop/Destroy to release; no reconnection is attempted.
func (s *Server) Connect(ctx context.Context) (video, control net.Conn, err error) {
	s.mu.Lock()
	direct := s.direct
	addr := s.addr
	serial := s.serial
	mode := s.mode
	localPort := s.localPort
	portFirst := s.params.PortRange.First
	listener := s.listenSock
	s.mu.Unlock()

	// Whatever sockets were actually materialized are handed to Stop/Destroy
	// for release, even on partial failure (e.g. video connected but control
	// did not): named returns are fixed by the time this defer runs.
	defer func() {
		s.mu.Lock()
		s.videoSock = video
		s.controlSock = control
		s.mu.Unlock()
	}()

	switch {
	case direct:
		// Direct mode dials PortRange.First on the remote address: the same
		// field names local candidate ports in the bridged modes.
		video, err = netio.ConnectWithRetry(ctx, addr, portFirst, directConnectAttempts, directConnectDelay)
		if err != nil {
			return nil, nil, err
		}
		control, err = netio.Connect(ctx, addr, portFirst)
		if err != nil {
			return video, nil, err
		}
		return video, control, nil

	case isForward(mode):
		video, err = netio.ConnectWithRetry(ctx, tunnel.LoopbackV4, localPort, forwardConnectAttempts, forwardConnectDelay)
		if err != nil {
			return nil, nil, err
		}
		control, err = netio.Connect(ctx, tunnel.LoopbackV4, localPort)
		if err != nil {
			return video, nil, err
		}
		if err := mode.Disable(ctx, s.bridge, serial); err != nil {
			logger.FromContext(ctx).Warnf("server: forward tunnel disable: %v", err)
		}
		s.mu.Lock()
		s.tunnelActive = false
		s.mu.Unlock()
		return video, control, nil

	default: // reverse
		video, err = netio.Accept(ctx, listener)
		if err != nil {
			return nil, nil, &errs.NetworkError{Op: "connect video", Err: err}
		}
		control, err = netio.Accept(ctx, listener)
		if err != nil {
			return video, nil, &errs.NetworkError{Op: "connect control", Err: err}
		}
		s.closeListenSock()
		return video, control, nil
	}
}

func isForward(m tunnel.Mode) bool {
	_, ok := m.(tunnel.ForwardMode)
	return ok
}

// Stop releases sockets, removes the tunnel registration, and waits on
// the agent process. It never fails: every sub-result is combined and
// logged at warn; stop and destroy are always best-effort.
func (s *Server) Stop(ctx context.Context) {
	log := logger.FromContext(ctx)
	var combined error

	s.closeListenSock()

	s.mu.Lock()
	video, control := s.videoSock, s.controlSock
	s.videoSock, s.controlSock = nil, nil
	s.mu.Unlock()
	if video != nil {
		combined = multierr.Append(combined, netio.ShutdownAndClose(video))
	}
	if control != nil {
		combined = multierr.Append(combined, netio.ShutdownAndClose(control))
	}

	s.mu.Lock()
	direct, tunnelActive, mode, serial := s.direct, s.tunnelActive, s.mode, s.serial
	s.tunnelActive = false
	s.mu.Unlock()

	if direct {
		combined = multierr.Append(combined, httpctl.Stop(ctx, s.url))
	} else if tunnelActive && mode != nil {
		combined = multierr.Append(combined, mode.Disable(ctx, s.bridge, serial))
	}

	s.mu.Lock()
	terminated := s.terminated
	timedOut := false
	if !terminated && !direct {
		timedOut = !s.waitTerminatedLocked(stopWatchdogBound)
	}
	proc := s.agentProcess
	s.mu.Unlock()

	if timedOut && proc != nil {
		// Known race: the OS PID may have been reused between timeout
		// expiry and terminate. A principled fix needs pidfd-equivalent
		// primitives outside this core's scope.
		combined = multierr.Append(combined, &errs.TimeoutError{Op: "stop", Err: proc.Terminate(ctx)})
	}

	if s.watchdog != nil {
		s.watchdog.Wait()
	}

	if combined != nil {
		log.Warnf("server: stop: %v", combined)
	}
}

// waitTerminatedLocked waits up to d for s.terminated to become true.
// Callers must hold s.mu; it is released while waiting and re-acquired on
// return (via sync.Cond semantics), so the lock discipline on entry/exit
// is preserved for the caller.
func (s *Server) waitTerminatedLocked(d time.Duration) bool {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		close(done)
		s.terminatedSignal.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	for !s.terminated {
		select {
		case <-done:
			return s.terminated
		default:
		}
		s.terminatedSignal.Wait()
	}
	return true
}

// Destroy clears the session's serial and URL. Safe to call on a
// never-started (only New'd) instance.
func (s *Server) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serial = ""
	s.url = ""
}
