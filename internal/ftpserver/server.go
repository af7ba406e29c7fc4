// Package ftpserver implements the camera-facing ingestion server: a
// minimal line-oriented FTP control channel with passive-mode uploads.
// Completed uploads are handed to the work queue together with a snapshot
// of the owning user's settings. The full FTP command set is deliberately
// out of scope; cameras need USER/PASS, a few queries, and STOR.
package ftpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/config"
	"camsentry/internal/queue"
)

// Options configures the listener, storage, and the upload hand-off.
type Options struct {
	Addr string
	// PublicHost is the IP advertised in PASV replies. When empty the
	// control connection's local address is used.
	PublicHost string
	Cfg        *config.Config
	FS         afero.Fs
	Queue      *queue.Queue
	// Grace bounds how long shutdown waits for in-flight sessions before
	// force-closing them.
	Grace  time.Duration
	Logger *slog.Logger
}

// Server accepts camera connections and runs one session per connection.
type Server struct {
	opt Options

	mu       sync.Mutex
	ln       net.Listener
	sessions map[string]*session
	wg       sync.WaitGroup
}

func New(opt Options) (*Server, error) {
	if opt.Addr == "" {
		return nil, errors.New("addr is required")
	}
	if opt.Cfg == nil || opt.FS == nil || opt.Queue == nil || opt.Logger == nil {
		return nil, errors.New("cfg, fs, queue, and logger are required")
	}
	if opt.Grace == 0 {
		opt.Grace = 5 * time.Second
	}
	return &Server{opt: opt, sessions: make(map[string]*session)}, nil
}

// ListenAndServe binds the control port and accepts connections until ctx
// is done, then shuts down gracefully. A bind failure is returned to the
// caller and is fatal to the process.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.opt.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.opt.Logger.Info("ingestion server listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return s.shutdown()
			}
			return err
		}
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

// Addr returns the bound listener address, for callers that used ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// ActiveSessions lists the peer addresses of live sessions.
func (s *Server) ActiveSessions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]string, 0, len(s.sessions))
	for p := range s.sessions {
		peers = append(peers, p)
	}
	sort.Strings(peers)
	return peers
}

// handle runs one connection's session. The registry entry is removed on
// every exit path, normal or not.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	peer := conn.RemoteAddr().String()
	sess := newSession(s, conn)
	s.mu.Lock()
	s.sessions[peer] = sess
	s.mu.Unlock()
	s.opt.Logger.Info("connection accepted", "peer", peer, "session", sess.id)

	defer func() {
		s.mu.Lock()
		delete(s.sessions, peer)
		s.mu.Unlock()
		sess.close()
		s.opt.Logger.Info("connection closed", "peer", peer, "session", sess.id)
	}()

	sess.serve(ctx)
}

// shutdown waits for in-flight sessions up to the grace period, then
// force-closes whatever is left.
func (s *Server) shutdown() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.opt.Grace):
		s.opt.Logger.Warn("grace period elapsed, force-closing sessions")
		s.mu.Lock()
		for _, sess := range s.sessions {
			sess.close()
		}
		s.mu.Unlock()
		<-done
	}
	return nil
}
