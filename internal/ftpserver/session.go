package ftpserver

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"camsentry/internal/config"
	"camsentry/internal/jailfs"
)

// Session authentication states.
type state int

const (
	stateUnauthenticated state = iota
	stateAwaitingPassword
	stateAuthenticated
)

// session tracks one control connection. It is owned by its handler
// goroutine; only close may be called from outside it.
type session struct {
	srv  *Server
	id   string
	conn net.Conn
	r    *bufio.Reader
	lg   *slog.Logger

	state    state
	username string
	userID   string
	user     config.UserConfig
	jail     *jailfs.FS
	cwd      string
	ttype    string

	mu     sync.Mutex
	dataLn net.Listener
	closed bool
}

func newSession(srv *Server, conn net.Conn) *session {
	id := uuid.NewString()
	return &session{
		srv:   srv,
		id:    id,
		conn:  conn,
		r:     bufio.NewReader(conn),
		lg:    srv.opt.Logger.With("session", id, "peer", conn.RemoteAddr().String()),
		cwd:   "/",
		ttype: "I",
	}
}

// serve reads and dispatches commands until the peer disconnects, QUIT is
// received, or the server closes the connection during shutdown.
func (s *session) serve(ctx context.Context) {
	s.reply(220, "camsentry ready")
	for {
		line, err := s.r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if !s.dispatch(ctx, line) {
			return
		}
	}
}

// close shuts the control connection and any pending data listener. Safe
// to call more than once and from the server's shutdown path.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.dataLn != nil {
		_ = s.dataLn.Close()
		s.dataLn = nil
	}
	_ = s.conn.Close()
}

// reply writes a single-line three-digit response.
func (s *session) reply(code int, msg string) {
	fmt.Fprintf(s.conn, "%d %s\r\n", code, msg)
}

// replyMulti writes a dash-continued multi-line response: the first line
// is "NNN-", interior lines are space-prefixed, the last line is "NNN ".
func (s *session) replyMulti(code int, header string, lines []string, footer string) {
	fmt.Fprintf(s.conn, "%d-%s\r\n", code, header)
	for _, l := range lines {
		fmt.Fprintf(s.conn, " %s\r\n", l)
	}
	fmt.Fprintf(s.conn, "%d %s\r\n", code, footer)
}

// setDataListener replaces any pending passive listener.
func (s *session) setDataListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataLn != nil {
		_ = s.dataLn.Close()
	}
	s.dataLn = ln
}

// takeDataListener hands the pending passive listener to a transfer.
func (s *session) takeDataListener() net.Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	ln := s.dataLn
	s.dataLn = nil
	return ln
}
