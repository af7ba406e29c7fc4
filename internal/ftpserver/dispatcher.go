package ftpserver

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"camsentry/internal/auth"
	"camsentry/internal/jailfs"
)

// dispatch handles one received command line. The return value reports
// whether the session should keep running; false ends the connection.
// Unknown verbs get an explicit 502 and the session stays open.
func (s *session) dispatch(ctx context.Context, line string) bool {
	verb, arg := splitCommand(line)
	if verb == "" {
		s.reply(500, "Empty command")
		return true
	}
	s.lg.Debug("command received", "verb", verb)

	switch verb {
	case "USER":
		s.handleUser(arg)
	case "PASS":
		s.handlePass(arg)
	case "QUIT":
		s.reply(221, "Goodbye")
		return false
	case "SYST":
		s.reply(215, "UNIX Type: L8")
	case "FEAT":
		s.replyMulti(211, "Features:", []string{"PASV", "EPSV", "UTF8"}, "End")
	case "NOOP":
		s.reply(200, "OK")
	case "TYPE":
		s.handleType(arg)
	case "PWD":
		if s.requireAuth() {
			s.reply(257, `"`+s.cwd+`" is the current directory`)
		}
	case "CWD":
		s.handleCwd(arg)
	case "CDUP":
		s.handleCwd("..")
	case "MKD":
		s.handleMkd(arg)
	case "PASV":
		s.handlePasv()
	case "EPSV":
		s.handleEpsv()
	case "STOR":
		return s.handleStor(ctx, arg)
	default:
		s.reply(502, "Command not implemented")
	}
	return true
}

// splitCommand trims the line and splits it into an upper-cased verb and
// its raw argument. Arguments keep their internal spaces (file names).
func splitCommand(line string) (verb, arg string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ""
	}
	parts := strings.SplitN(line, " ", 2)
	verb = strings.ToUpper(parts[0])
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return verb, arg
}

// requireAuth replies 530 and returns false when the session has not
// completed the USER/PASS exchange.
func (s *session) requireAuth() bool {
	if s.state != stateAuthenticated {
		s.reply(530, "Please login with USER and PASS")
		return false
	}
	return true
}

func (s *session) handleUser(arg string) {
	if arg == "" {
		s.reply(501, "Missing user name")
		return
	}
	// A new USER resets any previous login.
	s.state = stateAwaitingPassword
	s.username = arg
	s.userID = ""
	s.jail = nil
	s.reply(331, "User name okay, need password")
}

func (s *session) handlePass(arg string) {
	if s.state != stateAwaitingPassword {
		s.reply(503, "Bad sequence of commands")
		return
	}
	id, u, ok := auth.Authenticate(s.srv.opt.Cfg.Users, s.username, arg)
	if !ok {
		// Failed login keeps the connection open for another attempt.
		s.state = stateUnauthenticated
		s.username = ""
		s.lg.Warn("authentication failed")
		s.reply(530, "Login incorrect")
		return
	}
	s.state = stateAuthenticated
	s.userID = id
	s.user = u
	s.jail = jailfs.New(s.srv.opt.FS, filepath.Join(s.srv.opt.Cfg.RootDir, id))
	s.cwd = "/"
	s.lg = s.lg.With("user", id)
	s.lg.Info("authenticated")
	s.reply(230, "User logged in, proceed")
}

func (s *session) handleType(arg string) {
	switch strings.ToUpper(arg) {
	case "I", "A":
		s.ttype = strings.ToUpper(arg)
		s.reply(200, "Type set to "+s.ttype)
	default:
		s.reply(504, "Type not supported")
	}
}

func (s *session) handleCwd(arg string) {
	if !s.requireAuth() {
		return
	}
	target := joinVirtual(s.cwd, arg)
	st, err := s.jail.Stat(target)
	if err != nil || !st.IsDir() {
		s.reply(550, "Failed to change directory")
		return
	}
	s.cwd = target
	s.reply(250, "Directory changed to "+target)
}

func (s *session) handleMkd(arg string) {
	if !s.requireAuth() {
		return
	}
	if arg == "" {
		s.reply(501, "Missing directory name")
		return
	}
	target := joinVirtual(s.cwd, arg)
	if err := s.jail.MkdirAll(target, 0o700); err != nil {
		s.reply(550, "Failed to create directory")
		return
	}
	s.reply(257, `"`+target+`" created`)
}

// joinVirtual resolves arg against the session's virtual working
// directory using slash semantics. The jail enforces containment; this
// only normalizes.
func joinVirtual(cwd, arg string) string {
	arg = strings.ReplaceAll(arg, "\\", "/")
	if strings.HasPrefix(arg, "/") {
		return path.Clean(arg)
	}
	return path.Clean(path.Join(cwd, arg))
}
