package ftpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"camsentry/internal/fsutil"
	"camsentry/internal/queue"
)

// dataAcceptTimeout bounds how long STOR waits for the camera to open the
// passive data connection after the 150 reply.
const dataAcceptTimeout = 30 * time.Second

func (s *session) handlePasv() {
	if !s.requireAuth() {
		return
	}
	ln, err := net.Listen("tcp4", ":0")
	if err != nil {
		s.reply(425, "Cannot open passive port")
		return
	}
	s.setDataListener(ln)
	port := ln.Addr().(*net.TCPAddr).Port
	ip := s.passiveIP()
	s.reply(227, fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d)",
		ip[0], ip[1], ip[2], ip[3], port>>8, port&0xff))
}

func (s *session) handleEpsv() {
	if !s.requireAuth() {
		return
	}
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		s.reply(425, "Cannot open passive port")
		return
	}
	s.setDataListener(ln)
	port := ln.Addr().(*net.TCPAddr).Port
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%d|)", port))
}

// passiveIP picks the address advertised in the PASV reply.
func (s *session) passiveIP() net.IP {
	if h := s.srv.opt.PublicHost; h != "" {
		if ip := net.ParseIP(h).To4(); ip != nil {
			return ip
		}
	}
	if a, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		if ip := a.IP.To4(); ip != nil {
			return ip
		}
	}
	return net.IPv4(127, 0, 0, 1).To4()
}

// handleStor receives one upload over the pending passive connection and
// enqueues it once the file is fully written and closed. Enqueueing blocks
// while the queue is full; a persistently full queue therefore stalls the
// camera's 226 reply rather than dropping the image.
func (s *session) handleStor(ctx context.Context, arg string) bool {
	if !s.requireAuth() {
		return true
	}
	if arg == "" {
		s.reply(501, "Missing file name")
		return true
	}
	ln := s.takeDataListener()
	if ln == nil {
		s.reply(425, "Use PASV or EPSV first")
		return true
	}
	defer ln.Close()

	s.reply(150, "Ok to send data")
	dconn, err := acceptData(ln)
	if err != nil {
		s.reply(425, "Failed to establish data connection")
		return true
	}
	defer dconn.Close()

	virtual := joinVirtual(s.cwd, arg)
	f, err := s.jail.Create(virtual)
	if err != nil {
		if errors.Is(err, fsutil.ErrPathTraversal) {
			s.reply(550, "Permission denied")
		} else {
			s.reply(451, "Failed to open file")
		}
		return true
	}
	n, copyErr := io.Copy(f, dconn)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = s.jail.Remove(virtual)
		s.lg.Warn("upload failed", "file", virtual, "error", errors.Join(copyErr, closeErr))
		s.reply(426, "Transfer failed")
		return true
	}

	real, err := s.jail.Resolve(virtual)
	if err != nil {
		s.reply(451, "Failed to resolve file")
		return true
	}
	if err := s.srv.opt.Queue.Put(ctx, queue.Item{Path: real, UserID: s.userID, User: s.user}); err != nil {
		// Only happens when the server is shutting down.
		s.reply(421, "Service shutting down")
		return false
	}
	s.lg.Info("upload received", "file", virtual, "bytes", n)
	s.reply(226, "Transfer complete")
	return true
}

func acceptData(ln net.Listener) (net.Conn, error) {
	if tl, ok := ln.(*net.TCPListener); ok {
		_ = tl.SetDeadline(time.Now().Add(dataAcceptTimeout))
	}
	return ln.Accept()
}
