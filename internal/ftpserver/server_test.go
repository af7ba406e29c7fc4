// Package ftpserver tests exercise the real control channel over TCP:
// a throwaway server on a loopback port, a hand-rolled client, and an
// in-memory filesystem behind the jail.
package ftpserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"camsentry/internal/auth"
	"camsentry/internal/config"
	"camsentry/internal/queue"
)

var fastParams = auth.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startServer boots a server on a loopback port and tears it down with
// the test.
func startServer(t *testing.T) (*Server, *queue.Queue, afero.Fs) {
	t.Helper()
	hash, err := auth.HashPassword("secret", fastParams)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	cfg := &config.Config{
		RootDir: "/data",
		Users: map[string]config.UserConfig{
			"cam1": {Username: "cam1", PassHash: hash},
		},
	}
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/data/cam1", 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	q := queue.New(4)
	srv, err := New(Options{
		Addr:   "127.0.0.1:0",
		Cfg:    cfg,
		FS:     fs,
		Queue:  q,
		Grace:  time.Second,
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatalf("server never bound")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return srv, q, fs
}

// client is a minimal line-oriented FTP client for driving sessions.
type client struct {
	t *testing.T
	c net.Conn
	r *bufio.Reader
}

func dialServer(t *testing.T, addr string) *client {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	t.Cleanup(func() { c.Close() })
	return &client{t: t, c: c, r: bufio.NewReader(c)}
}

func (cl *client) readLine() string {
	cl.t.Helper()
	_ = cl.c.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := cl.r.ReadString('\n')
	if err != nil {
		cl.t.Fatalf("read reply: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// cmd sends one command and returns the single-line reply.
func (cl *client) cmd(line string) string {
	cl.t.Helper()
	if _, err := fmt.Fprintf(cl.c, "%s\r\n", line); err != nil {
		cl.t.Fatalf("send %q: %v", line, err)
	}
	return cl.readLine()
}

// expect sends a command and asserts the reply's three-digit code.
func (cl *client) expect(code, line string) string {
	cl.t.Helper()
	reply := cl.cmd(line)
	if !strings.HasPrefix(reply, code+" ") {
		cl.t.Fatalf("%q: expected %s reply, got %q", line, code, reply)
	}
	return reply
}

// login completes the USER/PASS exchange for cam1.
func (cl *client) login() {
	cl.t.Helper()
	cl.expect("331", "USER cam1")
	cl.expect("230", "PASS secret")
}

// pasvPort issues PASV and parses the advertised data port.
func (cl *client) pasvPort() int {
	cl.t.Helper()
	reply := cl.expect("227", "PASV")
	open := strings.Index(reply, "(")
	closing := strings.Index(reply, ")")
	if open < 0 || closing < open {
		cl.t.Fatalf("malformed passive reply: %q", reply)
	}
	var h1, h2, h3, h4, p1, p2 int
	if _, err := fmt.Sscanf(reply[open:closing+1], "(%d,%d,%d,%d,%d,%d)", &h1, &h2, &h3, &h4, &p1, &p2); err != nil {
		cl.t.Fatalf("parse passive reply %q: %v", reply, err)
	}
	return p1<<8 | p2
}

func TestBannerAndLogin(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())

	if banner := cl.readLine(); !strings.HasPrefix(banner, "220 ") {
		t.Fatalf("expected 220 banner, got %q", banner)
	}
	cl.expect("331", "USER cam1")
	// A failed password keeps the connection open for another attempt.
	cl.expect("530", "PASS wrong")
	cl.expect("331", "USER cam1")
	cl.expect("230", "PASS secret")
	cl.expect("221", "QUIT")
}

func TestCommandsBeforeLogin(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()

	cl.expect("503", "PASS secret") // no USER yet
	cl.expect("530", "PWD")
	cl.expect("530", "PASV")
	cl.expect("530", "STOR a.jpg")
	// Queries that carry no user state work unauthenticated.
	cl.expect("215", "SYST")
	cl.expect("200", "NOOP")
}

func TestSessionCommands(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()
	cl.login()

	if reply := cl.expect("257", "PWD"); !strings.Contains(reply, `"/"`) {
		t.Fatalf("unexpected PWD reply: %q", reply)
	}
	cl.expect("200", "TYPE I")
	cl.expect("504", "TYPE E")
	cl.expect("502", "ACCT noise")
	cl.expect("502", "RETR a.jpg")

	cl.expect("257", "MKD sub")
	cl.expect("250", "CWD sub")
	if reply := cl.expect("257", "PWD"); !strings.Contains(reply, `"/sub"`) {
		t.Fatalf("unexpected PWD reply: %q", reply)
	}
	cl.expect("250", "CDUP")
	cl.expect("550", "CWD nosuchdir")
}

// TestFeatMultiline checks the dash-continued reply form: "211-" header,
// space-prefixed feature lines, "211 " terminator.
func TestFeatMultiline(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()

	first := cl.cmd("FEAT")
	if !strings.HasPrefix(first, "211-") {
		t.Fatalf("expected 211- header, got %q", first)
	}
	var features []string
	for {
		line := cl.readLine()
		if strings.HasPrefix(line, "211 ") {
			break
		}
		if !strings.HasPrefix(line, " ") {
			t.Fatalf("interior line not space-prefixed: %q", line)
		}
		features = append(features, strings.TrimSpace(line))
	}
	for _, want := range []string{"PASV", "EPSV", "UTF8"} {
		found := false
		for _, f := range features {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("feature %s missing from %v", want, features)
		}
	}
}

func TestStorUploadEnqueuesItem(t *testing.T) {
	srv, q, fs := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()
	cl.login()

	port := cl.pasvPort()
	cl.expect("150", "STOR a.jpg")

	dconn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 2*time.Second)
	if err != nil {
		t.Fatalf("dial data port: %v", err)
	}
	payload := []byte("not really a jpeg")
	if _, err := dconn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	dconn.Close()

	if reply := cl.readLine(); !strings.HasPrefix(reply, "226 ") {
		t.Fatalf("expected 226 after upload, got %q", reply)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	it, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("queue.Get: %v", err)
	}
	if it.Path != "/data/cam1/a.jpg" {
		t.Fatalf("unexpected item path %q", it.Path)
	}
	if it.UserID != "cam1" || it.User.Username != "cam1" {
		t.Fatalf("unexpected item owner %q/%q", it.UserID, it.User.Username)
	}
	got, err := afero.ReadFile(fs, it.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("stored content mismatch: %q", got)
	}
}

func TestStorWithoutPassiveMode(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()
	cl.login()

	cl.expect("425", "STOR a.jpg")
}

func TestEpsvUpload(t *testing.T) {
	srv, q, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()
	cl.login()

	reply := cl.expect("229", "EPSV")
	var port int
	if _, err := fmt.Sscanf(reply[strings.Index(reply, "(|||"):], "(|||%d|)", &port); err != nil {
		t.Fatalf("parse EPSV reply %q: %v", reply, err)
	}
	cl.expect("150", "STOR b.jpg")

	dconn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 2*time.Second)
	if err != nil {
		t.Fatalf("dial data port: %v", err)
	}
	fmt.Fprint(dconn, "frame")
	dconn.Close()

	if reply := cl.readLine(); !strings.HasPrefix(reply, "226 ") {
		t.Fatalf("expected 226 after upload, got %q", reply)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	it, err := q.Get(ctx)
	if err != nil {
		t.Fatalf("queue.Get: %v", err)
	}
	if it.Path != "/data/cam1/b.jpg" {
		t.Fatalf("unexpected item path %q", it.Path)
	}
}

func TestActiveSessionsRegistry(t *testing.T) {
	srv, _, _ := startServer(t)
	cl := dialServer(t, srv.Addr())
	cl.readLine()

	deadline := time.Now().Add(2 * time.Second)
	for len(srv.ActiveSessions()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("session never registered: %v", srv.ActiveSessions())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cl.expect("221", "QUIT")
	deadline = time.Now().Add(2 * time.Second)
	for len(srv.ActiveSessions()) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session never deregistered: %v", srv.ActiveSessions())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for empty options")
	}
	if _, err := New(Options{Addr: ":0"}); err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}
