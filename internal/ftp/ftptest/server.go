// Package ftptest provides an in-process FTP server that speaks the
// command subset skyctl uses, backed by an in-memory filesystem.
package ftptest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// Reply is a canned status line.
type Reply struct {
	Code int
	Text string
}

// Server is a loopback FTP server.  All methods are safe for
// concurrent use.
type Server struct {
	// Addr is the control channel address, "127.0.0.1:port".
	Addr string

	ln net.Listener
	wg sync.WaitGroup

	mu          sync.Mutex
	conns       map[net.Conn]struct{}
	files       map[string][]byte
	dirs        map[string]bool
	commands    []string
	failures    map[string]Reply
	greeting    Reply
	chatter     []Reply
	storTrailer bool
}

// NewServer starts a server on an ephemeral loopback port.  It panics
// if no port can be bound.
func NewServer() *Server {
	s, err := Listen("127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("ftptest: %v", err))
	}
	return s
}

// Listen starts a server on addr.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Addr:        ln.Addr().String(),
		ln:          ln,
		conns:       make(map[net.Conn]struct{}),
		files:       make(map[string][]byte),
		dirs:        map[string]bool{"/": true},
		failures:    make(map[string]Reply),
		greeting:    Reply{220, "skyctl test server ready"},
		storTrailer: true,
	}
	s.wg.Add(1)
	go s.accept()
	return s, nil
}

// Close stops the listener, drops every session and waits for them.
func (s *Server) Close() {
	s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// ── Configuration ────────────────────────────────────────────────────

// SetGreeting replaces the 220 greeting.
func (s *Server) SetGreeting(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeting = Reply{code, text}
}

// Fail makes every future verb command answer with code and text.
func (s *Server) Fail(verb string, code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToUpper(verb)] = Reply{code, text}
}

// ClearFailures removes all Fail overrides.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]Reply)
}

// SetPASVChatter makes PASV emit the given replies before the 227.
func (s *Server) SetPASVChatter(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatter = replies
}

// SetStorTrailer controls whether STOR sends "226" after the data
// channel closes.
func (s *Server) SetStorTrailer(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storTrailer = on
}

// ── Filesystem ───────────────────────────────────────────────────────

// PutFile seeds a file, creating its parent directories.
func (s *Server) PutFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p = path.Clean("/" + p)
	s.files[p] = append([]byte(nil), data...)
	s.mkdirAll(path.Dir(p))
}

// MkdirAll seeds a directory and its parents.
func (s *Server) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAll(path.Clean("/" + p))
}

// File returns a copy of the file at p.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean("/"+p)]
	return append([]byte(nil), data...), ok
}

// HasDir reports whether p is a directory.
func (s *Server) HasDir(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean("/"+p)]
}

// Commands returns every command line received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Count returns how many commands with the given verb were received.
func (s *Server) Count(verb string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.commands {
		v, _, _ := strings.Cut(c, " ")
		if strings.EqualFold(v, verb) {
			n++
		}
	}
	return n
}

func (s *Server) mkdirAll(p string) {
	for p != "/" && p != "." {
		s.dirs[p] = true
		p = path.Dir(p)
	}
}

// ── Sessions ─────────────────────────────────────────────────────────

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns[nc] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, nc)
				s.mu.Unlock()
				nc.Close()
			}()
			s.serve(nc)
		}()
	}
}

type session struct {
	s    *Server
	nc   net.Conn
	cwd  string
	pasv net.Listener
}

func (s *Server) serve(nc net.Conn) {
	ss := &session{s: s, nc: nc, cwd: "/"}
	defer ss.closePasv()

	s.mu.Lock()
	greeting := s.greeting
	s.mu.Unlock()
	ss.reply(greeting.Code, greeting.Text)
	if greeting.Code != 220 {
		return
	}

	r := bufio.NewReader(nc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		s.mu.Lock()
		s.commands = append(s.commands, line)
		fail, failing := s.failures[verb]
		s.mu.Unlock()

		if failing {
			if verb == "LIST" || verb == "STOR" {
				ss.closePasv()
			}
			ss.reply(fail.Code, fail.Text)
			continue
		}
		if !ss.handle(verb, arg) {
			return
		}
	}
}

func (ss *session) handle(verb, arg string) bool {
	s := ss.s
	switch verb {
	case "USER":
		ss.reply(200, "user ok")
	case "PASS":
		ss.reply(230, "logged in")
	case "TYPE":
		ss.reply(200, "type set to "+arg)
	case "PASV":
		ss.passive()
	case "MKD":
		p := ss.resolve(arg)
		s.mu.Lock()
		_, isFile := s.files[p]
		exists := s.dirs[p] || isFile
		if !exists {
			s.mkdirAll(p)
		}
		s.mu.Unlock()
		if exists {
			ss.reply(550, "file exists")
		} else {
			ss.reply(257, fmt.Sprintf("%q created", p))
		}
	case "CWD":
		p := ss.resolve(arg)
		s.mu.Lock()
		ok := s.dirs[p]
		s.mu.Unlock()
		if ok {
			ss.cwd = p
			ss.reply(250, "directory changed")
		} else {
			ss.reply(550, "no such directory")
		}
	case "DELE":
		p := ss.resolve(arg)
		s.mu.Lock()
		_, ok := s.files[p]
		delete(s.files, p)
		s.mu.Unlock()
		if ok {
			ss.reply(250, "deleted")
		} else {
			ss.reply(550, "no such file")
		}
	case "LIST":
		ss.list(ss.resolve(arg))
	case "STOR":
		ss.stor(ss.resolve(arg))
	case "QUIT":
		ss.reply(221, "bye")
		return false
	default:
		ss.reply(502, "command not implemented")
	}
	return true
}

func (ss *session) passive() {
	ss.closePasv()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		ss.reply(425, "cannot open passive listener")
		return
	}
	ss.pasv = ln

	ss.s.mu.Lock()
	chatter := ss.s.chatter
	ss.s.mu.Unlock()
	for _, c := range chatter {
		ss.reply(c.Code, c.Text)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	ss.reply(227, fmt.Sprintf("Entering Passive Mode (127,0,0,1,%d,%d).", port>>8, port&0xff))
}

func (ss *session) list(p string) {
	dc := ss.openData()
	if dc == nil {
		return
	}
	io.WriteString(dc, ss.s.listing(p)) //nolint:errcheck
	dc.Close()
	ss.reply(226, "transfer complete")
}

func (ss *session) stor(p string) {
	dc := ss.openData()
	if dc == nil {
		return
	}
	dc.SetReadDeadline(time.Now().Add(10 * time.Second)) //nolint:errcheck
	data, err := io.ReadAll(dc)
	dc.Close()
	if err != nil {
		ss.reply(426, "transfer aborted")
		return
	}

	s := ss.s
	s.mu.Lock()
	s.files[p] = data
	trailer := s.storTrailer
	s.mu.Unlock()

	if trailer {
		ss.reply(226, "transfer complete")
	}
}

// openData announces the transfer and accepts the client's data
// connection on the pending passive listener.
func (ss *session) openData() net.Conn {
	if ss.pasv == nil {
		ss.reply(425, "use PASV first")
		return nil
	}
	ln := ss.pasv
	ss.pasv = nil
	defer ln.Close()

	ss.reply(150, "opening data connection")
	ln.(*net.TCPListener).SetDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck
	dc, err := ln.Accept()
	if err != nil {
		ss.reply(425, "no data connection")
		return nil
	}
	return dc
}

func (ss *session) closePasv() {
	if ss.pasv != nil {
		ss.pasv.Close()
		ss.pasv = nil
	}
}

func (ss *session) reply(code int, text string) {
	fmt.Fprintf(ss.nc, "%d %s\r\n", code, text)
}

func (ss *session) resolve(p string) string {
	if p == "" {
		return ss.cwd
	}
	if !strings.HasPrefix(p, "/") {
		p = path.Join(ss.cwd, p)
	}
	return path.Clean(p)
}

// listing renders p in `ls -l` form.  A missing path lists as empty.
func (s *Server) listing(p string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if data, ok := s.files[p]; ok {
		return fileLine(path.Base(p), len(data))
	}
	if !s.dirs[p] {
		return ""
	}

	var names []string
	for f := range s.files {
		if path.Dir(f) == p {
			names = append(names, f)
		}
	}
	for d := range s.dirs {
		if d != "/" && path.Dir(d) == p {
			names = append(names, d)
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		if data, ok := s.files[n]; ok {
			b.WriteString(fileLine(path.Base(n), len(data)))
		} else {
			fmt.Fprintf(&b, "drwxrwxrwx 1 skyline skyline 0 Jan 01 00:00 %s\r\n", path.Base(n))
		}
	}
	return b.String()
}

func fileLine(name string, size int) string {
	return fmt.Sprintf("-rw-rw-rw- 1 skyline skyline %d Jan 01 00:00 %s\r\n", size, name)
}
