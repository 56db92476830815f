package notification_test

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// --- in-process SMTP server ---

type receivedMail struct {
	From    string
	To      []string
	Data    string
	OverTLS bool
	Auth    string
}

type fakeSMTPServer struct {
	ln             net.Listener
	tlsConfig      *tls.Config
	offerStartTLS  bool
	rejectStartTLS bool
	rejectAuth     bool

	mu       sync.Mutex
	mails    []receivedMail
	commands []string
	wg       sync.WaitGroup
}

type fakeOption func(*fakeSMTPServer)

func offerStartTLS() fakeOption  { return func(s *fakeSMTPServer) { s.offerStartTLS = true } }
func rejectStartTLS() fakeOption { return func(s *fakeSMTPServer) { s.offerStartTLS, s.rejectStartTLS = true, true } }
func rejectAuth() fakeOption     { return func(s *fakeSMTPServer) { s.rejectAuth = true } }

// testCertificates borrows the self-signed certificate httptest generates for
// 127.0.0.1 and returns a server config plus a client config trusting it.
func testCertificates(t *testing.T) (server *tls.Config, client *tls.Config) {
	t.Helper()
	ts := httptest.NewTLSServer(http.NotFoundHandler())
	t.Cleanup(ts.Close)

	pool := x509.NewCertPool()
	pool.AddCert(ts.Certificate())
	return &tls.Config{Certificates: ts.TLS.Certificates, MinVersion: tls.VersionTLS12},
		&tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
}

func newFakeSMTPServer(t *testing.T, implicitTLS bool, serverTLS *tls.Config, opts ...fakeOption) *fakeSMTPServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	if implicitTLS {
		ln = tls.NewListener(ln, serverTLS)
	}

	s := &fakeSMTPServer{ln: ln, tlsConfig: serverTLS}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(conn, implicitTLS)
			}()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		s.wg.Wait()
	})
	return s
}

func (s *fakeSMTPServer) port() int {
	_, p, _ := net.SplitHostPort(s.ln.Addr().String())
	n, _ := strconv.Atoi(p)
	return n
}

func (s *fakeSMTPServer) received() []receivedMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]receivedMail(nil), s.mails...)
}

func (s *fakeSMTPServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *fakeSMTPServer) handle(conn net.Conn, overTLS bool) {
	defer func() { _ = conn.Close() }()
	tc := textproto.NewConn(conn)
	_ = tc.PrintfLine("220 fake.local ESMTP")

	var cur receivedMail
	for {
		line, err := tc.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		s.mu.Lock()
		s.commands = append(s.commands, verb)
		s.mu.Unlock()

		switch verb {
		case "EHLO":
			_ = tc.PrintfLine("250-fake.local")
			if s.offerStartTLS && !overTLS {
				_ = tc.PrintfLine("250-STARTTLS")
			}
			_ = tc.PrintfLine("250 AUTH PLAIN LOGIN")
		case "HELO", "NOOP", "RSET":
			_ = tc.PrintfLine("250 ok")
		case "STARTTLS":
			if s.rejectStartTLS {
				_ = tc.PrintfLine("454 4.7.0 TLS not available")
				continue
			}
			_ = tc.PrintfLine("220 ready to start TLS")
			tlsConn := tls.Server(conn, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			tc = textproto.NewConn(tlsConn)
			overTLS = true
		case "AUTH":
			if s.rejectAuth {
				_ = tc.PrintfLine("535 5.7.8 authentication failed")
				continue
			}
			fields := strings.Fields(line)
			if len(fields) == 3 {
				decoded, _ := base64.StdEncoding.DecodeString(fields[2])
				cur.Auth = string(decoded)
			}
			_ = tc.PrintfLine("235 2.7.0 authenticated")
		case "MAIL":
			cur.From = line[len("MAIL FROM:"):]
			_ = tc.PrintfLine("250 ok")
		case "RCPT":
			cur.To = append(cur.To, line[len("RCPT TO:"):])
			_ = tc.PrintfLine("250 ok")
		case "DATA":
			_ = tc.PrintfLine("354 end with <CRLF>.<CRLF>")
			data, err := tc.ReadDotBytes()
			if err != nil {
				return
			}
			cur.Data = string(data)
			cur.OverTLS = overTLS
			s.mu.Lock()
			s.mails = append(s.mails, cur)
			s.mu.Unlock()
			cur = receivedMail{}
			_ = tc.PrintfLine("250 queued")
		case "QUIT":
			_ = tc.PrintfLine("221 bye")
			return
		default:
			_ = tc.PrintfLine("502 command not implemented")
		}
	}
}
