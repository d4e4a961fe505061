// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package network implements the TCP front of the daemon: NUL-framed
// JSON messages, one goroutine per connection.
package network

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// frameDelimiter terminates every message in both directions.
const frameDelimiter = byte(0x00)

// Handler serves one raw request and returns the raw response.
type Handler func(connLogger *zap.SugaredLogger, raw string) string

// Config is the configuration of the TCP server.
type Config struct {
	// Port is bound on every address in Addresses.
	Port      int
	Addresses []string
	// ReuseAddress sets SO_REUSEADDR on the listening sockets.
	ReuseAddress bool
	// KeepAlive enables TCP keep-alive on accepted connections.
	KeepAlive bool
	Handler   Handler
	Logger    *zap.SugaredLogger
}

// Server accepts connections on all configured addresses and serves
// requests on each connection sequentially. Connections are independent
// of each other.
type Server struct {
	conf *Config

	mx        sync.Mutex
	listeners []net.Listener
	conns     map[net.Conn]struct{}
	stopped   bool

	accepting sync.WaitGroup
	serving   sync.WaitGroup
}

// NewServer returns a server for the given configuration.
func NewServer(conf *Config) *Server {
	return &Server{
		conf:  conf,
		conns: map[net.Conn]struct{}{},
	}
}

// Run binds every configured address and serves until Stop is called.
// cb is invoked once all listeners are bound.
func (s *Server) Run(cb func()) error {
	lc := net.ListenConfig{}
	if s.conf.ReuseAddress {
		lc.Control = func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		}
	}
	for _, address := range s.conf.Addresses {
		lis, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(address, strconv.Itoa(s.conf.Port)))
		if err != nil {
			s.Stop()
			return errors.Wrapf(err, "binding %q", address)
		}
		s.mx.Lock()
		s.listeners = append(s.listeners, lis)
		s.mx.Unlock()
		s.accepting.Add(1)
		go s.accept(lis)
	}
	cb()
	s.accepting.Wait()
	s.serving.Wait()
	return nil
}

// Stop closes every listener and live connection and joins the accept
// loops.
func (s *Server) Stop() {
	s.mx.Lock()
	s.stopped = true
	listeners := s.listeners
	s.listeners = nil
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mx.Unlock()
	for _, lis := range listeners {
		lis.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.accepting.Wait()
	s.serving.Wait()
}

func (s *Server) accept(lis net.Listener) {
	defer s.accepting.Done()
	s.conf.Logger.Infow("Listening", "address", lis.Addr().String())
	for {
		conn, err := lis.Accept()
		if err != nil {
			s.mx.Lock()
			stopped := s.stopped
			s.mx.Unlock()
			if !stopped {
				s.conf.Logger.Errorf("Accepting a connection failed: %v", err)
			}
			return
		}
		s.mx.Lock()
		if s.stopped {
			s.mx.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mx.Unlock()
		s.serving.Add(1)
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.serving.Done()
	defer func() {
		conn.Close()
		s.mx.Lock()
		delete(s.conns, conn)
		s.mx.Unlock()
	}()
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetKeepAlive(s.conf.KeepAlive)
	}
	connLogger := s.conf.Logger.With(
		"connection", uuid.New().String(),
		"remote", conn.RemoteAddr().String(),
	)
	connLogger.Info("Connection opened")
	reader := bufio.NewReader(conn)
	for {
		frame, err := reader.ReadBytes(frameDelimiter)
		if err != nil {
			if err != io.EOF {
				connLogger.Infof("Connection read failed: %v", err)
			}
			connLogger.Info("Connection closed")
			return
		}
		raw := string(frame[:len(frame)-1])
		response := s.conf.Handler(connLogger, raw)
		if _, err := conn.Write(append([]byte(response), frameDelimiter)); err != nil {
			connLogger.Infof("Connection write failed: %v", err)
			return
		}
	}
}
