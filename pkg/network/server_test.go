// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package network_test

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"

	. "github.com/fablehost/fabled/pkg/network"
	"go.uber.org/zap"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var nopLogger = zap.NewNop().Sugar()

// freePort asks the kernel for an unused TCP port.
func freePort() int {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

// roundTrip sends one NUL-framed message and reads the framed reply.
func roundTrip(conn net.Conn, reader *bufio.Reader, message string) string {
	_, err := conn.Write(append([]byte(message), 0x00))
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	frame, err := reader.ReadBytes(0x00)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return string(frame[:len(frame)-1])
}

var _ = Describe("Server", func() {
	var server *Server
	var port int
	var running sync.WaitGroup

	start := func(handler Handler) {
		port = freePort()
		server = NewServer(&Config{
			Port:         port,
			Addresses:    []string{"127.0.0.1"},
			ReuseAddress: true,
			Handler:      handler,
			Logger:       nopLogger,
		})
		listening := make(chan struct{})
		running.Add(1)
		go func() {
			defer running.Done()
			defer GinkgoRecover()
			Expect(server.Run(func() { close(listening) })).To(Succeed())
		}()
		Eventually(listening).Should(BeClosed())
	}

	dial := func() (net.Conn, *bufio.Reader) {
		conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		Expect(err).NotTo(HaveOccurred())
		return conn, bufio.NewReader(conn)
	}

	AfterEach(func() {
		server.Stop()
		running.Wait()
	})

	It("serves framed requests sequentially on one connection", func() {
		start(func(logger *zap.SugaredLogger, raw string) string {
			return strings.ToUpper(raw)
		})
		conn, reader := dial()
		defer conn.Close()
		Expect(roundTrip(conn, reader, "ping")).To(Equal("PING"))
		Expect(roundTrip(conn, reader, "pong")).To(Equal("PONG"))
	})

	It("serves connections independently", func() {
		start(func(logger *zap.SugaredLogger, raw string) string {
			return raw + "!"
		})
		first, firstReader := dial()
		defer first.Close()
		second, secondReader := dial()
		defer second.Close()
		Expect(roundTrip(second, secondReader, "b")).To(Equal("b!"))
		Expect(roundTrip(first, firstReader, "a")).To(Equal("a!"))
	})

	It("hands every frame to the handler, empty frames included", func() {
		var seen []string
		var mx sync.Mutex
		start(func(logger *zap.SugaredLogger, raw string) string {
			mx.Lock()
			seen = append(seen, raw)
			mx.Unlock()
			return ""
		})
		conn, reader := dial()
		defer conn.Close()
		roundTrip(conn, reader, "")
		roundTrip(conn, reader, "{}")
		mx.Lock()
		defer mx.Unlock()
		Expect(seen).To(Equal([]string{"", "{}"}))
	})

	It("closes live connections on Stop", func() {
		start(func(logger *zap.SugaredLogger, raw string) string {
			return raw
		})
		conn, reader := dial()
		defer conn.Close()
		Expect(roundTrip(conn, reader, "hello")).To(Equal("hello"))
		server.Stop()
		running.Wait()
		_, err := reader.ReadBytes(0x00)
		Expect(err).To(HaveOccurred())
	})
})
