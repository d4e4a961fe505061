// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0
package drivers

import (
	"sync"
	"time"
)

// ReadPollInterval is how often a blocked InputStream re-checks its buffer.
const ReadPollInterval = 10 * time.Millisecond

// OutputStream writes entity text through an output driver. Its identity
// is the (game-id, entity-name) pair; it holds no reference back to the
// entity.
type OutputStream struct {
	driver OutputDriver
	game   uint
	entity string
}

// NewOutputStream binds an output stream to a driver.
func NewOutputStream(driver OutputDriver, game uint, entity string) *OutputStream {
	return &OutputStream{driver: driver, game: game, entity: entity}
}

// Write timestamps the content and pushes it on the named channel.
func (s *OutputStream) Write(channel, content string) error {
	return s.driver.Push(s.game, s.entity, channel, Message{
		Timestamp: time.Now().Unix(),
		Content:   content,
	})
}

// InputStream reads entity commands from an input driver. Read blocks
// until a command is pending or the stream is killed.
type InputStream struct {
	driver InputDriver
	game   uint
	entity string

	once   sync.Once
	killed chan struct{}
}

// NewInputStream binds an input stream to a driver.
func NewInputStream(driver InputDriver, game uint, entity string) *InputStream {
	return &InputStream{
		driver: driver,
		game:   game,
		entity: entity,
		killed: make(chan struct{}),
	}
}

// Read blocks until a pending command can be consumed and returns it. A
// killed stream resolves this and every future read as ("", false).
func (s *InputStream) Read() (string, bool) {
	for {
		select {
		case <-s.killed:
			return "", false
		default:
		}
		command, ok, err := s.driver.Consume(s.game, s.entity)
		if err == nil && ok {
			return command, true
		}
		select {
		case <-s.killed:
			return "", false
		case <-time.After(ReadPollInterval):
		}
	}
}

// Kill unblocks the pending read, if any, and poisons the stream. Safe to
// call more than once and from any goroutine.
func (s *InputStream) Kill() {
	s.once.Do(func() { close(s.killed) })
}

// Killed reports whether the stream has been killed.
func (s *InputStream) Killed() bool {
	select {
	case <-s.killed:
		return true
	default:
		return false
	}
}
