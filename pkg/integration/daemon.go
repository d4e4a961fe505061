// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package integration exercises the daemon end to end: raw request
// strings through the dispatcher against a fully wired container.
package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/fablehost/fabled/pkg/config"
	"github.com/fablehost/fabled/pkg/container"
	"github.com/fablehost/fabled/pkg/dispatcher"
	"github.com/fablehost/fabled/pkg/drivers"
	"github.com/fablehost/fabled/pkg/scopes"
	"go.uber.org/zap"

	. "github.com/onsi/gomega"
)

const definitionXML = `<definition>
  <meta>
    <entry key="title">Test World</entry>
  </meta>
  <room name="start" title="The Landing">
    <description>A bare landing.</description>
    <exit direction="north" to="hall"/>
  </room>
  <room name="hall" title="The Hall">
    <description>A long hall.</description>
    <exit direction="south" to="start"/>
  </room>
</definition>`

var nopLogger = zap.NewNop().Sugar()

// daemon is an in-process instance of the full request path: dispatcher,
// scope controllers, container, drivers.
type daemon struct {
	dispatcher *dispatcher.Dispatcher
	container  *container.Container
	out        *drivers.LocalOutput
	in         *drivers.LocalInput
	defsDir    string
	stateDir   string
}

// newDaemon wires a daemon over temp directories. maxDumps applies only
// with state enabled.
func newDaemon(withState bool, maxDumps int) *daemon {
	defsDir, err := os.MkdirTemp("", "fabled-defs")
	Expect(err).NotTo(HaveOccurred())
	Expect(os.WriteFile(filepath.Join(defsDir, "game.xml"), []byte(definitionXML), 0644)).To(Succeed())
	d := &daemon{defsDir: defsDir}
	if withState {
		d.stateDir, err = os.MkdirTemp("", "fabled-state")
		Expect(err).NotTo(HaveOccurred())
	}
	d.boot(maxDumps)
	return d
}

// boot builds the container and dispatcher over the daemon's
// directories. Called again by restart to emulate a fresh process.
func (d *daemon) boot(maxDumps int) {
	d.out = drivers.NewLocalOutput()
	d.in = drivers.NewLocalInput()
	var store *container.Store
	if d.stateDir != "" {
		store = container.NewStore(d.stateDir, "json", maxDumps)
	}
	c, err := container.NewContainer(&container.Config{
		DefinitionsPath: d.defsDir,
		Store:           store,
		Output:          d.out,
		Input:           d.in,
		Tick:            time.Millisecond,
		Logger:          nopLogger,
	})
	Expect(err).NotTo(HaveOccurred())
	d.container = c
	d.dispatcher = dispatcher.NewDispatcher()
	Expect(d.dispatcher.Register(scopes.NewGlobalScope(config.Defaults(), c, nopLogger), true)).To(Succeed())
	Expect(d.dispatcher.Register(scopes.NewGameScope(c, nopLogger), true)).To(Succeed())
	for _, ctrl := range scopes.NewEntityScopes(c, nopLogger) {
		Expect(d.dispatcher.Register(ctrl, true)).To(Succeed())
	}
}

// restart tears the live fleet down and boots again over the same state
// directory.
func (d *daemon) restart(maxDumps int) {
	d.container.Close()
	d.boot(maxDumps)
}

func (d *daemon) close() {
	d.container.Close()
	os.RemoveAll(d.defsDir)
	if d.stateDir != "" {
		os.RemoveAll(d.stateDir)
	}
}

// request serves one raw request string and decodes the response.
func (d *daemon) request(raw string) map[string]interface{} {
	response := d.dispatcher.Handle(nopLogger, raw)
	var out map[string]interface{}
	ExpectWithOffset(1, json.Unmarshal([]byte(response), &out)).To(Succeed())
	return out
}
