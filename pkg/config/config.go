// Copyright (c) 2025-2026 - for information on the respective copyright owner
// see the NOTICE file and/or the repository https://github.com/fablehost/fabled.
//
// SPDX-License-Identifier: Apache-2.0

// Package config holds the read-once daemon settings. Options are declared
// in a typed schema with defaults; values come from an ini file and can be
// overridden per option by a namespaced environment variable
// (network.port -> FABLED_NETWORK_PORT).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/ini.v1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// EnvPrefix namespaces the environment overrides.
const EnvPrefix = "FABLED"

// InstallPrefixEnv names the variable that anchors relative paths.
const InstallPrefixEnv = "FABLED_INSTALL_PREFIX"

// Kind is the declared type of an option.
type Kind int

const (
	// KindInt marks an integer option.
	KindInt Kind = iota
	// KindBool marks a boolean option.
	KindBool
	// KindString marks a string option.
	KindString
)

// Option is one schema entry. Hidden options are elided from the config
// the global scope reports.
type Option struct {
	Name    string
	Kind    Kind
	Default interface{}
	Hidden  bool
}

// Schema declares every recognized option with its default.
var Schema = []Option{
	{Name: "network.port", Kind: KindInt, Default: 1040},
	{Name: "network.listen", Kind: KindString, Default: `["127.0.0.1", "::1"]`},
	{Name: "network.reuse_address", Kind: KindBool, Default: true},
	{Name: "network.send_keepalive", Kind: KindBool, Default: false},
	{Name: "logging.logto", Kind: KindString, Default: "stderr"},
	{Name: "input.driver", Kind: KindString, Default: "local"},
	{Name: "input.listeners", Kind: KindString, Default: `[]`},
	{Name: "output.driver", Kind: KindString, Default: "local"},
	{Name: "redis.host", Kind: KindString, Default: "localhost"},
	{Name: "redis.port", Kind: KindInt, Default: 6379},
	{Name: "redis.username", Kind: KindString, Default: "", Hidden: true},
	{Name: "redis.password", Kind: KindString, Default: "", Hidden: true},
	{Name: "redis.connection_timeout", Kind: KindInt, Default: 5000},
	{Name: "redis.connection_retry_interval", Kind: KindInt, Default: 5000},
	{Name: "redis.output_channel", Kind: KindString, Default: "fabled:out"},
	{Name: "redis.input_channel", Kind: KindString, Default: "fabled:in"},
	{Name: "resources.definitions_path", Kind: KindString, Default: "definitions"},
	{Name: "state.enabled", Kind: KindBool, Default: false},
	{Name: "state.auto_restore", Kind: KindBool, Default: false},
	{Name: "state.dump_on_shutdown", Kind: KindBool, Default: true},
	{Name: "state.crash_recovery", Kind: KindBool, Default: false},
	{Name: "state.format", Kind: KindString, Default: "json"},
	{Name: "state.save_path", Kind: KindString, Default: "state"},
	{Name: "state.max_dumps_per_game", Kind: KindInt, Default: 0},
	{Name: "extensions.path", Kind: KindString, Default: "extensions"},
	{Name: "extensions.load", Kind: KindString, Default: `[]`},
}

// Config is the resolved option set. It is written once at startup and
// read-only afterwards.
type Config struct {
	values map[string]interface{}
	prefix string
}

// Load builds a Config from defaults, the ini file at path (skipped when
// path is empty) and environment overrides, in that order of precedence.
// Unknown keys in the file are rejected.
func Load(path string) (*Config, error) {
	schema := make(map[string]Option, len(Schema))
	values := make(map[string]interface{}, len(Schema))
	for _, opt := range Schema {
		schema[opt.Name] = opt
		values[opt.Name] = opt.Default
	}
	if path != "" {
		file, err := ini.Load(path)
		if err != nil {
			return nil, err
		}
		for _, section := range file.Sections() {
			if section.Name() == ini.DefaultSection && len(section.Keys()) == 0 {
				continue
			}
			for _, key := range section.Keys() {
				name := section.Name() + "." + key.Name()
				opt, ok := schema[name]
				if !ok {
					return nil, fmt.Errorf("unknown config option %q", name)
				}
				v, err := parse(opt, key.String())
				if err != nil {
					return nil, err
				}
				values[name] = v
			}
		}
	}
	for _, opt := range Schema {
		raw, ok := os.LookupEnv(envName(opt.Name))
		if !ok {
			continue
		}
		v, err := parse(opt, raw)
		if err != nil {
			return nil, err
		}
		values[opt.Name] = v
	}
	return &Config{values: values, prefix: installPrefix()}, nil
}

// Defaults returns a Config carrying only the schema defaults. Intended
// for tests and embedders.
func Defaults() *Config {
	c, _ := Load("")
	return c
}

func envName(option string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(option))
}

func parse(opt Option, raw string) (interface{}, error) {
	switch opt.Kind {
	case KindInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("option %q requires an integer: %v", opt.Name, err)
		}
		return n, nil
	case KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("option %q requires a boolean: %v", opt.Name, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func installPrefix() string {
	if p, ok := os.LookupEnv(InstallPrefixEnv); ok {
		return p
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Set overrides a single option in place. Intended for tests and embedders
// before the daemon starts serving.
func (c *Config) Set(name string, value interface{}) {
	c.values[name] = value
}

// Int returns an integer option.
func (c *Config) Int(name string) int {
	n, _ := c.values[name].(int)
	return n
}

// Bool returns a boolean option.
func (c *Config) Bool(name string) bool {
	b, _ := c.values[name].(bool)
	return b
}

// String returns a string option.
func (c *Config) String(name string) string {
	s, _ := c.values[name].(string)
	return s
}

// Millis returns an integer option interpreted as milliseconds.
func (c *Config) Millis(name string) time.Duration {
	return time.Duration(c.Int(name)) * time.Millisecond
}

// StringList decodes a string option holding a JSON array of strings.
func (c *Config) StringList(name string) ([]string, error) {
	var out []string
	if err := json.Unmarshal([]byte(c.String(name)), &out); err != nil {
		return nil, fmt.Errorf("option %q requires a JSON array of strings: %v", name, err)
	}
	return out, nil
}

// Path returns a string option resolved against the install prefix when it
// is relative.
func (c *Config) Path(name string) string {
	p := c.String(name)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.prefix, p)
}

// Visible returns every non-hidden option with its typed value, as served
// by "get config" on the global scope.
func (c *Config) Visible() map[string]interface{} {
	out := make(map[string]interface{}, len(Schema))
	for _, opt := range Schema {
		if opt.Hidden {
			continue
		}
		out[opt.Name] = c.values[opt.Name]
	}
	return out
}
