// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#TestConfig: {
	name:        string
	count:       int
	enabled:     bool
	description?: string
}
`

type TestConfig struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Run("valid input decodes", func(t *testing.T) {
		data := []byte(`
name: "probe"
count: 42
enabled: true
description: "room monitor"
`)
		cfg, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}

		if cfg.Name != "probe" {
			t.Errorf("expected name='probe', got %q", cfg.Name)
		}
		if cfg.Count != 42 {
			t.Errorf("expected count=42, got %d", cfg.Count)
		}
		if !cfg.Enabled {
			t.Error("expected enabled=true")
		}
		if cfg.Description != "room monitor" {
			t.Errorf("expected description='room monitor', got %q", cfg.Description)
		}
	})

	t.Run("optional field can be omitted", func(t *testing.T) {
		data := []byte(`
name: "minimal"
count: 1
enabled: false
`)
		cfg, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig")
		if err != nil {
			t.Fatalf("ParseAndDecode failed: %v", err)
		}

		if cfg.Description != "" {
			t.Errorf("expected empty description, got %q", cfg.Description)
		}
	})

	t.Run("type mismatch returns error", func(t *testing.T) {
		data := []byte(`
name: "probe"
count: "not a number"
enabled: true
`)
		if _, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig"); err == nil {
			t.Error("expected error for invalid type")
		}
	})

	t.Run("missing required field returns error", func(t *testing.T) {
		data := []byte(`
name: "probe"
enabled: true
`)
		if _, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig"); err == nil {
			t.Error("expected error for missing required field")
		}
	})

	t.Run("WithFilename names the file in errors", func(t *testing.T) {
		data := []byte(`
name: "probe"
count: "invalid"
enabled: true
`)
		_, err := ParseAndDecode[TestConfig](
			[]byte(testSchema),
			data,
			"#TestConfig",
			WithFilename("my-config.cue"),
		)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "my-config.cue") {
			t.Errorf("error should contain filename, got: %v", err)
		}
	})

	t.Run("missing root definition is an internal error", func(t *testing.T) {
		data := []byte(`name: "probe"`)
		_, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#NoSuchThing")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "internal error") {
			t.Errorf("error should be flagged internal, got: %v", err)
		}
	})
}

// The config loader decodes into a map for merging into Viper rather than a
// struct, with optional fields left unset.
func TestParseAndDecodeIntoMap(t *testing.T) {
	schema := `
#Config: {
	hostname?: string
	engine?: {
		binary?: string
	}
	container?: {
		restart_policy?: "no" | "always" | "on-failure" | "unless-stopped"
		app_host_port?:  int & >=1 & <=65535
	}
}
`

	t.Run("partial config decodes to nested map", func(t *testing.T) {
		data := []byte(`
hostname: "lab-jetson-01"
engine: binary: "podman"
container: {
	restart_policy: "always"
	app_host_port:  8080
}
`)
		m, err := ParseAndDecodeString[map[string]any](schema, data, "#Config", WithConcrete(false))
		if err != nil {
			t.Fatalf("ParseAndDecodeString failed: %v", err)
		}

		if (*m)["hostname"] != "lab-jetson-01" {
			t.Errorf("expected hostname='lab-jetson-01', got %v", (*m)["hostname"])
		}
		engine, ok := (*m)["engine"].(map[string]any)
		if !ok {
			t.Fatalf("expected engine section to be a map, got %T", (*m)["engine"])
		}
		if engine["binary"] != "podman" {
			t.Errorf("expected engine.binary='podman', got %v", engine["binary"])
		}
	})

	t.Run("empty config is valid with WithConcrete(false)", func(t *testing.T) {
		m, err := ParseAndDecodeString[map[string]any](schema, []byte(`{}`), "#Config", WithConcrete(false))
		if err != nil {
			t.Fatalf("ParseAndDecodeString failed: %v", err)
		}
		if _, set := (*m)["hostname"]; set {
			t.Errorf("expected hostname unset, got %v", (*m)["hostname"])
		}
	})

	t.Run("invalid enum value returns error", func(t *testing.T) {
		data := []byte(`container: restart_policy: "sometimes"`)
		if _, err := ParseAndDecodeString[map[string]any](schema, data, "#Config", WithConcrete(false)); err == nil {
			t.Error("expected error for invalid enum value")
		}
	})

	t.Run("out of range port returns error", func(t *testing.T) {
		data := []byte(`container: app_host_port: 70000`)
		if _, err := ParseAndDecodeString[map[string]any](schema, data, "#Config", WithConcrete(false)); err == nil {
			t.Error("expected error for out-of-range port")
		}
	})
}

func TestFileSizeLimit(t *testing.T) {
	t.Run("input within limit parses", func(t *testing.T) {
		data := []byte(`
name: "probe"
count: 1
enabled: true
`)
		if _, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig", WithMaxFileSize(1024)); err != nil {
			t.Errorf("expected success, got error: %v", err)
		}
	})

	t.Run("input exceeding limit returns error", func(t *testing.T) {
		data := make([]byte, 200)
		for i := range data {
			data[i] = 'a'
		}

		_, err := ParseAndDecode[TestConfig]([]byte(testSchema), data, "#TestConfig", WithMaxFileSize(100))
		if err == nil {
			t.Fatal("expected error for oversized input")
		}
		if !strings.Contains(err.Error(), "exceeds maximum") {
			t.Errorf("error should mention size limit, got: %v", err)
		}
	})
}
