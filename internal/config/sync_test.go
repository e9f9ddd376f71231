// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema is embedded in config.go and available to tests via the same package.

// =============================================================================
// Schema Sync Tests
// =============================================================================
// These tests verify Go struct JSON tags match CUE schema field names.
// They catch misalignments at CI time, preventing silent parsing failures.

// extractCUEFields extracts all field names from a CUE struct definition.
// It returns a map of field names to whether the field is optional.
// Nested struct fields are not included; only top-level fields of the given definition.
func extractCUEFields(t *testing.T, val cue.Value) map[string]bool {
	t.Helper()

	fields := make(map[string]bool)

	// Iterate over the struct fields
	iter, err := val.Fields(cue.Definitions(false), cue.Optional(true))
	if err != nil {
		t.Fatalf("failed to iterate CUE fields: %v", err)
	}

	for iter.Next() {
		sel := iter.Selector()
		// Skip hidden fields (start with _) and definitions (start with #)
		labelType := sel.LabelType()
		if labelType.IsHidden() || sel.IsDefinition() {
			continue
		}

		// Skip fields that are explicitly set to bottom (_|_) - these are error constraints
		// used to explicitly forbid certain field names.
		fieldValue := iter.Value()
		if fieldValue.Kind() == cue.BottomKind && fieldValue.Err() != nil {
			errMsg := fieldValue.Err().Error()
			if strings.Contains(errMsg, "explicit error (_|_ literal)") {
				continue
			}
		}

		// The selector string may include the "?" suffix for optional fields
		// We need to strip it to get the actual field name
		fieldName := sel.String()
		fieldName = strings.TrimSuffix(fieldName, "?")
		isOptional := iter.IsOptional()
		fields[fieldName] = isOptional
	}

	return fields
}

// extractGoJSONTags extracts all JSON field names from a Go struct using reflection.
// It returns a map of JSON tag names to whether the field has "omitempty".
// Fields with json:"-" are excluded.
// Embedded structs are not expanded; only direct fields are returned.
func extractGoJSONTags(t *testing.T, typ reflect.Type) map[string]bool {
	t.Helper()

	// Dereference pointer types
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.Kind() != reflect.Struct {
		t.Fatalf("expected struct type, got %s", typ.Kind())
	}

	fields := make(map[string]bool)

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "" || tag == "-" {
			// No json tag or explicitly excluded
			continue
		}

		// Parse the tag: "name,omitempty" or just "name"
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" || name == "-" {
			continue
		}

		hasOmitempty := slices.Contains(parts[1:], "omitempty")

		fields[name] = hasOmitempty
	}

	return fields
}

// assertFieldsSync verifies that CUE schema fields and Go struct JSON tags are in sync.
// It checks:
// 1. Every CUE field has a corresponding Go JSON tag
// 2. Every Go JSON tag has a corresponding CUE field
// 3. Optional/omitempty alignment (warning only, not a failure)
func assertFieldsSync(t *testing.T, structName string, cueFields, goFields map[string]bool) {
	t.Helper()

	// Check CUE fields exist in Go struct
	for field, isOptional := range cueFields {
		hasOmitempty, exists := goFields[field]
		if !exists {
			t.Errorf("[%s] CUE field %q not found in Go struct (missing JSON tag)", structName, field)
			continue
		}
		// Warn about optional/omitempty mismatch (not a hard failure)
		if isOptional && !hasOmitempty {
			t.Logf("[%s] Note: CUE field %q is optional but Go field lacks omitempty tag", structName, field)
		}
	}

	// Check Go fields exist in CUE schema
	for field := range goFields {
		if _, exists := cueFields[field]; !exists {
			t.Errorf("[%s] Go JSON tag %q not found in CUE schema (missing CUE field)", structName, field)
		}
	}
}

// getCUESchema compiles the embedded CUE schema and returns the context and compiled value.
func getCUESchema(t *testing.T) (cue.Value, *cue.Context) {
	t.Helper()

	ctx := cuecontext.New()
	schema := ctx.CompileString(configSchema)
	if schema.Err() != nil {
		t.Fatalf("failed to compile CUE schema: %v", schema.Err())
	}

	return schema, ctx
}

// lookupDefinition looks up a CUE definition by path (e.g., "#Config").
func lookupDefinition(t *testing.T, schema cue.Value, defPath string) cue.Value {
	t.Helper()

	def := schema.LookupPath(cue.ParsePath(defPath))
	if def.Err() != nil {
		t.Fatalf("failed to lookup CUE definition %s: %v", defPath, def.Err())
	}

	return def
}

// TestConfigSchemaSync verifies Config Go struct matches #Config CUE definition.
func TestConfigSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#Config"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[Config]())

	assertFieldsSync(t, "Config", cueFields, goFields)
}

// TestEngineSectionSchemaSync verifies EngineSection Go struct matches #EngineSection CUE definition.
func TestEngineSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#EngineSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[EngineSection]())

	assertFieldsSync(t, "EngineSection", cueFields, goFields)
}

// TestContainerSectionSchemaSync verifies ContainerSection Go struct matches #ContainerSection CUE definition.
func TestContainerSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#ContainerSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[ContainerSection]())

	assertFieldsSync(t, "ContainerSection", cueFields, goFields)
}

// TestDriverSectionSchemaSync verifies DriverSection Go struct matches #DriverSection CUE definition.
func TestDriverSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#DriverSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[DriverSection]())

	assertFieldsSync(t, "DriverSection", cueFields, goFields)
}

// TestDepsSectionSchemaSync verifies DepsSection Go struct matches #DepsSection CUE definition.
func TestDepsSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#DepsSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[DepsSection]())

	assertFieldsSync(t, "DepsSection", cueFields, goFields)
}

// TestRemoteSectionSchemaSync verifies RemoteSection Go struct matches #RemoteSection CUE definition.
func TestRemoteSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#RemoteSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[RemoteSection]())

	assertFieldsSync(t, "RemoteSection", cueFields, goFields)
}

// TestWifiSectionSchemaSync verifies WifiSection Go struct matches #WifiSection CUE definition.
func TestWifiSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#WifiSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[WifiSection]())

	assertFieldsSync(t, "WifiSection", cueFields, goFields)
}

// TestSupervisorSectionSchemaSync verifies SupervisorSection Go struct matches #SupervisorSection CUE definition.
func TestSupervisorSectionSchemaSync(t *testing.T) {
	schema, _ := getCUESchema(t)
	cueFields := extractCUEFields(t, lookupDefinition(t, schema, "#SupervisorSection"))
	goFields := extractGoJSONTags(t, reflect.TypeFor[SupervisorSection]())

	assertFieldsSync(t, "SupervisorSection", cueFields, goFields)
}

// =============================================================================
// Schema Boundary Tests
// =============================================================================
// These tests verify CUE schema constraints (MaxRunes, non-empty, enums)
// catch invalid values at parse time. Each test validates boundary conditions
// for string length limits, value ranges, and empty string rejections.

// validateCUE compiles CUE test data against the embedded config schema's #Config definition.
// It returns nil if the data is valid, or an error describing why validation failed.
func validateCUE(t *testing.T, cueData string) error {
	t.Helper()

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		t.Fatalf("failed to compile schema: %v", schemaValue.Err())
	}

	userValue := ctx.CompileString(cueData)
	if userValue.Err() != nil {
		return fmt.Errorf("CUE compile error: %w", userValue.Err())
	}

	schemaDef := schemaValue.LookupPath(cue.ParsePath("#Config"))
	if schemaDef.Err() != nil {
		t.Fatalf("failed to lookup #Config: %v", schemaDef.Err())
	}

	unified := schemaDef.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("CUE validation error: %w", err)
	}

	return nil
}

// TestContainerNameConstraints verifies container.name follows the engine's
// naming rule and enforces the 253 rune limit.
func TestContainerNameConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "empty name rejected",
			cueData: `container: name: ""`,
			wantErr: true,
		},
		{
			name:    "leading dash rejected",
			cueData: `container: name: "-watchdog"`,
			wantErr: true,
		},
		{
			name:    "whitespace rejected",
			cueData: `container: name: "watch dog"`,
			wantErr: true,
		},
		{
			name:    "default name accepted",
			cueData: `container: name: "watchdog-ubuntu2204"`,
			wantErr: false,
		},
		{
			name:    "name at 253 chars accepted",
			cueData: `container: name: "` + strings.Repeat("a", 253) + `"`,
			wantErr: false,
		},
		{
			name:    "name over 253 chars rejected",
			cueData: `container: name: "` + strings.Repeat("a", 254) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestRestartPolicyEnumConstraints verifies container.restart_policy only
// accepts the engine's four restart policies.
func TestRestartPolicyEnumConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "no accepted",
			cueData: `container: restart_policy: "no"`,
			wantErr: false,
		},
		{
			name:    "always accepted",
			cueData: `container: restart_policy: "always"`,
			wantErr: false,
		},
		{
			name:    "on-failure accepted",
			cueData: `container: restart_policy: "on-failure"`,
			wantErr: false,
		},
		{
			name:    "unless-stopped accepted",
			cueData: `container: restart_policy: "unless-stopped"`,
			wantErr: false,
		},
		{
			name:    "unknown policy rejected",
			cueData: `container: restart_policy: "sometimes"`,
			wantErr: true,
		},
		{
			name:    "uppercase rejected",
			cueData: `container: restart_policy: "ALWAYS"`,
			wantErr: true,
		},
		{
			name:    "empty rejected",
			cueData: `container: restart_policy: ""`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestPortRangeConstraints verifies port fields enforce the 1-65535 TCP range.
func TestPortRangeConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "port 1 accepted",
			cueData: `container: app_host_port: 1`,
			wantErr: false,
		},
		{
			name:    "port 65535 accepted",
			cueData: `container: ssh_host_port: 65535`,
			wantErr: false,
		},
		{
			name:    "port 0 rejected",
			cueData: `container: app_host_port: 0`,
			wantErr: true,
		},
		{
			name:    "port 65536 rejected",
			cueData: `container: ssh_host_port: 65536`,
			wantErr: true,
		},
		{
			name:    "negative port rejected",
			cueData: `container: app_container_port: -1`,
			wantErr: true,
		},
		{
			name:    "string port rejected",
			cueData: `container: app_host_port: "8080"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestDriverCommitConstraints verifies driver.commit accepts either an empty
// string (repository HEAD) or an abbreviated-to-full hex object name.
func TestDriverCommitConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "empty commit accepted",
			cueData: `driver: commit: ""`,
			wantErr: false,
		},
		{
			name:    "7-char abbreviation accepted",
			cueData: `driver: commit: "a1b2c3d"`,
			wantErr: false,
		},
		{
			name:    "full 40-char hash accepted",
			cueData: `driver: commit: "` + strings.Repeat("ab12", 10) + `"`,
			wantErr: false,
		},
		{
			name:    "6-char abbreviation rejected",
			cueData: `driver: commit: "a1b2c3"`,
			wantErr: true,
		},
		{
			name:    "41-char hash rejected",
			cueData: `driver: commit: "` + strings.Repeat("a", 41) + `"`,
			wantErr: true,
		},
		{
			name:    "non-hex rejected",
			cueData: `driver: commit: "branch-name"`,
			wantErr: true,
		},
		{
			name:    "uppercase hex rejected",
			cueData: `driver: commit: "A1B2C3D"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestAppDirConstraints verifies container.app_dir rejects empty strings and
// enforces the 4096 rune limit.
func TestAppDirConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "empty string rejected",
			cueData: `container: app_dir: ""`,
			wantErr: true,
		},
		{
			name:    "4096-char path accepted",
			cueData: `container: app_dir: "` + strings.Repeat("a", 4096) + `"`,
			wantErr: false,
		},
		{
			name:    "4097-char path rejected",
			cueData: `container: app_dir: "` + strings.Repeat("a", 4097) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestSupervisorConstraints verifies supervisor.pattern and supervisor.launch
// reject empty strings while supervisor.workdir allows the empty string
// (meaning the app mount point).
func TestSupervisorConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "empty pattern rejected",
			cueData: `supervisor: pattern: ""`,
			wantErr: true,
		},
		{
			name:    "empty launch rejected",
			cueData: `supervisor: launch: ""`,
			wantErr: true,
		},
		{
			name:    "empty workdir accepted",
			cueData: `supervisor: workdir: ""`,
			wantErr: false,
		},
		{
			name:    "full supervisor section accepted",
			cueData: `supervisor: {pattern: "uvicorn", launch: "python3 -m uvicorn main:app", workdir: "/opt/app"}`,
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestWifiSSIDConstraints verifies wifi.ssid allows the empty string (unset,
// fall back to the credentials file) and enforces the 802.11 32 rune limit.
func TestWifiSSIDConstraints(t *testing.T) {
	tests := []struct {
		name    string
		cueData string
		wantErr bool
	}{
		{
			name:    "empty ssid accepted",
			cueData: `wifi: ssid: ""`,
			wantErr: false,
		},
		{
			name:    "ssid at 32 chars accepted",
			cueData: `wifi: ssid: "` + strings.Repeat("a", 32) + `"`,
			wantErr: false,
		},
		{
			name:    "ssid over 32 chars rejected",
			cueData: `wifi: ssid: "` + strings.Repeat("a", 33) + `"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCUE(t, tt.cueData)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

// TestHostPortDistinctness verifies the Go-level validation for the constraint
// CUE cannot express: the app and ssh host ports must be distinct.
func TestHostPortDistinctness(t *testing.T) {
	// Duplicate host ports pass the per-field CUE constraints.
	if err := validateCUE(t, `container: {app_host_port: 8080, ssh_host_port: 8080}`); err != nil {
		t.Fatalf("expected CUE to accept duplicate host ports, got: %v", err)
	}

	// The cross-field rule is enforced by Config.IsValid instead.
	cfg := DefaultConfig()
	cfg.Container.AppHostPort = 8080
	cfg.Container.SSHHostPort = 8080
	if valid, _ := cfg.IsValid(); valid {
		t.Error("expected Config.IsValid to reject duplicate host ports")
	}
}
