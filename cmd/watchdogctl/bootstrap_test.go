// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"watchdogctl/internal/bootstrap"
)

// lineWith returns the output line containing substr, failing the test when
// no line matches.
func lineWith(t *testing.T, out, substr string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, substr) {
			return line
		}
	}
	t.Fatalf("no line contains %q in output:\n%s", substr, out)
	return ""
}

func TestRenderSummary(t *testing.T) {
	sum := &bootstrap.Summary{Results: []bootstrap.StepResult{
		{Name: "wifi", Status: bootstrap.StatusSkipped, Reason: "no wifi network configured"},
		{Name: "host packages", Status: bootstrap.StatusOK},
		{Name: "camera driver", Status: bootstrap.StatusWarned, Err: errors.New("modprobe failed")},
		{Name: "container", Status: bootstrap.StatusFailed, Err: errors.New("create failed")},
	}}

	var buf bytes.Buffer
	renderSummary(&buf, sum)
	out := buf.String()

	if got := lineWith(t, out, "wifi"); !strings.Contains(got, "no wifi network configured") {
		t.Errorf("skipped line must carry the reason, got %q", got)
	}
	if got := lineWith(t, out, "host packages"); !strings.Contains(got, "✓") {
		t.Errorf("ok line must carry the success glyph, got %q", got)
	}
	if got := lineWith(t, out, "camera driver"); !strings.Contains(got, "modprobe failed") {
		t.Errorf("warned line must carry the error, got %q", got)
	}
	if got := lineWith(t, out, "container"); !strings.Contains(got, "✗") {
		t.Errorf("failed line must carry the failure glyph, got %q", got)
	}
}

func TestRenderSummary_NilSummary(t *testing.T) {
	var buf bytes.Buffer
	renderSummary(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("a nil summary must render nothing, got %q", buf.String())
	}
}
