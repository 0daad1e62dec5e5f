package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertigo/eventtimeline/internal/model"
	"github.com/vertigo/eventtimeline/internal/scheduler"
)

const requestYAML = `
eventWindow:
  start: 2026-06-20T18:00:00Z
  end: 2026-06-20T23:00:00Z
performers:
  - id: magician
    category: magic
    setupMinutes: 20
    performMinutes: 30
    breakdownMinutes: 10
  - id: band
    category: music
    setupMinutes: 30
    performMinutes: 45
    breakdownMinutes: 20
    succeedsIds: [magician]
constraints:
  breakMinutes: 10
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(args []string, stdin string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cmdPlan(args, scheduler.DefaultOptions(), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCmdPlan_JSON(t *testing.T) {
	path := writeFile(t, "request.yaml", requestYAML)

	code, stdout, stderr := run([]string{"-lead", "30", path}, "")
	require.Equal(t, 0, code, stderr)

	var resp model.PlanResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, []string{"magician", "band"}, resp.Order)
	require.NotEmpty(t, resp.CallSheet)
	// lead 30 puts the first act on at 18:30
	assert.Equal(t, "18:30", resp.CallSheet[0].PerformStart.Format("15:04"))
}

func TestCmdPlan_JSONRequestFile(t *testing.T) {
	path := writeFile(t, "request.json", `{
		"eventWindow": {"start": "2026-06-20T18:00:00Z", "end": "2026-06-20T23:00:00Z"},
		"performers": [{"id": "dj", "performMinutes": 60}]
	}`)

	code, stdout, stderr := run([]string{path}, "")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"dj"`)
}

func TestCmdPlan_ICSFromStdin(t *testing.T) {
	code, stdout, stderr := run([]string{"-format", "ics", "-calls", "-"}, requestYAML)
	require.Equal(t, 0, code, stderr)
	assert.True(t, strings.HasPrefix(stdout, "BEGIN:VCALENDAR"))
	assert.Contains(t, stdout, "Call: magician")
}

func TestCmdPlan_Failures(t *testing.T) {
	cyclic := strings.Replace(requestYAML, "breakdownMinutes: 10\n", "breakdownMinutes: 10\n    succeedsIds: [band]\n", 1)

	tests := []struct {
		name       string
		args       func(t *testing.T) []string
		wantCode   int
		wantStderr string
	}{
		{
			name:     "no file",
			args:     func(*testing.T) []string { return nil },
			wantCode: 2,
		},
		{
			name:       "unknown format",
			args:       func(t *testing.T) []string { return []string{"-format", "pdf", "x.yaml"} },
			wantCode:   2,
			wantStderr: "unknown format",
		},
		{
			name:       "missing file",
			args:       func(t *testing.T) []string { return []string{filepath.Join(t.TempDir(), "nope.yaml")} },
			wantCode:   1,
			wantStderr: "failed to read request",
		},
		{
			name:       "invalid request",
			args:       func(t *testing.T) []string { return []string{writeFile(t, "r.yaml", "performers: []\n")} },
			wantCode:   1,
			wantStderr: "invalid request",
		},
		{
			name:       "cycle",
			args:       func(t *testing.T) []string { return []string{writeFile(t, "r.yaml", cyclic)} },
			wantCode:   1,
			wantStderr: "CYCLIC_DEPENDENCY",
		},
		{
			name: "strict overrun",
			args: func(t *testing.T) []string {
				short := strings.Replace(requestYAML, "end: 2026-06-20T23:00:00Z", "end: 2026-06-20T19:00:00Z", 1)
				return []string{"-strict", writeFile(t, "r.yaml", short)}
			},
			wantCode:   1,
			wantStderr: "WINDOW_OVERRUN",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(tt.args(t), "")
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr, tt.wantStderr)
		})
	}
}

func TestCmdPlan_OverrunWarning(t *testing.T) {
	short := strings.Replace(requestYAML, "end: 2026-06-20T23:00:00Z", "end: 2026-06-20T19:00:00Z", 1)
	path := writeFile(t, "request.yaml", short)

	code, stdout, stderr := run([]string{path}, "")
	require.Equal(t, 0, code)
	assert.Contains(t, stderr, "past 19:00")
	assert.Contains(t, stdout, `"overrun"`)
}
