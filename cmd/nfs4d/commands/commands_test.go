package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/nfs4d/pkg/config"
)

const testConfig = `
logging:
  level: ERROR
exports:
  - id: 1
    path: /data
    nfsv4: true
    seed:
      - {path: docs, type: dir}
      - {path: docs/README, type: file}
`

const testScript = `
compounds:
  - tag: walk
    ops:
      - putrootfh
      - {op: lookup, name: data}
      - {op: lookup, name: docs}
      - getfh
  - {minor: 1, ops: [exchange_id]}
  - {minor: 1, ops: [create_session]}
  - {minor: 1, ops: [sequence, putrootfh, {op: lookup, name: missing}]}
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExec(t *testing.T) {
	cfg := writeFile(t, "config.yaml", testConfig)
	scr := writeFile(t, "walk.yaml", testScript)
	xdrDir := filepath.Join(t.TempDir(), "xdr")

	out, err := run(t, "exec", scr, "--config", cfg, "-o", "json", "--xdr-dir", xdrDir)
	require.NoError(t, err)

	var results []compoundResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 4)
	assert.Equal(t, "NFS4_OK", results[0].Status)
	assert.Equal(t, "GETFH", results[0].Ops[3].Op)
	assert.Equal(t, "NFS4_OK", results[2].Status)
	assert.Equal(t, "NFS4ERR_NOENT", results[3].Status)

	entries, err := os.ReadDir(xdrDir)
	require.NoError(t, err)
	assert.Len(t, entries, 8)

	t.Run("Decode", func(t *testing.T) {
		out, err := run(t, "decode", filepath.Join(xdrDir, "000-request.xdr"), "--config", cfg, "-o", "json")
		require.NoError(t, err)

		var results []compoundResult
		require.NoError(t, json.Unmarshal([]byte(out), &results))
		require.Len(t, results, 1)
		assert.Equal(t, "walk", results[0].Tag)
		assert.NotEmpty(t, results[0].Ops[3].Detail)
	})

	t.Run("Strict", func(t *testing.T) {
		_, err := run(t, "exec", scr, "--config", cfg, "-o", "json", "--xdr-dir", "", "--strict")
		assert.Error(t, err)
		execStrict = false
	})
}

func TestDecode_Garbage(t *testing.T) {
	cfg := writeFile(t, "config.yaml", testConfig)
	blob := writeFile(t, "garbage.xdr", "\x00\x00")

	_, err := run(t, "decode", blob, "--config", cfg)
	assert.Error(t, err)
}

func TestPrintFH(t *testing.T) {
	out, err := run(t, "printfh", "01010000000000010000000000000002")
	require.NoError(t, err)
	assert.Contains(t, out, "regular")
	assert.Contains(t, out, "2")

	_, err = run(t, "printfh", "zz")
	assert.Error(t, err)

	_, err = run(t, "printfh", "0101")
	assert.Error(t, err)
}

func TestCompoundResults_Table(t *testing.T) {
	results := compoundResults{
		{Index: 0, Tag: "walk", Status: "NFS4_OK", Ops: []opResult{{Op: "PUTROOTFH", Status: "NFS4_OK"}, {Op: "GETFH", Status: "NFS4_OK", Detail: "0101"}}},
		{Index: 1, Status: "NFS4ERR_MINOR_VERS_MISMATCH"},
	}

	tbl := results.Table()
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, results.failed())
	assert.False(t, results[:1].failed())
}

func TestTelemetryConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		tc := telemetryConfig(config.TelemetryConfig{})
		assert.False(t, tc.Enabled)
		assert.Equal(t, "nfs4d", tc.ServiceName)
		assert.Equal(t, Version, tc.ServiceVersion)
		assert.Equal(t, "localhost:4317", tc.Endpoint)
		assert.Equal(t, 1.0, tc.SampleRate)
	})

	t.Run("Configured", func(t *testing.T) {
		tc := telemetryConfig(config.TelemetryConfig{
			Enabled:    true,
			Endpoint:   "otel:4317",
			SampleRate: 0.25,
		})
		assert.True(t, tc.Enabled)
		assert.False(t, tc.Insecure)
		assert.Equal(t, "otel:4317", tc.Endpoint)
		assert.Equal(t, 0.25, tc.SampleRate)
	})
}
