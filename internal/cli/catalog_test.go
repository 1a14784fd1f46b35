package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Builtins(t *testing.T) {
	isolate(t)

	res := execute(t, nil, "catalog")

	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, MarkerUsage+"\n")
	assert.Contains(t, res.stdout, "ISO27001Controls - Enumeration of ISO 27001 controls.")
	assert.Contains(t, res.stdout, "  - A_15_2_1  Compliance with security policies and standards\n")
	assert.Contains(t, res.stdout, "  - A_7_2_2   Information labelling and handling\n")
}

func TestCatalog_JSONWithCatalogDir(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groups.cue"), []byte(`package groups

group: Retention: {
	doc: "Data retention rules."
	members: {
		purge_after_90_days: "Logs are purged after 90 days"
	}
}
`), 0o644))

	res := execute(t, nil, "catalog", "--catalog", dir, "--format", "json")
	require.NoError(t, res.err, res.stderr)

	var out struct {
		Status string        `json:"status"`
		Data   CatalogOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, MarkerUsage, out.Data.Usage)

	names := make([]string, 0, len(out.Data.Groups))
	var retention GroupInfo
	for _, g := range out.Data.Groups {
		names = append(names, g.Name)
		if g.Name == "Retention" {
			retention = g
		}
	}
	assert.ElementsMatch(t, []string{"ISO27001Controls", "Retention"}, names)
	assert.Equal(t, "Data retention rules.", retention.Doc)
	assert.Equal(t, []MemberInfo{{
		Key:   "Retention.purge_after_90_days",
		Name:  "purge_after_90_days",
		Value: "Logs are purged after 90 days",
	}}, retention.Members)
}

func TestCatalog_InvalidCatalog(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(`package bad

group: Broken: {
	members: {}
}
`), 0o644))

	res := execute(t, nil, "catalog", "--catalog", dir)

	assert.Equal(t, ExitCommandError, res.code())
	assert.Contains(t, res.stderr, "[E105]")
}
