package operations_test

import (
	"path/filepath"
	"testing"

	"github.com/brettbedarf/shellstore/operations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOp(t *testing.T) {
	t.Parallel()

	op, err := operations.GetOp([]byte(`{"op": "move", "source": "a"}`))
	require.NoError(t, err)
	assert.Equal(t, operations.OpMove, op)

	_, err = operations.GetOp([]byte(`{"op": "link"}`))
	assert.Error(t, err)
	_, err = operations.GetOp([]byte(`{`))
	assert.Error(t, err)
}

func TestUnmarshalRequest(t *testing.T) {
	t.Parallel()
	base := filepath.Join(string(filepath.Separator), "batch")

	tests := []struct {
		name     string
		json     string
		expected *operations.Request
		wantErr  bool
	}{
		{
			name: "CopyRelative",
			json: `{"op": "copy", "source": "a.txt", "dest": "/out", "name": "b.txt"}`,
			expected: &operations.Request{
				Op: operations.OpCopy, Source: filepath.Join(base, "a.txt"), Dest: "/out", Name: "b.txt",
			},
		},
		{
			name: "CreateFolderDefaults",
			json: `{"op": "create", "dest": "out", "name": "sub", "folder": true}`,
			expected: &operations.Request{
				Op: operations.OpCreate, Dest: filepath.Join(base, "out"), Name: "sub", Folder: true,
			},
		},
		{
			name: "CreateWithTemplate",
			json: `{"op": "create", "dest": "/out", "name": "n.txt", "template": "t.txt"}`,
			expected: &operations.Request{
				Op: operations.OpCreate, Dest: "/out", Name: "n.txt", Template: filepath.Join(base, "t.txt"),
			},
		},
		{name: "DeleteMissingSource", json: `{"op": "delete"}`, wantErr: true},
		{name: "CopyMissingDest", json: `{"op": "copy", "source": "a"}`, wantErr: true},
		{name: "RenameMissingName", json: `{"op": "rename", "source": "a"}`, wantErr: true},
		{name: "UnknownOp", json: `{"op": "chmod", "source": "a"}`, wantErr: true},
		{name: "WrongType", json: `{"op": "delete", "source": 1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := operations.UnmarshalRequest([]byte(tt.json), base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, req)
		})
	}
}

func TestUnmarshalRequests(t *testing.T) {
	t.Parallel()

	batch, err := operations.UnmarshalRequests([]byte(`[
		{"op": "delete", "source": "/tmp/a"},
		{"op": "rename", "source": "/tmp/b", "name": "c"}
	]`), "")
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, operations.OpRename, batch[1].Op)

	_, err = operations.UnmarshalRequests([]byte(`[
		{"op": "delete"},
		{"op": "rename", "source": "/tmp/b", "name": "c"},
		{"op": "nope"}
	]`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request 0")
	assert.Contains(t, err.Error(), "request 2")

	_, err = operations.UnmarshalRequests([]byte(`{"op": "delete"}`), "")
	assert.Error(t, err)
}
