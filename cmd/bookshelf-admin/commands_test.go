package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf"
	"github.com/tendant/simple-bookshelf/pkg/bookshelf/api"
)

const cliSecret = "cli-secret"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "memory")
	t.Setenv("REMOTE_STORAGE", "none")
	t.Setenv("UPLOAD_DIR", t.TempDir())
	t.Setenv("JWT_SECRET", cliSecret)
	t.Setenv("ENVIRONMENT", "testing")

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPendingCommandEmpty(t *testing.T) {
	out, err := runCLI(t, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No books found")
}

func TestCountsCommandJSON(t *testing.T) {
	out, err := runCLI(t, "counts", "--json")
	require.NoError(t, err)

	var counts bookshelf.ModerationCounts
	require.NoError(t, json.Unmarshal([]byte(out), &counts))
	assert.Equal(t, bookshelf.ModerationCounts{}, counts)
}

func TestTransitionCommandErrors(t *testing.T) {
	_, err := runCLI(t, "approve", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid book id")

	_, err = runCLI(t, "approve", uuid.NewString())
	assert.ErrorIs(t, err, bookshelf.ErrNotFound)

	_, err = runCLI(t, "approve-delete", uuid.NewString(), "--admin-id", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --admin-id")

	_, err = runCLI(t, "reject")
	assert.Error(t, err, "a book id is required")
}

func TestTokenCommand(t *testing.T) {
	userID := uuid.New()
	out, err := runCLI(t, "token", "--user", userID.String(), "--role", "admin")
	require.NoError(t, err)

	token, err := jwtauth.VerifyToken(api.NewTokenAuth(cliSecret), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, userID.String(), token.Subject())
	role, ok := token.Get(api.ClaimRole)
	require.True(t, ok)
	assert.Equal(t, "admin", role)

	_, err = jwtauth.VerifyToken(api.NewTokenAuth("other-secret"), strings.TrimSpace(out))
	assert.Error(t, err)
}

func TestTokenCommandRejectsBadInput(t *testing.T) {
	_, err := runCLI(t, "token", "--role", "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --role")

	_, err = runCLI(t, "token", "--user", "123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --user")
}
