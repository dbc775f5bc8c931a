package migrations

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsParse(t *testing.T) {
	src, err := iofs.New(FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, ident, err := src.ReadUp(first)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_appointments", ident)

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	_ = down.Close()

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
	up2, ident2, err := src.ReadUp(next)
	require.NoError(t, err)
	_ = up2.Close()
	assert.Equal(t, "create_outbox", ident2)
}
