package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args    []string
		want    command
		wantErr bool
	}{
		{nil, command{name: "up"}, false},
		{[]string{"up"}, command{name: "up"}, false},
		{[]string{"version"}, command{name: "version"}, false},
		{[]string{"down"}, command{name: "down", arg: 1}, false},
		{[]string{"down", "3"}, command{name: "down", arg: 3}, false},
		{[]string{"down", "0"}, command{}, true},
		{[]string{"force", "1"}, command{name: "force", arg: 1}, false},
		{[]string{"force"}, command{}, true},
		{[]string{"force", "x"}, command{}, true},
		{[]string{"sideways"}, command{}, true},
	}
	for _, tt := range tests {
		got, err := parseCommand(tt.args)
		if tt.wantErr {
			assert.Error(t, err, tt.args)
			continue
		}
		require.NoError(t, err, tt.args)
		assert.Equal(t, tt.want, got)
	}
}

type fakeMigrator struct {
	calls []string
	err   error
}

func (f *fakeMigrator) Up() error { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Steps(n int) error { f.calls = append(f.calls, "steps"); return f.err }
func (f *fakeMigrator) Force(v int) error { f.calls = append(f.calls, "force"); return f.err }

func TestCommandApply(t *testing.T) {
	m := &fakeMigrator{err: migrate.ErrNoChange}
	require.NoError(t, command{name: "up"}.apply(m))
	require.NoError(t, command{name: "down", arg: 2}.apply(m))
	require.NoError(t, command{name: "version"}.apply(m))
	assert.Equal(t, []string{"up", "steps"}, m.calls)

	failing := &fakeMigrator{err: errors.New("dirty database")}
	assert.ErrorContains(t, command{name: "force", arg: 1}.apply(failing), "force: dirty database")
}
