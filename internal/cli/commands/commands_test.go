package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")
	assert.NotNil(t, cmd.Flags().Lookup("exit-code"))
}

func TestNewScheduleCommand(t *testing.T) {
	cmd := NewScheduleCommand()

	assert.Equal(t, "schedule", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	for _, flag := range []string{"cron", "now"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history", cmd.Use)
	limit := cmd.Flags().Lookup("limit")
	if assert.NotNil(t, limit) {
		assert.Equal(t, "10", limit.DefValue)
		assert.Equal(t, "n", limit.Shorthand)
	}
}

func TestNewQueryCommand(t *testing.T) {
	cmd := NewQueryCommand()

	assert.Equal(t, "query [SQL]", cmd.Use)
	for _, flag := range []string{"format", "input", "report", "date", "print"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestNewDoctorCommand(t *testing.T) {
	cmd := NewDoctorCommand()

	assert.Equal(t, "doctor", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("offline"))
	assert.NotNil(t, cmd.Flags().Lookup("format"))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123abcd", shortID("0123abcd-4567-89ef"))
	assert.Equal(t, "short", shortID("short"))
}

func TestRelPath(t *testing.T) {
	assert.Equal(t, "output/report.xlsx", relPath("/srv/proj", "/srv/proj/output/report.xlsx"))
	assert.Equal(t, "/x/y", relPath("", "/x/y"))
	assert.Equal(t, "", relPath("/srv", ""))
}
