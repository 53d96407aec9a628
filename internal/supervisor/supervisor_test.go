package supervisor

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/protocgen/core/internal/command"
)

func TestRunSucceeds(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	runner := command.NewRunner()
	result, err := Run(context.Background(), runner, "/bin/sh", []string{"-c", "echo out-line; echo err-line 1>&2"}, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, result.Elapsed, time.Duration(0))
}

func TestRunReportsNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	runner := command.NewRunner()
	_, err := Run(context.Background(), runner, "/bin/sh", []string{"-c", "exit 3"}, nil)
	require.Error(t, err)
	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestRunCancelledContextKillsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only test")
	}
	runner := command.NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, runner, "/bin/sh", []string{"-c", "sleep 5"}, nil)
	require.Error(t, err)
}
