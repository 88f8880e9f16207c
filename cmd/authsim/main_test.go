// File: cmd/authsim/main_test.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/authsim/cmd"
	"github.com/xkilldash9x/authsim/internal/model"
)

// --- Setup Helpers ---

// resetMocks restores the original function implementations.
func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
	execute = cmd.Execute
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(context.Canceled))
	assert.Equal(t, 0, exitCode(fmt.Errorf("loop: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(model.ErrNoModel))
	assert.Equal(t, 1, exitCode(errors.New("bad config")))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log", func(t *testing.T) {
		var (
			path    string
			content []byte
			code    = -1
		)
		osWriteFile = func(name string, data []byte, _ os.FileMode) error {
			path, content = name, data
			return nil
		}
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("model exploded")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, string(content), "panic: model exploded")
		assert.Contains(t, string(content), "goroutine", "the stack trace is included")
		assert.Equal(t, 2, code)
	})

	t.Run("still exits when the log cannot be written", func(t *testing.T) {
		code := -1
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("again")
		}()
		assert.Equal(t, 2, code)
	})

	t.Run("does nothing without a panic", func(t *testing.T) {
		called := false
		osExit = func(int) { called = true }
		func() {
			defer handlePanic()
		}()
		assert.False(t, called)
	})
}

func TestMain_UsesExecuteResult(t *testing.T) {
	defer resetMocks()

	var got []int
	osExit = func(c int) { got = append(got, c) }

	execute = func(context.Context) error { return nil }
	main()
	execute = func(context.Context) error { return errors.New("boom") }
	main()
	execute = func(context.Context) error { return context.Canceled }
	main()

	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 0}, got)
}
