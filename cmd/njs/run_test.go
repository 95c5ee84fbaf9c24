package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryguy/njs"
	"github.com/cryguy/njs/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heldTask struct{ release chan struct{} }

func (t *heldTask) OnWork()                                     { <-t.release }
func (t *heldTask) OnDone(ctx core.Context, data *njs.TaskData) {}
func (t *heldTask) OnDestroy(ctx core.Context)                  {}

func TestFinishTasks_ReportsEffectiveTimeout(t *testing.T) {
	cfg := njs.DefaultConfig()
	cfg.DrainTimeout = time.Hour
	rt, err := njs.New(cfg)
	require.NoError(t, err)
	defer rt.Close()

	task := &heldTask{release: make(chan struct{})}
	_, err = rt.Post(task, nil)
	require.NoError(t, err)

	err = finishTasks(rt, 20*time.Millisecond)
	assert.EqualError(t, err, "tasks still pending after 20ms")

	close(task.release)
	assert.NoError(t, finishTasks(rt, 0))
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(file, []byte(src), 0644))
	return file
}

func TestRunCommand_DefaultBackend(t *testing.T) {
	file := writeScript(t, `"use strict";
print(new demo.Object(1, 2).a + demo.Object.staticMul(3, 4));
`)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"run", "--env", "", "--module", "demo", file})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "13\n", out.String())
}

func TestRunCommand_RefvmCannotRunScripts(t *testing.T) {
	t.Cleanup(func() { backendName = "" })
	file := writeScript(t, `print(1);`)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"run", "--env", "", "--backend", "refvm", "--module", "demo", file})
	err := rootCmd.Execute()
	assert.ErrorIs(t, err, njs.ErrScriptsUnsupported)
	assert.ErrorContains(t, err, "--backend")
}
