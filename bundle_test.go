package njs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsBundling(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"no imports", "print(1 + 1)", false},
		{"import statement", `import { foo } from './utils.js';`, true},
		{"import no space", `import{foo} from './utils.js';`, true},
		{"dynamic import", `const m = import('./mod.js');`, true},
		{"comment with import word", `// this is important\nprint(1)`, false},
		{"require call", `const demo = require('demo');`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsBundling(tt.source))
		})
	}
}

func writeScript(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func TestBundleScript_NoImports(t *testing.T) {
	dir := t.TempDir()
	src := `print(new demo.Object(1, 2).a)`
	path := writeScript(t, dir, "main.js", src)

	result, err := BundleScript(path, nil)
	require.NoError(t, err)
	assert.Equal(t, src, result)
}

func TestBundleScript_WithImports(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "utils.js", `export function greet(name) { return "Hello " + name; }`)
	src := `import { greet } from './utils.js';
print(greet("World"));`
	path := writeScript(t, dir, "main.js", src)

	result, err := BundleScript(path, nil)
	require.NoError(t, err)
	assert.NotEqual(t, src, result)
	assert.Contains(t, result, "Hello ")
}

func TestBundleScript_NativeModule(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `const demo = require('demo');
print(demo.Object.staticMul(3, 4));`)

	result, err := BundleScript(path, []string{"demo"})
	require.NoError(t, err)
	assert.Contains(t, result, `globalThis["demo"]`)
}

func TestBundleScript_MissingFile(t *testing.T) {
	_, err := BundleScript(filepath.Join(t.TempDir(), "main.js"), nil)
	assert.Error(t, err)
}

func TestBundleScript_InvalidImport(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "main.js", `import { foo } from './nonexistent.js';
print(foo());`)

	_, err := BundleScript(path, nil)
	assert.Error(t, err)
}
