package njs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

const nativeNamespace = "njs-native"

// BundleScript uses esbuild to bundle the script at path with all its
// imports into a single self-contained script that can be handed to
// Runtime.RunScript. Imports of the named native modules resolve to the
// global of the same name installed by Runtime.Expose.
//
// If the source doesn't contain any import statements, it's returned as-is
// to avoid unnecessary processing.
func BundleScript(path string, modules []string) (string, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	src := string(source)
	if !needsBundling(src) {
		return src, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	opts := esbuild.BuildOptions{
		EntryPoints:   []string{abs},
		AbsWorkingDir: filepath.Dir(abs),
		Bundle:        true,
		Format:        esbuild.FormatIIFE,
		Write:         false,
		Platform:      esbuild.PlatformNeutral,
		Target:        esbuild.ES2020,
		LogLevel:      esbuild.LogLevelSilent,
	}
	if len(modules) > 0 {
		opts.Plugins = []esbuild.Plugin{nativeModules(modules)}
	}

	result := esbuild.Build(opts)

	if len(result.Errors) > 0 {
		var msgs []string
		for _, e := range result.Errors {
			msgs = append(msgs, e.Text)
		}
		return "", fmt.Errorf("bundling %s: %s", filepath.Base(path), strings.Join(msgs, "; "))
	}

	if len(result.OutputFiles) == 0 {
		return "", fmt.Errorf("bundling produced no output")
	}

	return string(result.OutputFiles[0].Contents), nil
}

// nativeModules resolves imports of native module names to their globals.
func nativeModules(names []string) esbuild.Plugin {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	filter := "^(" + strings.Join(quoted, "|") + ")$"

	return esbuild.Plugin{
		Name: nativeNamespace,
		Setup: func(build esbuild.PluginBuild) {
			build.OnResolve(esbuild.OnResolveOptions{Filter: filter},
				func(args esbuild.OnResolveArgs) (esbuild.OnResolveResult, error) {
					return esbuild.OnResolveResult{Path: args.Path, Namespace: nativeNamespace}, nil
				})
			build.OnLoad(esbuild.OnLoadOptions{Filter: ".*", Namespace: nativeNamespace},
				func(args esbuild.OnLoadArgs) (esbuild.OnLoadResult, error) {
					contents := fmt.Sprintf("module.exports = globalThis[%q];", args.Path)
					return esbuild.OnLoadResult{Contents: &contents, Loader: esbuild.LoaderJS}, nil
				})
		},
	}
}

// needsBundling checks if a script contains import statements that
// require bundling. Simple scripts without imports can skip this step.
func needsBundling(source string) bool {
	return strings.Contains(source, "import ") ||
		strings.Contains(source, "import{") ||
		strings.Contains(source, "import(") ||
		strings.Contains(source, "require(")
}
