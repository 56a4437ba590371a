package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// BackendName is the bundled backend executable, without extension.
const BackendName = "media-organizer-backend"

// manifestFile optionally maps the backend to a bundle-relative path.
const manifestFile = "sidecar.yaml"

type manifest struct {
	Sidecar struct {
		Name string `yaml:"name"`
		Path string `yaml:"path"`
	} `yaml:"sidecar"`
}

func platformBinary(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// Resolve locates the backend executable inside the application bundle.
// A sidecar.yaml manifest next to the shell binary wins; otherwise the
// backend must sit in the same directory. The returned path exists and
// is a regular file.
func Resolve(bundleDir string) (string, error) {
	if bundleDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("cannot locate own executable: %w", err)
		}
		bundleDir = filepath.Dir(exe)
	}

	binary := platformBinary(BackendName)

	if path, err := resolveFromManifest(bundleDir, binary); err != nil {
		return "", err
	} else if path != "" {
		return path, nil
	}

	candidate := filepath.Join(bundleDir, binary)
	if err := checkExecutable(candidate); err != nil {
		return "", fmt.Errorf("backend executable not found in bundle: %w", err)
	}
	return candidate, nil
}

// resolveFromManifest returns "" when no manifest exists. A manifest
// that names a missing binary is an error, not a fallback.
func resolveFromManifest(bundleDir, binary string) (string, error) {
	data, err := os.ReadFile(filepath.Join(bundleDir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("cannot read %s: %w", manifestFile, err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("invalid %s: %w", manifestFile, err)
	}
	if m.Sidecar.Path == "" {
		return "", nil
	}
	if m.Sidecar.Name != "" && m.Sidecar.Name != BackendName {
		return "", fmt.Errorf("%s names unknown sidecar %q", manifestFile, m.Sidecar.Name)
	}

	path := m.Sidecar.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(bundleDir, path)
	}
	if err := checkExecutable(path); err != nil {
		return "", fmt.Errorf("%s points at missing backend: %w", manifestFile, err)
	}
	return path, nil
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", path)
	}
	return nil
}
