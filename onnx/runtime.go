package onnx

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	ort "github.com/yalue/onnxruntime_go"
)

const libPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// LibPath picks the ONNX Runtime shared library: the configured override, then
// the environment, then a per-OS default.
func LibPath(override string) string {
	if override != "" {
		return override
	}
	if p := os.Getenv(libPathEnv); p != "" {
		return p
	}
	switch runtime.GOOS {
	case "linux":
		path := filepath.Join("onnxlibs", "libonnxruntime-linux-x64.so.1.23.2")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return "libonnxruntime.so"
	case "darwin":
		return "/usr/local/lib/libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return ""
	}
}

// Init loads the shared library and initializes the global environment. The
// caller owns the matching ort.DestroyEnvironment.
func Init(libPath string) error {
	if libPath == "" {
		return fmt.Errorf("ONNX Runtime library path could not be determined for %s", runtime.GOOS)
	}
	slog.Info("Using ONNX Runtime library", slog.String("path", libPath))
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	return nil
}
