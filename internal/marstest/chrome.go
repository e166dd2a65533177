package marstest

import (
	"os/exec"
	"testing"
)

var chromeNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// ChromePath returns the first Chrome binary on PATH. The test is skipped
// when there is none or when running with -short.
func ChromePath(t testing.TB) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping chrome test in short mode")
	}
	for _, name := range chromeNames {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("chrome not found on PATH")
	return ""
}
