package session

import (
	"path/filepath"

	"go.uber.org/zap"
)

// EnvChromePath overrides executable discovery.
const EnvChromePath = "CHROME_PATH"

// knownPaths are the usual install locations per GOOS.
var knownPaths = map[string][]string{
	"darwin": {
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
		"/Applications/Google Chrome Canary.app/Contents/MacOS/Google Chrome Canary",
	},
	"linux": {
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
	},
	"windows": {
		`C:\Program Files\Google\Chrome\Application\chrome.exe`,
		`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
	},
}

// bareNames are resolved through PATH as the last resort.
var bareNames = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

// ResolveExecutable finds the browser binary. It checks CHROME_PATH, then the
// configured path, then the platform's known install locations, then bare
// names on PATH.
func (m *Manager) ResolveExecutable() (string, error) {
	if p := m.getenv(EnvChromePath); p != "" {
		if m.isFile(p) {
			return p, nil
		}
		m.logger.Warn("CHROME_PATH does not point to a file, continuing discovery.", zap.String("path", p))
	}

	if p := m.cfg.ExecutablePath; p != "" {
		if m.isFile(p) {
			return p, nil
		}
		m.logger.Warn("Configured browser.executable_path does not exist, continuing discovery.", zap.String("path", p))
	}

	if m.goos == "windows" {
		if local := m.getenv("LOCALAPPDATA"); local != "" {
			p := filepath.Join(local, "Google", "Chrome", "Application", "chrome.exe")
			if m.isFile(p) {
				return p, nil
			}
		}
	}
	for _, p := range knownPaths[m.goos] {
		if m.isFile(p) {
			return p, nil
		}
	}

	for _, name := range bareNames {
		if p, err := m.lookPath(name); err == nil {
			return p, nil
		}
	}
	return "", ErrExecutableNotFound
}

func (m *Manager) isFile(path string) bool {
	info, err := m.stat(path)
	return err == nil && !info.IsDir()
}
