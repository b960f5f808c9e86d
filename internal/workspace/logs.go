package workspace

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogArchive owns the per-session log file and the per-run snapshots kept
// under <workspace>/logs.
type LogArchive struct {
	mu          sync.Mutex
	rootDir     string
	runsDir     string
	sessionFile string
	file        *os.File
}

type runSnapshot struct {
	CapturedAt string `json:"captured_at"`
	RunID      string `json:"run_id"`
	Trigger    string `json:"trigger"`
	Result     any    `json:"result"`
}

func OpenLogArchive(workspaceRoot string, now time.Time) (*LogArchive, error) {
	rootDir := filepath.Join(workspaceRoot, "logs")
	runsDir := filepath.Join(rootDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create runs dir: %w", err)
	}
	sessionFile := filepath.Join(rootDir, "session-"+now.Format("20060102-150405")+".log")
	f, err := os.OpenFile(sessionFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	return &LogArchive{
		rootDir:     rootDir,
		runsDir:     runsDir,
		sessionFile: sessionFile,
		file:        f,
	}, nil
}

func (a *LogArchive) SessionFile() string {
	if a == nil {
		return ""
	}
	return a.sessionFile
}

// Write appends to the session log. It is safe for concurrent use.
func (a *LogArchive) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Write(p)
}

var _ io.Writer = (*LogArchive)(nil)

func (a *LogArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// PersistRunSnapshot writes result as JSON under logs/runs and returns the
// file path.
func (a *LogArchive) PersistRunSnapshot(runID, trigger string, result any) (string, error) {
	if a == nil {
		return "", fmt.Errorf("log archive unavailable")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	name := time.Now().Format("20060102-150405")
	if id := sanitizeForFilename(runID); id != "" {
		name += "-" + id
	}
	trigger = sanitizeForFilename(trigger)
	if trigger != "" {
		name += "-" + trigger
	}
	path := filepath.Join(a.runsDir, name+".json")
	snap := runSnapshot{
		CapturedAt: time.Now().Format(time.RFC3339),
		RunID:      runID,
		Trigger:    trigger,
		Result:     result,
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal run snapshot: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write run snapshot: %w", err)
	}
	return path, nil
}

// ExportZip bundles every file under the logs directory into dest.
func (a *LogArchive) ExportZip(dest string) error {
	if a == nil {
		return fmt.Errorf("log archive unavailable")
	}
	return exportLogs(a.rootDir, dest)
}

func exportLogs(rootDir, dest string) error {
	if strings.TrimSpace(dest) == "" {
		return fmt.Errorf("destination path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()

	zipWriter := zip.NewWriter(out)

	err = filepath.WalkDir(rootDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		w, err := zipWriter.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zipWriter.Close()
		return fmt.Errorf("collect log files: %w", err)
	}
	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func sanitizeForFilename(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}
