package autostart

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"dailysync/internal/util"
)

const unitName = "dailysync.service"

var serviceTemplate = template.Must(template.New("service").Parse(`[Unit]
Description=DailySync Folder Mirror Daemon
After=default.target

[Service]
ExecStart="{{.ExecPath}}" {{.Command}}
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`))

type LinuxAutoStarter struct {
	// Dir overrides the systemd user unit directory.
	Dir string
	// Run executes systemctl; nil uses os/exec.
	Run func(args ...string) ([]byte, error)
}

func (l *LinuxAutoStarter) servicePath() (string, error) {
	dir := l.Dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config", "systemd", "user")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, unitName), nil
}

func (l *LinuxAutoStarter) systemctl(args ...string) ([]byte, error) {
	args = append([]string{"--user"}, args...)
	if l.Run != nil {
		return l.Run(args...)
	}
	return exec.Command("systemctl", args...).CombinedOutput()
}

func renderService(w io.Writer, execPath string) error {
	return serviceTemplate.Execute(w, map[string]string{
		"ExecPath": execPath,
		"Command":  Command,
	})
}

func (l *LinuxAutoStarter) Install(execPath string) error {
	path, err := l.servicePath()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := renderService(f, execPath); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", unitName},
		{"start", unitName},
	}

	for _, args := range steps {
		if out, err := l.systemctl(args...); err != nil {
			return fmt.Errorf("failed to run systemctl %v: %w\n%s", args, err, out)
		}
	}

	return nil
}

func (l *LinuxAutoStarter) Uninstall() error {
	_, _ = l.systemctl("stop", unitName)
	_, _ = l.systemctl("disable", unitName)

	path, err := l.servicePath()
	if err != nil {
		return err
	}

	return util.RemoveIfExists(path)
}

func (l *LinuxAutoStarter) IsInstalled() (bool, error) {
	path, err := l.servicePath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	return err == nil, nil
}
