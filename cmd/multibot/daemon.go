package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/spf13/cobra"

	"multibot/internal/config"
)

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the MultiBot background daemon",
	}
	cmd.AddCommand(installDaemonCmd())
	cmd.AddCommand(uninstallDaemonCmd())
	cmd.AddCommand(daemonStatusCmd())
	return cmd
}

// service describes the platform's unit: where its definition file
// lives, which template renders it, and how the user drives it.
type service struct {
	Exec    string
	Config  string
	Label   string
	LogFile string
	ErrFile string

	unitPath string
	tmpl     *template.Template
	usage    []string
}

const launchdLabel = "com.multibot.gateway"

// resolveService builds the descriptor for the current OS. Log files
// land next to the configured data directory so every artifact of a
// deployment shares one root; a broken config falls back to the
// default location.
func resolveService() (*service, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("cannot determine executable path: %w", err)
	}
	cfgPath := resolveConfigPath()

	logDir := filepath.Join(config.ExpandPath("~/.multibot"), "logs")
	if cfg, err := config.Load(cfgPath); err == nil && cfg.General.DataDir != "" {
		logDir = filepath.Join(cfg.General.DataDir, "logs")
	}

	svc := &service{
		Exec:    execPath,
		Config:  cfgPath,
		Label:   launchdLabel,
		LogFile: filepath.Join(logDir, "multibot.log"),
		ErrFile: filepath.Join(logDir, "multibot-error.log"),
	}

	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		svc.unitPath = filepath.Join(home, "Library", "LaunchAgents", launchdLabel+".plist")
		svc.tmpl = launchdTemplate
		svc.usage = []string{
			"To start: launchctl load " + svc.unitPath,
			"To stop:  launchctl unload " + svc.unitPath,
		}
	case "linux":
		home, _ := os.UserHomeDir()
		svc.unitPath = filepath.Join(home, ".config", "systemd", "user", "multibot.service")
		svc.tmpl = systemdTemplate
		svc.usage = []string{
			"To start:  systemctl --user start multibot",
			"To enable: systemctl --user enable multibot",
			"To stop:   systemctl --user stop multibot",
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s (supported: darwin, linux)", runtime.GOOS)
	}
	return svc, nil
}

func (s *service) install() error {
	if err := os.MkdirAll(filepath.Dir(s.LogFile), 0o755); err != nil {
		return fmt.Errorf("cannot create log directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.unitPath), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(s.unitPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := s.tmpl.Execute(f, s); err != nil {
		return fmt.Errorf("cannot render service file: %w", err)
	}

	fmt.Printf("Daemon installed: %s\n", s.unitPath)
	for _, line := range s.usage {
		fmt.Println(line)
	}
	return nil
}

func (s *service) uninstall() error {
	if err := os.Remove(s.unitPath); err != nil {
		return fmt.Errorf("remove service file: %w", err)
	}
	fmt.Printf("Daemon uninstalled: %s\n", s.unitPath)
	return nil
}

func installDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Install MultiBot as a system daemon (launchd/systemd)",
		Long:  "Generates and installs a service file that runs 'multibot gateway' as a background daemon on system startup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolveService()
			if err != nil {
				return err
			}
			return svc.install()
		},
	}
}

func uninstallDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove MultiBot system daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolveService()
			if err != nil {
				return err
			}
			return svc.uninstall()
		},
	}
}

func daemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the MultiBot daemon is installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := resolveService()
			if err != nil {
				return err
			}
			if _, err := os.Stat(svc.unitPath); err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Daemon not installed")
					return nil
				}
				return err
			}
			fmt.Printf("Daemon installed: %s\n", svc.unitPath)
			fmt.Printf("Logs: %s\n", svc.LogFile)
			return nil
		},
	}
}

var launchdTemplate = template.Must(template.New("launchd").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.Exec}}</string>
        <string>gateway</string>
        <string>--config</string>
        <string>{{.Config}}</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogFile}}</string>
    <key>StandardErrorPath</key>
    <string>{{.ErrFile}}</string>
</dict>
</plist>
`))

var systemdTemplate = template.Must(template.New("systemd").Parse(`[Unit]
Description=MultiBot Chat Gateway
After=network.target

[Service]
Type=simple
ExecStart={{.Exec}} gateway --config {{.Config}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogFile}}
StandardError=append:{{.ErrFile}}

[Install]
WantedBy=default.target
`))
