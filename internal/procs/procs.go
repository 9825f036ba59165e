// Package procs describes the backend processes run under the process
// manager next to this server. The processes themselves live elsewhere; this
// package only declares, validates, and exports their launch settings.
package procs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type App struct {
	Name         string            `yaml:"name"`
	Script       string            `yaml:"script"`
	Args         string            `yaml:"args,omitempty"`
	Interpreter  string            `yaml:"interpreter,omitempty"`
	Cwd          string            `yaml:"cwd,omitempty"`
	Autorestart  bool              `yaml:"autorestart"`
	MaxRestarts  int               `yaml:"max_restarts"`
	RestartDelay time.Duration     `yaml:"restart_delay"`
	OutFile      string            `yaml:"out_file,omitempty"`
	ErrorFile    string            `yaml:"error_file,omitempty"`
	Env          map[string]string `yaml:"env,omitempty"`
}

type Config struct {
	Apps []App `yaml:"apps"`
}

// Default declares the main outreach API on :5000 and the email responder on
// :3001.
func Default() *Config {
	env := func() map[string]string {
		return map[string]string{"NODE_ENV": "production"}
	}
	return &Config{Apps: []App{
		{
			Name:         "main_server",
			Script:       "uvicorn",
			Args:         "main:app --host 0.0.0.0 --port 5000",
			Interpreter:  "python3",
			Autorestart:  true,
			MaxRestarts:  10,
			RestartDelay: 3 * time.Second,
			OutFile:      "logs/main_server.out.log",
			ErrorFile:    "logs/main_server.err.log",
			Env:          env(),
		},
		{
			Name:         "responder_server",
			Script:       "uvicorn",
			Args:         "responder_server:app --host 0.0.0.0 --port 3001",
			Interpreter:  "python3",
			Autorestart:  true,
			MaxRestarts:  10,
			RestartDelay: 3 * time.Second,
			OutFile:      "logs/responder_server.out.log",
			ErrorFile:    "logs/responder_server.err.log",
			Env:          env(),
		},
	}}
}

func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(fs afero.Fs, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, data, 0o644)
}

// Validate reports every problem found, joined into one error.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Apps) == 0 {
		errs = append(errs, errors.New("no apps declared"))
	}

	names := make(map[string]bool)
	ports := make(map[int]string)
	for i, app := range c.Apps {
		label := app.Name
		if label == "" {
			label = "#" + strconv.Itoa(i)
			errs = append(errs, fmt.Errorf("app %s: name is required", label))
		} else if names[app.Name] {
			errs = append(errs, fmt.Errorf("app %s: duplicate name", label))
		}
		names[app.Name] = true

		if app.Script == "" {
			errs = append(errs, fmt.Errorf("app %s: script is required", label))
		}
		if app.MaxRestarts < 0 || app.RestartDelay < 0 {
			errs = append(errs, fmt.Errorf("app %s: restart settings must not be negative", label))
		}

		port, ok, err := app.Port()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("app %s: %w", label, err))
		case ok:
			if other, taken := ports[port]; taken {
				errs = append(errs, fmt.Errorf("app %s: port %d already used by %s", label, port, other))
			}
			ports[port] = label
		}
	}
	return errors.Join(errs...)
}

// Port extracts the value of a --port flag from Args. ok is false when the
// app declares no port.
func (a App) Port() (port int, ok bool, err error) {
	fields := strings.Fields(a.Args)
	for i, f := range fields {
		var val string
		switch {
		case f == "--port":
			// A trailing --port has an empty value and fails below.
			if i+1 < len(fields) {
				val = fields[i+1]
			}
		case strings.HasPrefix(f, "--port="):
			val = strings.TrimPrefix(f, "--port=")
		default:
			continue
		}
		p, err := strconv.Atoi(val)
		if err != nil || p < 1 || p > 65535 {
			return 0, false, fmt.Errorf("invalid port %q", val)
		}
		return p, true, nil
	}
	return 0, false, nil
}

type ecosystemApp struct {
	Name         string            `json:"name"`
	Script       string            `json:"script"`
	Args         string            `json:"args,omitempty"`
	Interpreter  string            `json:"interpreter,omitempty"`
	Cwd          string            `json:"cwd,omitempty"`
	Autorestart  bool              `json:"autorestart"`
	MaxRestarts  int               `json:"max_restarts"`
	RestartDelay int64             `json:"restart_delay"`
	OutFile      string            `json:"out_file,omitempty"`
	ErrorFile    string            `json:"error_file,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
}

// Ecosystem renders the config in the process manager's ecosystem JSON shape.
// restart_delay is expressed in milliseconds.
func (c *Config) Ecosystem() ([]byte, error) {
	apps := make([]ecosystemApp, 0, len(c.Apps))
	for _, a := range c.Apps {
		apps = append(apps, ecosystemApp{
			Name:         a.Name,
			Script:       a.Script,
			Args:         a.Args,
			Interpreter:  a.Interpreter,
			Cwd:          a.Cwd,
			Autorestart:  a.Autorestart,
			MaxRestarts:  a.MaxRestarts,
			RestartDelay: a.RestartDelay.Milliseconds(),
			OutFile:      a.OutFile,
			ErrorFile:    a.ErrorFile,
			Env:          a.Env,
		})
	}
	return json.MarshalIndent(map[string]any{"apps": apps}, "", "  ")
}
