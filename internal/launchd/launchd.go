// Package launchd installs the daemon as a macOS user agent that runs
// "daemon --once" on a fixed interval.
package launchd

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// DefaultLabel identifies the agent to launchctl.
const DefaultLabel = "com.notifeeder.daemon"

const defaultInterval = 15 * time.Minute

var errUnsupported = errors.New("launchd is only available on macOS")

// InstallOptions config for creating/loading a launchd agent.
type InstallOptions struct {
	Label       string
	Interval    time.Duration
	ProgramPath string   // absolute path to this binary
	ProgramArgs []string // args after ProgramPath
	LogPath     string   // stdout and stderr of the agent
	PlistPath   string   // optional custom plist path
}

func (o InstallOptions) withDefaults() InstallOptions {
	if strings.TrimSpace(o.Label) == "" {
		o.Label = DefaultLabel
	}
	if o.Interval < time.Minute {
		o.Interval = defaultInterval
	}
	if len(o.ProgramArgs) == 0 {
		o.ProgramArgs = []string{"daemon", "--once"}
	}
	if o.LogPath == "" {
		o.LogPath = DefaultLogPath()
	}
	return o
}

// DefaultLogPath is where launchd writes the agent's output.
func DefaultLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "notifeeder.launchd.log")
	}
	return filepath.Join(home, "Library", "Logs", "Notifeeder", "daemon.launchd.log")
}

func DefaultAgentPath(label string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "LaunchAgents", label+".plist"), nil
}

var plistTmpl = template.Must(template.New("plist").Funcs(template.FuncMap{"x": escape}).Parse(
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
  <dict>
    <key>Label</key>
    <string>{{x .Label}}</string>
    <key>ProgramArguments</key>
    <array>
      <string>{{x .ProgramPath}}</string>
{{- range .ProgramArgs}}
      <string>{{x .}}</string>
{{- end}}
    </array>
    <key>StartInterval</key>
    <integer>{{.Seconds}}</integer>
    <key>RunAtLoad</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{x .LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{x .LogPath}}</string>
  </dict>
</plist>
`))

func escape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// BuildPlist renders the agent definition. The daemon exits after each run,
// so the agent relies on StartInterval rather than KeepAlive.
func BuildPlist(opt InstallOptions) ([]byte, error) {
	if opt.ProgramPath == "" {
		return nil, errors.New("program path required")
	}
	opt = opt.withDefaults()
	var buf bytes.Buffer
	err := plistTmpl.Execute(&buf, struct {
		InstallOptions
		Seconds int
	}{opt, int(opt.Interval / time.Second)})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Install writes the plist and loads it via launchctl.
func Install(opt InstallOptions) (string, error) {
	if runtime.GOOS != "darwin" {
		return "", errUnsupported
	}
	opt = opt.withDefaults()
	plistPath := opt.PlistPath
	if strings.TrimSpace(plistPath) == "" {
		var err error
		if plistPath, err = DefaultAgentPath(opt.Label); err != nil {
			return "", err
		}
	}
	data, err := BuildPlist(opt)
	if err != nil {
		return "", err
	}
	for _, dir := range []string{filepath.Dir(plistPath), filepath.Dir(opt.LogPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(plistPath, data, 0o644); err != nil {
		return "", err
	}

	lctl := launchctlPath()
	if lctl == "" {
		return plistPath, errors.New("launchctl not found in /bin, /usr/bin, or PATH")
	}
	domain := userDomain()
	// a stale agent makes bootstrap fail
	_ = exec.Command(lctl, "bootout", domain+"/"+opt.Label).Run()
	if err := exec.Command(lctl, "bootstrap", domain, plistPath).Run(); err != nil {
		if err2 := exec.Command(lctl, "load", "-w", plistPath).Run(); err2 != nil {
			return plistPath, fmt.Errorf("launchctl bootstrap/load failed: %v / %v", err, err2)
		}
		return plistPath, nil
	}
	_ = exec.Command(lctl, "enable", domain+"/"+opt.Label).Run()
	return plistPath, nil
}

// Uninstall unloads and removes the plist.
func Uninstall(label, plistPath string) error {
	if runtime.GOOS != "darwin" {
		return errUnsupported
	}
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}
	if strings.TrimSpace(plistPath) == "" {
		var err error
		if plistPath, err = DefaultAgentPath(label); err != nil {
			return err
		}
	}
	lctl := launchctlPath()
	if lctl == "" {
		return errors.New("launchctl not found")
	}
	if err := exec.Command(lctl, "bootout", userDomain(), plistPath).Run(); err != nil {
		_ = exec.Command(lctl, "unload", "-w", plistPath).Run()
	}
	if err := os.Remove(plistPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// AgentStatus describes the installed agent.
type AgentStatus struct {
	Loaded    bool
	State     string
	PlistPath string
	Interval  time.Duration
}

// Status reports whether the agent is loaded and how often it runs.
func Status(label string) AgentStatus {
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}
	st := AgentStatus{State: "unsupported"}
	if runtime.GOOS != "darwin" {
		return st
	}
	if p, err := DefaultAgentPath(label); err == nil {
		if f, err := os.Open(p); err == nil {
			st.PlistPath = p
			st.Interval, _ = ExtractStartInterval(f)
			f.Close()
		}
	}
	lctl := launchctlPath()
	if lctl == "" {
		st.State = "launchctl not found"
		return st
	}
	out, err := exec.Command(lctl, "print", userDomain()+"/"+label).CombinedOutput()
	if err != nil {
		st.State = "not loaded"
		return st
	}
	st.Loaded, st.State = true, "loaded"
	for _, ln := range strings.Split(string(out), "\n") {
		if strings.Contains(ln, "state = ") {
			st.State = strings.TrimSpace(ln)
			break
		}
	}
	return st
}

func userDomain() string {
	return fmt.Sprintf("gui/%d", os.Getuid())
}

func launchctlPath() string {
	for _, c := range []string{"/bin/launchctl", "/usr/bin/launchctl"} {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	if p, err := exec.LookPath("launchctl"); err == nil {
		return p
	}
	return ""
}

// ExtractStartInterval reads the StartInterval value from a plist.
func ExtractStartInterval(r io.Reader) (time.Duration, error) {
	dec := xml.NewDecoder(r)
	var (
		lastKey string
		inValue bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return 0, errors.New("StartInterval not found")
		}
		if err != nil {
			return 0, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			inValue = lastKey == "StartInterval" && t.Name.Local == "integer"
			if t.Name.Local == "key" {
				var k string
				if err := dec.DecodeElement(&k, &t); err != nil {
					return 0, err
				}
				lastKey = strings.TrimSpace(k)
			}
		case xml.CharData:
			if inValue {
				n, err := strconv.Atoi(strings.TrimSpace(string(t)))
				if err != nil {
					return 0, fmt.Errorf("invalid StartInterval: %w", err)
				}
				return time.Duration(n) * time.Second, nil
			}
		}
	}
}
