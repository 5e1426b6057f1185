// Package setup is the interactive first-run wizard.
package setup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"notifeeder/internal/config"
	"notifeeder/internal/feed"
	"notifeeder/internal/ingest"
	"notifeeder/internal/launchd"
	"notifeeder/internal/notify"
)

// DiscoverFunc validates a feed url and returns its source.
type DiscoverFunc func(ctx context.Context, url string) (feed.Source, error)

func discoverFeed(ctx context.Context, url string) (feed.Source, error) {
	d, err := ingest.Discover(ctx, nil, url, "")
	return d.Source, err
}

// Run executes the interactive setup flow:
// 1) greet, and offer to keep an existing config
// 2) ask for feeds and validate them
// 3) ask for the daemon interval
// 4) ask for the notification backend
// 5) write config and install the launchd agent (macOS)
func Run(ctx context.Context, cfgPath string, w io.Writer) error {
	if strings.TrimSpace(cfgPath) == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	cfgPath = config.ExpandPath(cfgPath)
	_, statErr := os.Stat(cfgPath)

	wiz := newWizardModel(statErr == nil, cfgPath, discoverFeed)
	res, err := tea.NewProgram(wiz, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	wm, ok := res.(*wizardModel)
	if !ok || wm.cancelled {
		return errors.New("setup cancelled")
	}

	cfg, err := wm.result()
	if err != nil {
		return err
	}
	if wm.override {
		path, err := config.Write(cfgPath, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nConfig written to %s\n", path)
	}

	if runtime.GOOS == "darwin" {
		fmt.Fprintln(w, "\nInstalling launchd agent to run on a schedule…")
		exe, _ := os.Executable()
		_, err := launchd.Install(launchd.InstallOptions{
			Interval:    time.Duration(wm.interval) * time.Minute,
			ProgramPath: exe,
			ProgramArgs: []string{"--config", cfgPath, "daemon", "--once"},
		})
		if err != nil {
			fmt.Fprintf(w, "launchd install failed: %v\n", err)
		} else {
			fmt.Fprintln(w, "launchd agent installed and loaded.")
		}
	} else {
		fmt.Fprintln(w, "\nNote: scheduling is only automated on macOS (launchd).")
		fmt.Fprintln(w, "Run 'notifeeder daemon' under systemd, or 'notifeeder daemon --once' from cron.")
	}

	fmt.Fprintln(w, "\nSetup complete!")
	fmt.Fprintln(w, "- Run 'notifeeder refresh' to fetch your feeds now")
	fmt.Fprintln(w, "- Run 'notifeeder browse' to read what was fetched")
	return nil
}

// -------------- Bubble Tea Wizard --------------
type wizardStep int

const (
	stepIntro wizardStep = iota
	stepConfigChoice
	stepFeeds
	stepInterval
	stepNotify
	stepNtfyTopic
	stepSummary
	stepDone
)

type wizardModel struct {
	step      wizardStep
	hasCfg    bool
	cfgPath   string
	override  bool
	cancelled bool
	discover  DiscoverFunc

	// Feeds
	feedInput textinput.Model
	feeds     []feed.Source
	checking  bool

	// Interval
	intervalInput textinput.Model
	interval      int

	// Notifications
	backend    string
	topicInput textinput.Model
	topic      string

	errMsg string
}

func newWizardModel(hasCfg bool, cfgPath string, discover DiscoverFunc) *wizardModel {
	feeds := textinput.New()
	feeds.Placeholder = "https://example.com/feed.xml, https://..."
	feeds.Focus()

	interval := textinput.New()
	interval.Placeholder = strconv.Itoa(config.Default().Ingest.IntervalMin)
	interval.Focus()

	topic := textinput.New()
	topic.Placeholder = "my-news or https://ntfy.example.com/my-news"
	topic.Focus()

	return &wizardModel{
		step:          stepIntro,
		hasCfg:        hasCfg,
		cfgPath:       cfgPath,
		discover:      discover,
		feedInput:     feeds,
		intervalInput: interval,
		interval:      config.Default().Ingest.IntervalMin,
		topicInput:    topic,
		backend:       notify.BackendLog,
	}
}

func (m *wizardModel) Init() tea.Cmd { return nil }

type feedsCheckedMsg struct {
	sources  []feed.Source
	failures []string
}

func (m *wizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (msg.Type == tea.KeyEsc && !m.checking) {
			m.cancelled = true
			return m, tea.Quit
		}
		switch m.step {
		case stepIntro:
			if msg.Type == tea.KeyEnter {
				if m.hasCfg {
					m.step = stepConfigChoice
				} else {
					m.override = true
					m.step = stepFeeds
				}
			}
		case stepConfigChoice:
			// o = override, k = keep
			switch strings.ToLower(string(msg.Runes)) {
			case "o":
				m.override = true
				m.step = stepFeeds
			case "k":
				m.override = false
				m.step = stepInterval
			}
		case stepFeeds:
			if m.checking {
				return m, nil
			}
			if msg.Type == tea.KeyEnter {
				urls := splitCSV(m.feedInput.Value())
				if len(urls) == 0 {
					m.step = stepInterval
					return m, nil
				}
				m.checking = true
				m.errMsg = ""
				return m, m.checkFeeds(urls)
			}
			var cmd tea.Cmd
			m.feedInput, cmd = m.feedInput.Update(msg)
			return m, cmd
		case stepInterval:
			if msg.Type == tea.KeyEnter {
				v := strings.TrimSpace(m.intervalInput.Value())
				if v != "" {
					n, err := parsePositiveInt(v)
					if err != nil {
						m.errMsg = "Please enter a positive integer (minutes)."
						return m, nil
					}
					m.interval = n
				}
				m.errMsg = ""
				if m.override {
					m.step = stepNotify
				} else {
					m.step = stepSummary
				}
				return m, nil
			}
			var cmd tea.Cmd
			m.intervalInput, cmd = m.intervalInput.Update(msg)
			return m, cmd
		case stepNotify:
			// l = log only, n = ntfy
			switch strings.ToLower(string(msg.Runes)) {
			case "l":
				m.backend = notify.BackendLog
				m.step = stepSummary
			case "n":
				m.backend = notify.BackendNtfy
				m.step = stepNtfyTopic
			}
		case stepNtfyTopic:
			if msg.Type == tea.KeyEnter {
				m.topic = strings.TrimSpace(m.topicInput.Value())
				if m.topic == "" {
					m.errMsg = "A topic is required for ntfy."
					return m, nil
				}
				m.errMsg = ""
				m.step = stepSummary
				return m, nil
			}
			var cmd tea.Cmd
			m.topicInput, cmd = m.topicInput.Update(msg)
			return m, cmd
		case stepSummary:
			if msg.Type == tea.KeyEnter {
				m.step = stepDone
				return m, tea.Quit
			}
		}
	case feedsCheckedMsg:
		m.checking = false
		m.feeds = msg.sources
		if len(msg.failures) > 0 {
			m.errMsg = "Could not use:\n  " + strings.Join(msg.failures, "\n  ") + "\nFix the list and press Enter again."
			return m, nil
		}
		m.errMsg = ""
		m.step = stepInterval
	}
	return m, nil
}

func (m *wizardModel) checkFeeds(urls []string) tea.Cmd {
	discover := m.discover
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var out feedsCheckedMsg
		for _, u := range urls {
			src, err := discover(ctx, u)
			if err != nil {
				out.failures = append(out.failures, fmt.Sprintf("%s (%v)", u, err))
				continue
			}
			out.sources = append(out.sources, src)
		}
		return out
	}
}

// result builds the config to write. When keeping an existing file only the
// interval is taken from the wizard.
func (m *wizardModel) result() (config.Config, error) {
	if !m.override {
		cfg, err := config.Load(m.cfgPath)
		if err != nil {
			return cfg, err
		}
		cfg.Ingest.IntervalMin = m.interval
		return cfg, nil
	}
	cfg := config.Default()
	for _, src := range m.feeds {
		cfg.Feeds = append(cfg.Feeds, config.Feed(src))
	}
	cfg.Ingest.IntervalMin = m.interval
	cfg.Notifications.Backend = m.backend
	if m.backend == notify.BackendNtfy {
		cfg.Notifications.Ntfy.Topic = m.topic
	}
	return cfg, nil
}

func (m *wizardModel) View() string {
	b := &strings.Builder{}
	switch m.step {
	case stepIntro:
		fmt.Fprintln(b, "Welcome to notifeeder setup!")
		fmt.Fprintln(b, "This wizard sets up your feeds, notifications and background refresh.")
		fmt.Fprintln(b, "\nPress Enter to begin · Esc to quit")
	case stepConfigChoice:
		fmt.Fprintf(b, "Found an existing config at %s\n", m.cfgPath)
		fmt.Fprintln(b, "Override it (a .bak copy is kept) or keep it?")
		fmt.Fprintln(b, "[o] Override    [k] Keep existing")
	case stepFeeds:
		fmt.Fprintln(b, "Step 1 – Feeds")
		fmt.Fprintln(b, "Enter one or more RSS or Atom feed URLs, separated by commas.")
		fmt.Fprintln(b, "You can add more later with 'notifeeder feeds add <url>'.")
		fmt.Fprintln(b)
		fmt.Fprintln(b, m.feedInput.View())
		if m.checking {
			fmt.Fprintln(b, "\nChecking feeds…")
		} else {
			fmt.Fprintln(b, "\nPress Enter to continue")
		}
	case stepInterval:
		fmt.Fprintln(b, "Step 2 – Refresh Interval")
		fmt.Fprintf(b, "How often should feeds be fetched? Minutes [%d]:\n", m.interval)
		fmt.Fprintln(b, m.intervalInput.View())
		fmt.Fprintln(b, "\nPress Enter to continue")
	case stepNotify:
		fmt.Fprintln(b, "Step 3 – Notifications")
		fmt.Fprintln(b, "Where should new-article notifications go?")
		fmt.Fprintln(b, "[l] Log only    [n] ntfy push notifications")
	case stepNtfyTopic:
		fmt.Fprintln(b, "Step 3 – ntfy Topic")
		fmt.Fprintln(b, "Enter a topic name (published on ntfy.sh) or a full topic URL:")
		fmt.Fprintln(b, m.topicInput.View())
		fmt.Fprintln(b, "\nPress Enter to continue")
	case stepSummary:
		fmt.Fprintln(b, "Summary")
		fmt.Fprintf(b, "Interval: %d minutes\n", m.interval)
		if m.override {
			if len(m.feeds) > 0 {
				fmt.Fprintln(b, "Feeds:")
				for _, src := range m.feeds {
					fmt.Fprintf(b, "  - %s  # %s\n", src.URL, src.Title)
				}
			}
			fmt.Fprintf(b, "Notifications: %s", m.backend)
			if m.topic != "" {
				fmt.Fprintf(b, " (%s)", m.topic)
			}
			fmt.Fprintf(b, "\n\nThe configuration file will be written to %s.\n", m.cfgPath)
		} else {
			fmt.Fprintln(b, "\nKeeping existing config. Only the launchd schedule will be installed/updated.")
		}
		fmt.Fprintln(b, "\nPress Enter to finish · Esc to cancel")
	case stepDone:
		fmt.Fprintln(b, "Finishing…")
	}
	if m.errMsg != "" {
		fmt.Fprintf(b, "\n%s\n", m.errMsg)
	}
	return b.String()
}

func splitCSV(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive: %d", n)
	}
	return n, nil
}
