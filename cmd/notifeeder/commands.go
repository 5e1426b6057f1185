package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"notifeeder/internal/config"
	"notifeeder/internal/daemon"
	"notifeeder/internal/ingest"
	"notifeeder/internal/launchd"
	"notifeeder/internal/list"
	"notifeeder/internal/logging"
	"notifeeder/internal/notify"
	"notifeeder/internal/server"
	"notifeeder/internal/setup"
	"notifeeder/internal/tui"
)

func out(c *cli.Command) io.Writer {
	if w := c.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func loadConfig(c *cli.Command) (config.Config, error) {
	return config.Load(c.String("config"))
}

// withService opens the database for one command and closes it afterwards.
func withService(ctx context.Context, c *cli.Command, fn func(*ingest.Service) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	closeLog, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	if err != nil {
		log.WithError(err).Warn("log file unavailable, logging to stderr")
	}
	defer closeLog()
	svc, err := ingest.Open(ctx, cfg, nil, log.NewEntry(log.StandardLogger()))
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(svc)
}

func requireArgs(c *cli.Command, n int) error {
	if c.NArg() < n {
		return fmt.Errorf("usage: %s %s", c.FullName(), c.ArgsUsage)
	}
	return nil
}

func runDaemon(ctx context.Context, c *cli.Command) error {
	return daemon.Run(ctx, daemon.Options{
		Once:          c.Bool("once"),
		LogFile:       c.String("log-file"),
		MetricsListen: c.String("metrics-listen"),
	}, config.Loader(c.String("config")))
}

func installAgent(ctx context.Context, c *cli.Command) error {
	exe, _ := os.Executable()
	if strings.TrimSpace(exe) == "" {
		return errors.New("cannot discover program path")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	interval := cfg.Ingest.Interval()
	if m := c.Int("interval-minutes"); m > 0 {
		interval = time.Duration(m) * time.Minute
	}
	args := []string{"daemon", "--once"}
	if p := c.String("config"); strings.TrimSpace(p) != "" {
		abs, err := filepath.Abs(config.ExpandPath(p))
		if err != nil {
			return err
		}
		args = append([]string{"--config", abs}, args...)
	}
	path, err := launchd.Install(launchd.InstallOptions{
		Label:       c.String("label"),
		Interval:    interval,
		ProgramPath: exe,
		ProgramArgs: args,
		LogPath:     config.ExpandPath(c.String("log-file")),
		PlistPath:   c.String("plist"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out(c), "launchd agent installed and loaded: %s (every %s)\n", path, interval)
	return nil
}

func uninstallAgent(ctx context.Context, c *cli.Command) error {
	if err := launchd.Uninstall(c.String("label"), c.String("plist")); err != nil {
		return err
	}
	fmt.Fprintln(out(c), "launchd agent unloaded and removed")
	return nil
}

func agentStatus(ctx context.Context, c *cli.Command) error {
	st := launchd.Status(c.String("label"))
	w := out(c)
	fmt.Fprintf(w, "Loaded: %t\nState: %s\n", st.Loaded, st.State)
	if st.PlistPath != "" {
		fmt.Fprintf(w, "Plist: %s\n", st.PlistPath)
	}
	if st.Interval > 0 {
		fmt.Fprintf(w, "Interval: %s\n", st.Interval)
	}
	return nil
}

func refresh(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		res, err := svc.Runner.RunOnce(ctx)
		if err != nil {
			return err
		}
		w := out(c)
		for _, src := range svc.State.Sources.List() {
			fmt.Fprintf(w, "%-40s %d entries\n", src.Title, res.Fetched[src.URL])
		}
		fmt.Fprintf(w, "\n%d new articles, %d notified\n", len(res.New), len(res.Notified))
		for _, e := range res.New {
			fmt.Fprintf(w, "  + %s (%s)\n", e.Title, e.Link)
		}
		return nil
	})
}

func listFeeds(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		st := svc.State
		sources := st.Sources.List()
		w := out(c)
		if len(sources) == 0 {
			fmt.Fprintln(w, "No feeds configured. Add one with `notifeeder feeds add <url>`.")
			return nil
		}
		_, known := st.Preferences.Snapshot()
		for _, src := range sources {
			notifyOn := st.Preferences.FeedEnabled(src.URL) || !lo.Contains(known, src.URL)
			mark := "on"
			if !notifyOn {
				mark = "off"
			}
			fmt.Fprintf(w, "%s\n  %s\n  notifications: %s, cached: %d\n", src.Title, src.URL, mark, len(st.Articles.Articles(src.URL)))
		}
		return nil
	})
}

func addFeed(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withService(ctx, c, func(svc *ingest.Service) error {
		d, err := ingest.Discover(ctx, svc.Pipeline.Fetcher.Client, c.Args().First(), c.String("title"))
		if err != nil {
			return err
		}
		if err := svc.State.Sources.Add(ctx, d.Source); err != nil {
			return err
		}
		fmt.Fprintf(out(c), "Added %q (%s feed, %d items): %s\n", d.Source.Title, d.Type, d.Items, d.Source.URL)
		return nil
	})
}

func removeFeed(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withService(ctx, c, func(svc *ingest.Service) error {
		url := strings.TrimSpace(c.Args().First())
		if err := svc.State.RemoveFeed(ctx, url); err != nil {
			return err
		}
		fmt.Fprintf(out(c), "Removed %s\n", url)
		return nil
	})
}

func renameFeed(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	return withService(ctx, c, func(svc *ingest.Service) error {
		title := strings.Join(c.Args().Slice()[1:], " ")
		if err := svc.State.Sources.Rename(ctx, c.Args().First(), title); err != nil {
			return err
		}
		fmt.Fprintf(out(c), "Renamed to %q\n", strings.TrimSpace(title))
		return nil
	})
}

func feedNotifications(on bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		if err := requireArgs(c, 1); err != nil {
			return err
		}
		return withService(ctx, c, func(svc *ingest.Service) error {
			url := strings.TrimSpace(c.Args().First())
			if _, ok := svc.State.Sources.Get(url); !ok {
				return fmt.Errorf("feed not configured: %s", url)
			}
			if err := svc.State.Preferences.SetFeedEnabled(ctx, url, on); err != nil {
				return err
			}
			fmt.Fprintf(out(c), "Notifications %s for %s\n", onOff(on), url)
			return nil
		})
	}
}

func setNotifications(on bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		return withService(ctx, c, func(svc *ingest.Service) error {
			if err := svc.State.Preferences.SetEnabled(ctx, on); err != nil {
				return err
			}
			fmt.Fprintf(out(c), "Notifications %s\n", onOff(on))
			if on && !svc.Config.Notifications.Enabled {
				fmt.Fprintln(out(c), "Note: notifications.enabled is false in the config file, nothing will be sent.")
			}
			return nil
		})
	}
}

func notificationStatus(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		n := svc.Config.Notifications
		w := out(c)
		fmt.Fprintf(w, "Notifications: %s\n", onOff(svc.State.Preferences.Enabled()))
		fmt.Fprintf(w, "Config enabled: %t\n", n.Enabled)
		fmt.Fprintf(w, "Backend: %s\n", n.Backend)
		fmt.Fprintf(w, "Max per cycle: %d\n", n.MaxPerCycle)
		enabled, known := svc.State.Preferences.Snapshot()
		fmt.Fprintf(w, "Feeds enabled: %d of %d\n", len(enabled), len(known))
		return nil
	})
}

func testNotification(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		err := svc.Pipeline.Notifier.Present(ctx, notify.Notification{
			ID:       "notifeeder-test",
			Title:    "Test notification",
			Subtitle: "notifeeder",
			Body:     "Notifications are working.",
		})
		if err != nil {
			return fmt.Errorf("send test notification: %w", err)
		}
		fmt.Fprintf(out(c), "Test notification sent via %s\n", svc.Config.Notifications.Backend)
		return nil
	})
}

func listArticles(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		items := list.Select(svc.State, list.Options{
			Feed:       strings.TrimSpace(c.String("feed")),
			Unread:     c.Bool("unread"),
			Bookmarked: c.Bool("bookmarked"),
			Since:      time.Duration(c.Int("hours")) * time.Hour,
			Limit:      c.Int("limit"),
		}, time.Now())
		if c.Bool("json") {
			if items == nil {
				items = []list.Item{}
			}
			enc := json.NewEncoder(out(c))
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		list.Print(out(c), items)
		return nil
	})
}

func markRead(read bool) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		all := read && c.Bool("all")
		if !all {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
		}
		return withService(ctx, c, func(svc *ingest.Service) error {
			if all {
				items := list.Select(svc.State, list.Options{Feed: strings.TrimSpace(c.String("feed")), Unread: true}, time.Now())
				links := lo.Map(items, func(it list.Item, _ int) string { return it.Link })
				if err := svc.State.ReadState.MarkAllRead(ctx, links); err != nil {
					return err
				}
				fmt.Fprintf(out(c), "Marked %d articles read\n", len(links))
				return nil
			}
			for _, link := range c.Args().Slice() {
				if err := svc.State.ReadState.SetRead(ctx, strings.TrimSpace(link), read); err != nil {
					return err
				}
			}
			state := "unread"
			if read {
				state = "read"
			}
			fmt.Fprintf(out(c), "Marked %d articles %s\n", c.NArg(), state)
			return nil
		})
	}
}

func toggleBookmarks(ctx context.Context, c *cli.Command) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return withService(ctx, c, func(svc *ingest.Service) error {
		for _, link := range c.Args().Slice() {
			link = strings.TrimSpace(link)
			on, err := svc.State.Bookmarks.Toggle(ctx, link)
			if err != nil {
				return err
			}
			if on {
				fmt.Fprintf(out(c), "Bookmarked %s\n", link)
			} else {
				fmt.Fprintf(out(c), "Removed bookmark %s\n", link)
			}
		}
		return nil
	})
}

func browse(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		// stderr output would tear the full-screen UI
		if svc.Config.Log.File == "" {
			log.SetOutput(io.Discard)
		}
		return tui.Run(ctx, svc)
	})
}

func runServer(ctx context.Context, c *cli.Command) error {
	return withService(ctx, c, func(svc *ingest.Service) error {
		return server.New(svc).Run(ctx)
	})
}

func runSetup(ctx context.Context, c *cli.Command) error {
	return setup.Run(ctx, c.String("config"), out(c))
}

func initConfig(ctx context.Context, c *cli.Command) error {
	cfg := config.Default()
	for _, u := range c.StringSlice("feed") {
		cfg.Feeds = append(cfg.Feeds, config.Feed{URL: strings.TrimSpace(u)})
	}
	if topic := strings.TrimSpace(c.String("ntfy-topic")); topic != "" {
		cfg.Notifications.Backend = notify.BackendNtfy
		cfg.Notifications.Ntfy.Topic = topic
	}
	path, err := config.Write(c.String("config"), cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out(c), "Config written to %s\n", path)
	return nil
}

func configPath(ctx context.Context, c *cli.Command) error {
	path := config.ExpandPath(c.String("config"))
	if strings.TrimSpace(path) == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	_, err := fmt.Fprintln(out(c), path)
	return err
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
