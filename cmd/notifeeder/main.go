package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"notifeeder/internal/config"
	"notifeeder/internal/launchd"
	"notifeeder/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "notifeeder",
		Usage:   "Follow RSS and Atom feeds and get notified about new articles",
		Version: version.Version,
		Writer:  w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to config file (default ~/.config/notifeeder/config.yaml)",
				Sources: cli.EnvVars(config.EnvConfigPath),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "daemon",
				Usage: "Run the ingestion daemon",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "once", Usage: "Run a single ingestion cycle and exit"},
					&cli.StringFlag{Name: "log-file", Usage: "Path to daemon log file"},
					&cli.StringFlag{Name: "metrics-listen", Usage: "Serve Prometheus metrics on this address, e.g. :9464"},
				},
				Action: runDaemon,
				Commands: []*cli.Command{
					{
						Name:  "install",
						Usage: "Install launchd agent (macOS)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
							&cli.IntFlag{Name: "interval-minutes", Usage: "Run interval (default from config)"},
							&cli.StringFlag{Name: "log-file", Usage: "launchd stdout/stderr path"},
							&cli.StringFlag{Name: "plist", Usage: "Custom plist path (default ~/Library/LaunchAgents/<label>.plist)"},
						},
						Action: installAgent,
					},
					{
						Name:  "uninstall",
						Usage: "Uninstall launchd agent (macOS)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
							&cli.StringFlag{Name: "plist", Usage: "Path to plist (default ~/Library/LaunchAgents/<label>.plist)"},
						},
						Action: uninstallAgent,
					},
					{
						Name:  "status",
						Usage: "Show launchd agent status (macOS)",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "label", Value: launchd.DefaultLabel, Usage: "launchd label"},
						},
						Action: agentStatus,
					},
				},
			},
			{
				Name:   "setup",
				Usage:  "Interactive setup: feeds, notifications and scheduling",
				Action: runSetup,
			},
			{
				Name:   "refresh",
				Usage:  "Fetch every feed once and report what is new",
				Action: refresh,
			},
			{
				Name:  "feeds",
				Usage: "Manage the feed list",
				Commands: []*cli.Command{
					{Name: "list", Usage: "List configured feeds", Action: listFeeds},
					{
						Name:      "add",
						Usage:     "Validate and add a feed",
						ArgsUsage: "<url>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "title", Usage: "Display title (default: the feed's own title)"},
						},
						Action: addFeed,
					},
					{Name: "remove", Usage: "Remove a feed and its cached articles", ArgsUsage: "<url>", Action: removeFeed},
					{Name: "rename", Usage: "Change a feed's display title", ArgsUsage: "<url> <title>", Action: renameFeed},
					{Name: "enable", Usage: "Enable notifications for a feed", ArgsUsage: "<url>", Action: feedNotifications(true)},
					{Name: "disable", Usage: "Disable notifications for a feed", ArgsUsage: "<url>", Action: feedNotifications(false)},
				},
				Action: listFeeds,
			},
			{
				Name:  "notifications",
				Usage: "Control notifications",
				Commands: []*cli.Command{
					{Name: "on", Usage: "Turn notifications on", Action: setNotifications(true)},
					{Name: "off", Usage: "Turn notifications off", Action: setNotifications(false)},
					{Name: "status", Usage: "Show notification settings", Action: notificationStatus},
					{Name: "test", Usage: "Send a test notification through the configured backend", Action: testNotification},
				},
				Action: notificationStatus,
			},
			{
				Name:  "list",
				Usage: "List cached articles",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "feed", Usage: "Only articles from this feed url"},
					&cli.BoolFlag{Name: "unread", Usage: "Only unread articles"},
					&cli.BoolFlag{Name: "bookmarked", Usage: "Only bookmarked articles"},
					&cli.IntFlag{Name: "hours", Usage: "Only articles published in the last N hours"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of articles"},
					&cli.BoolFlag{Name: "json", Usage: "Print JSON"},
				},
				Action: listArticles,
			},
			{
				Name:   "browse",
				Usage:  "Browse cached articles interactively",
				Action: browse,
			},
			{
				Name:      "read",
				Usage:     "Mark articles as read",
				ArgsUsage: "<link>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Mark every cached article as read"},
					&cli.StringFlag{Name: "feed", Usage: "With --all, only this feed"},
				},
				Action: markRead(true),
			},
			{
				Name:      "unread",
				Usage:     "Mark articles as unread",
				ArgsUsage: "<link>...",
				Action:    markRead(false),
			},
			{
				Name:      "bookmark",
				Usage:     "Toggle the bookmark on articles",
				ArgsUsage: "<link>...",
				Action:    toggleBookmarks,
			},
			{
				Name:   "server",
				Usage:  "Run MCP server on stdio",
				Action: runServer,
			},
			{
				Name:  "config",
				Usage: "Inspect or create the config file",
				Commands: []*cli.Command{
					{
						Name:  "init",
						Usage: "Write a config file with defaults",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "feed", Usage: "Seed feed url (repeatable)"},
							&cli.StringFlag{Name: "ntfy-topic", Usage: "Use the ntfy backend with this topic"},
						},
						Action: initConfig,
					},
					{Name: "path", Usage: "Print the config file location", Action: configPath},
				},
			},
			{
				Name:  "version",
				Usage: "Print version",
				Action: func(ctx context.Context, c *cli.Command) error {
					_, err := io.WriteString(out(c), version.GetVersion()+"\n")
					return err
				},
			},
		},
	}
}
