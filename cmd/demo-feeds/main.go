// demo-feeds serves a couple of local RSS feeds that gain a new article on a
// timer, for trying the daemon and notifications without the network.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"notifeeder/internal/feedtest"
)

type demoFeed struct {
	path   string
	title  string
	topics []string

	mu    sync.Mutex
	items []feedtest.Item
}

func (d *demoFeed) publish(feeds *feedtest.Feeds, baseURL string, now time.Time) feedtest.Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.items) + 1
	topic := d.topics[(n-1)%len(d.topics)]
	it := feedtest.Item{
		Title:       fmt.Sprintf("%s, part %d", topic, n),
		Link:        fmt.Sprintf("%s%s/articles/%d", baseURL, d.path, n),
		Description: fmt.Sprintf("<p>Part %d of our coverage of %s. More details follow in the full article.</p>", n, strings.ToLower(topic)),
		PubDate:     now.UTC().Format(time.RFC1123Z),
	}
	// newest first, like most publishers
	d.items = append([]feedtest.Item{it}, d.items...)
	feeds.Set(d.path, d.title, d.items...)
	return it
}

func main() {
	host := flag.String("host", "localhost", "Host to bind the demo server to")
	port := flag.Int("port", 8080, "Port to run the demo server on")
	every := flag.Duration("every", time.Minute, "Publish a new article on each feed this often (0 disables)")
	flag.Parse()

	addr := fmt.Sprintf("%s:%d", *host, *port)
	baseURL := "http://" + addr
	feeds := feedtest.NewFeeds()
	demo := []*demoFeed{
		{path: "/tech", title: "Demo Tech", topics: []string{"Compilers", "Databases", "Networking"}},
		{path: "/world", title: "Demo World", topics: []string{"Elections", "Climate", "Trade"}},
	}
	for _, d := range demo {
		d.publish(feeds, baseURL, time.Now().Add(-time.Hour))
		d.publish(feeds, baseURL, time.Now())
	}

	mux := http.NewServeMux()
	mux.Handle("/", home(feeds, baseURL))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Demo feeds on %s/tech and %s/world", baseURL, baseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	if *every > 0 {
		go func() {
			ticker := time.NewTicker(*every)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					for _, d := range demo {
						it := d.publish(feeds, baseURL, now)
						log.WithField("feed", d.path).Infof("published %q", it.Title)
					}
				}
			}
		}()
	}

	<-ctx.Done()
	log.Info("Shutting down demo server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
}

// home lists the feeds at "/" and serves the feeds and article pages.
func home(feeds *feedtest.Feeds, baseURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, "notifeeder demo feeds")
			for _, p := range feeds.Paths() {
				fmt.Fprintf(w, "  %s%s\n", baseURL, p)
			}
		case strings.Contains(r.URL.Path, "/articles/"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprintf(w, "<!DOCTYPE html><html><body><h1>%s</h1><p>Demo article.</p></body></html>", r.URL.Path)
		default:
			feeds.ServeHTTP(w, r)
		}
	})
}
