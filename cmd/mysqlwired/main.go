// Command mysqlwired runs the passive MySQL wire-protocol sniffer: it
// captures loopback traffic on the configured MySQL port, decodes it,
// tags business ORDER events, and writes everything to the configured
// sinks.
//
// Grounded on the teacher's cmd/sql-tapd/main.go for CLI shape (a single
// flag.NewFlagSet with a custom Usage, signal.NotifyContext shutdown,
// optional HTTP server wired to a broker) and
// original_source/python_packetSnip/main.py for the interface-discovery
// fallback and exit-code discipline (spec.md §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tapline/mysqlwire/broker"
	"github.com/tapline/mysqlwire/burst"
	"github.com/tapline/mysqlwire/capture"
	"github.com/tapline/mysqlwire/classify"
	"github.com/tapline/mysqlwire/decode"
	"github.com/tapline/mysqlwire/event"
	"github.com/tapline/mysqlwire/session"
	"github.com/tapline/mysqlwire/sink"
	"github.com/tapline/mysqlwire/stmt"
	"github.com/tapline/mysqlwire/web"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("mysqlwired", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "mysqlwired — passive MySQL wire-protocol sniffer\n\nUsage:\n  mysqlwired [flags] [interface]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	port := fs.Int("port", 3306, "MySQL port to filter and decode")
	sinkURL := fs.String("sink-url", "", "HTTP endpoint to POST ORDER events to (empty disables)")
	logDir := fs.String("log-dir", "./logs", "root directory for JSONL sink files")
	sessionCap := fs.Int("session-cap", session.DefaultCap, "max sessions tracked in SessionTable")
	sinkTimeout := fs.Duration("sink-timeout", sink.DefaultTimeout, "per-POST deadline for the HTTP sink")
	httpAddr := fs.String("http", "", "HTTP address for the live event view (e.g. :8080, empty disables)")
	burstThreshold := fs.Int("burst-threshold", 5, "repeated-query burst detection threshold (0 to disable)")
	burstWindow := fs.Duration("burst-window", time.Second, "burst detection time window")
	burstCooldown := fs.Duration("burst-cooldown", 10*time.Second, "burst alert cooldown per query shape")
	echoOrders := fs.Bool("echo-orders", true, "print a colorized line to stdout for each ORDER event")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("mysqlwired %s\n", version)
		return
	}

	iface := fs.Arg(0)
	if iface == "" {
		found, err := capture.FindLoopbackAdapter()
		if err != nil {
			log.Printf("interface not specified and auto-discovery failed: %v", err)
			os.Exit(2)
		}
		iface = found
	}

	if *port <= 0 || *port > 65535 {
		log.Printf("invalid port: %d", *port)
		os.Exit(2)
	}

	if err := run(config{
		iface:          iface,
		port:           uint16(*port),
		sinkURL:        *sinkURL,
		logDir:         *logDir,
		sessionCap:     *sessionCap,
		sinkTimeout:    *sinkTimeout,
		httpAddr:       *httpAddr,
		burstThreshold: *burstThreshold,
		burstWindow:    *burstWindow,
		burstCooldown:  *burstCooldown,
		echoOrders:     *echoOrders,
	}); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}

type config struct {
	iface          string
	port           uint16
	sinkURL        string
	logDir         string
	sessionCap     int
	sinkTimeout    time.Duration
	httpAddr       string
	burstThreshold int
	burstWindow    time.Duration
	burstCooldown  time.Duration
	echoOrders     bool
}

func run(cfg config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cp, err := capture.Open(cfg.iface, cfg.port)
	if err != nil {
		return fmt.Errorf("open capture on %s: %w", cfg.iface, err)
	}
	defer cp.Close()

	lineSink, err := sink.NewLineSink(cfg.logDir, cfg.echoOrders)
	if err != nil {
		return fmt.Errorf("open log sink: %w", err)
	}
	defer lineSink.Close()

	sinks := []sink.EventSink{lineSink}
	if cfg.sinkURL != "" {
		sinks = append(sinks, sink.NewHTTPSink(cfg.sinkURL, cfg.sinkTimeout))
	}
	events := sink.NewAsync(sink.NewMulti(sinks...), 4096)
	defer events.Close()

	b := broker.New(256)
	go b.Run()
	defer b.Close()

	var webSrv *web.Server
	if cfg.httpAddr != "" {
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", cfg.httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", cfg.httpAddr, err)
		}
		webSrv = web.New(b)
		go func() {
			log.Printf("HTTP server listening on %s", cfg.httpAddr)
			if err := webSrv.Serve(lis); err != nil {
				log.Printf("http serve: %v", err)
			}
		}()
	}

	sessions := session.NewTable(cfg.sessionCap, newTxID)
	stmts := stmt.NewRegistry()
	classifier := classify.New(classify.DefaultParamIndex)

	var det *burst.Detector
	if cfg.burstThreshold > 0 {
		det = burst.New(cfg.burstThreshold, cfg.burstWindow, cfg.burstCooldown)
	}

	onEvent := func(ev event.Event) {
		ev = classifier.Classify(ev)
		if det != nil && ev.Query != "" {
			ev.Burst = det.Record(ev.Src, ev.Query, ev.Timestamp)
		}
		events.Emit(ev)
		b.Publish(ev)
	}
	dec := decode.New(sessions, stmts, cfg.port, onEvent)

	log.Printf("mysqlwired capturing on %s (port %d)", cfg.iface, cfg.port)

	stopCapture := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopCapture)
	}()

	cp.Run(stopCapture, dec.HandlePayload)

	if webSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = webSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// newTxID mints an 8-character correlation id, matching the python
// original's str(uuid.uuid4())[:8] truncation.
func newTxID() string {
	return uuid.NewString()[:8]
}
