// Package main runs the telemetry capture daemon: it records UDP
// datagrams to a packet capture container and, when a database path is
// given, archives each record under a new capture session.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/perigee-data/groundcore/internal/capture"
	"github.com/perigee-data/groundcore/internal/pcap"
	"github.com/perigee-data/groundcore/internal/tlmdb"
	"github.com/perigee-data/groundcore/internal/version"
)

func main() {
	var (
		listen      = flag.String("listen", ":3076", "UDP address to receive telemetry on")
		out         = flag.String("out", "telemetry.pcap", "container to append records to")
		dbPath      = flag.String("db", "", "optional sqlite archive path")
		snapLen     = flag.Uint("snaplen", pcap.DefaultSnapLen, "snap length for a new container")
		rcvBuf      = flag.Int("rcvbuf", 8*1024*1024, "UDP receive buffer in bytes")
		logInterval = flag.Duration("log-interval", time.Minute, "stats log cadence")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		log.Printf("groundcore capture %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := capture.Config{
		Address:     *listen,
		RcvBuf:      *rcvBuf,
		Path:        *out,
		SnapLen:     uint32(*snapLen),
		LogInterval: *logInterval,
	}

	if *dbPath != "" {
		store, err := tlmdb.Open(*dbPath)
		if err != nil {
			log.Fatalf("capture: %v", err)
		}
		defer store.Close()

		sess, err := store.CreateSession("udp://"+*listen, pcap.DefaultNetwork)
		if err != nil {
			log.Fatalf("capture: %v", err)
		}
		log.Printf("archiving to %s, session %s", *dbPath, sess.ID)

		cfg.Archive = store
		cfg.SessionID = sess.ID
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listener := capture.NewListener(cfg)
	if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("capture: %v", err)
	}
	listener.Stats().LogStats()
}
