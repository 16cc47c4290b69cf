// Package main provides a packet capture container inspection tool.
// It prints the global header and a record summary, extracts time ranges
// into new containers, and can cross-check a container against gopacket's
// independent libpcap reader.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/gopacket/pcapgo"

	"github.com/perigee-data/groundcore/internal/pcap"
)

type config struct {
	File    string
	Extract string
	Start   string
	End     string
	Verify  bool
	Verbose bool
}

func main() {
	var cfg config
	flag.StringVar(&cfg.File, "file", "", "container to inspect (required)")
	flag.StringVar(&cfg.Extract, "extract", "", "write records in the time range to this container")
	flag.StringVar(&cfg.Start, "start", "", "range start, RFC 3339 (default: beginning of time)")
	flag.StringVar(&cfg.End, "end", "", "range end, RFC 3339 (default: end of time)")
	flag.BoolVar(&cfg.Verify, "verify", false, "re-read the container with gopacket and compare record counts")
	flag.BoolVar(&cfg.Verbose, "v", false, "print one line per record")
	flag.Parse()

	if cfg.File == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("pcap-inspect: %v", err)
	}
}

func run(cfg config) error {
	count, err := inspect(cfg.File, cfg.Verbose)
	if err != nil {
		return err
	}

	if cfg.Verify {
		gcount, err := gopacketCount(cfg.File)
		if err != nil {
			return fmt.Errorf("gopacket verification failed: %w", err)
		}
		if gcount != count {
			return fmt.Errorf("record count mismatch: read %d, gopacket read %d", count, gcount)
		}
		fmt.Printf("verify: gopacket agrees on %d records\n", gcount)
	}

	if cfg.Extract != "" {
		start, end, err := parseRange(cfg.Start, cfg.End)
		if err != nil {
			return err
		}
		n, err := pcap.Query(cfg.File, cfg.Extract, start, end)
		if err != nil {
			return err
		}
		fmt.Printf("extracted %d of %d records to %s\n", n, count, cfg.Extract)
	}

	return nil
}

func inspect(path string, verbose bool) (int, error) {
	s, err := pcap.Open(path)
	if err != nil {
		return 0, err
	}
	defer s.Close()

	h := s.Header()
	fmt.Printf("%s: pcap %d.%d, %v, snaplen %d, network %d\n",
		path, h.VersionMajor, h.VersionMinor, s.ByteOrder(), h.SnapLen, h.Network)

	var (
		count int
		bytes uint64
		first time.Time
		last  time.Time
	)
	for {
		header, _, err := s.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, err
		}

		ts := header.Timestamp()
		if count == 0 {
			first = ts
		}
		last = ts
		count++
		bytes += uint64(header.InclLen)

		if verbose {
			truncated := ""
			if header.InclLen < header.OrigLen {
				truncated = fmt.Sprintf(" (truncated from %d)", header.OrigLen)
			}
			fmt.Printf("  %6d  %s  %d bytes%s\n", count, ts.Format(time.RFC3339Nano), header.InclLen, truncated)
		}
	}

	if count == 0 {
		fmt.Println("no records")
		return 0, nil
	}
	fmt.Printf("%d records, %d payload bytes, %s .. %s\n",
		count, bytes, first.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano))
	return count, nil
}

func gopacketCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		return 0, err
	}

	count := 0
	for {
		_, _, err := r.ReadPacketData()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
		count++
	}
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	start := time.Time{}
	end := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	var err error
	if startStr != "" {
		if start, err = time.Parse(time.RFC3339, startStr); err != nil {
			return start, end, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(time.RFC3339, endStr); err != nil {
			return start, end, fmt.Errorf("invalid -end: %w", err)
		}
	}
	return start, end, nil
}
