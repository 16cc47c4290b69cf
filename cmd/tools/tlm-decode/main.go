// Package main provides a telemetry decode tool: it replays payloads from
// a packet capture container through the binary type system, printing the
// typed value decoded at a fixed offset of each record.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/perigee-data/groundcore/internal/dict"
	"github.com/perigee-data/groundcore/internal/dtype"
	"github.com/perigee-data/groundcore/internal/pcap"
)

type config struct {
	File     string
	TypeName string
	Offset   int
	Raw      bool
	CmdDict  string
	EvrDict  string
	Limit    int
}

func main() {
	var cfg config
	flag.StringVar(&cfg.File, "file", "", "container to replay (required)")
	flag.StringVar(&cfg.TypeName, "type", "", "type name to decode, e.g. MSB_U16 or TIME40 (required)")
	flag.IntVar(&cfg.Offset, "offset", 0, "byte offset of the field within each payload")
	flag.BoolVar(&cfg.Raw, "raw", false, "print untransformed physical values")
	flag.StringVar(&cfg.CmdDict, "cmd-dict", "", "command dictionary JSON for CMD16")
	flag.StringVar(&cfg.EvrDict, "evr-dict", "", "event dictionary JSON for EVR16")
	flag.IntVar(&cfg.Limit, "limit", 0, "stop after this many records (0 = all)")
	flag.Parse()

	if cfg.File == "" || cfg.TypeName == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("tlm-decode: %v", err)
	}
}

func run(cfg config) error {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	typ, err := reg.Resolve(cfg.TypeName)
	if err != nil {
		return err
	}

	s, err := pcap.Open(cfg.File)
	if err != nil {
		return err
	}
	defer s.Close()

	n := 0
	for {
		header, payload, err := s.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		n++

		if cfg.Offset+typ.NBytes() > len(payload) {
			fmt.Printf("%6d  %s  <payload too short for %s at offset %d>\n",
				n, header.Timestamp(), typ.Name(), cfg.Offset)
			continue
		}

		var v any
		if cfg.Raw {
			v, err = typ.DecodeRaw(payload[cfg.Offset:])
		} else {
			v, err = typ.Decode(payload[cfg.Offset:])
		}
		if err != nil {
			fmt.Printf("%6d  %s  <decode failed: %v>\n", n, header.Timestamp(), err)
			continue
		}
		fmt.Printf("%6d  %s  %v\n", n, header.Timestamp(), v)

		if cfg.Limit > 0 && n >= cfg.Limit {
			return nil
		}
	}
}

func buildRegistry(cfg config) (*dtype.Registry, error) {
	var opts []dtype.Option
	if cfg.CmdDict != "" {
		table, err := dict.LoadJSON(cfg.CmdDict)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dtype.WithCommandTable(table))
	}
	if cfg.EvrDict != "" {
		table, err := dict.LoadJSON(cfg.EvrDict)
		if err != nil {
			return nil, err
		}
		opts = append(opts, dtype.WithEventTable(table))
	}
	return dtype.NewRegistry(opts...), nil
}
