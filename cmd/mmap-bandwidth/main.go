package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"go.uber.org/zap"

	"github.com/pojntfx/mmap-bandwidth/pkg/bench"
	"github.com/pojntfx/mmap-bandwidth/pkg/logger"
	"github.com/pojntfx/mmap-bandwidth/pkg/verify"
)

type sinkURLs []string

func (s *sinkURLs) String() string {
	return strings.Join(*s, ",")
}

func (s *sinkURLs) Set(v string) error {
	*s = append(*s, v)

	return nil
}

func main() {
	size := bytesize.ByteSize(bench.DefaultSize)
	flag.Var(&size, "size", "Working set to write and read, e.g. 64MB or 8GB")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn or error)")
	baseline := flag.Bool("baseline", false, "Whether to also measure an anonymous memory mapping of the same size")
	jsonOutput := flag.Bool("json", false, "Whether to print the summary as JSON instead of text")

	verifyFile := flag.Bool("verify", false, "Whether to check that the backing file holds the last written pattern after the run")
	verifyParallel := flag.Int64("verify-parallel", 4, "Blocks to hash in parallel when verifying")
	verifyBlockSize := flag.Int64("verify-block-size", 4*bench.MB, "Block size to hash when verifying")

	var sinks sinkURLs
	flag.Var(&sinks, "sink", "URL to publish the report to (redis://, http(s):// for S3, cassandra://); may be repeated")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <backing file>\n", os.Args[0])
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()

		os.Exit(2)
	}
	path := flag.Arg(0)

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		os.Exit(2)
	}
	defer log.Sync()

	cfg := bench.DefaultConfig()
	cfg.Baseline = *baseline

	cfg.Size, err = workingSetSize(size)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)

		os.Exit(2)
	}

	log.Info("Measuring single threaded memory and disk bandwidth, stay tuned!", zap.String("path", path), zap.Stringer("size", size))

	rep, err := bench.Run(log, path, cfg)
	if err != nil {
		log.Fatal("Benchmark aborted", zap.Error(err))
	}

	if *jsonOutput {
		err = rep.WriteJSON(os.Stdout)
	} else {
		err = rep.WriteText(os.Stdout)
	}
	if err != nil {
		log.Fatal("Could not print summary", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *verifyFile {
		beforeVerify := time.Now()

		res, err := verify.Pattern(ctx, path, cfg.LastPattern(), *verifyBlockSize, *verifyParallel)
		if err != nil {
			log.Fatal("Backing file verification failed", zap.Error(err))
		}

		log.Info("Verified backing file", zap.Int64("blocks", res.Blocks), zap.Duration("elapsed", time.Since(beforeVerify)))
	}

	for _, raw := range sinks {
		publish(ctx, log, raw, rep)
	}
}
