// patterncheck validates pattern files against the pattern schema and
// exits non-zero on the first invalid one.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ShadowDevAt42/ftplace-script/internal/pattern"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: patterncheck <pattern.json> [pattern.json ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := log.New(os.Stdout, "[patterncheck] ", log.LstdFlags)

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		tg, err := pattern.LoadFile(path, 0, 0, pattern.TierDefensivePrimary)
		if err != nil {
			logger.Printf("FAIL %s: %v", path, err)
			failed = true
			continue
		}
		logger.Printf("ok   %s (%d pixels)", path, len(tg.Pattern.Pixels))
	}
	if failed {
		os.Exit(1)
	}
}
