//go:build !tinygo

// Command syscfg checks a syscfg TOML file and prints the memory the
// configured msys pools reserve.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/BurntSushi/toml"

	"nkern/app"
	"nkern/kernel/mbuf"
	"nkern/kernel/mempool"
)

func main() {
	var (
		inPath string
		dump   bool
	)
	flag.StringVar(&inPath, "in", "", "Syscfg TOML file (empty checks the defaults).")
	flag.BoolVar(&dump, "dump", false, "Print the resolved configuration as TOML.")
	flag.Parse()

	if err := run(os.Stdout, inPath, dump); err != nil {
		fmt.Fprintf(os.Stderr, "syscfg: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, inPath string, dump bool) error {
	cfg := app.DefaultConfig()
	if inPath != "" {
		var err error
		if cfg, err = app.LoadConfig(inPath); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dump {
		if err := toml.NewEncoder(w).Encode(cfg); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		fmt.Fprintln(w)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "pool\tblocks\tblock\tpayload\tbytes")
	total := 0
	for _, p := range cfg.Msys.Pools {
		n := mempool.Bytes(p.Blocks, p.BlockSize)
		total += n
		fmt.Fprintf(tw, "msys_%d\t%d\t%d\t%d\t%d\n",
			p.BlockSize, p.Blocks, mempool.BlockSize(p.BlockSize), mempool.BlockSize(p.BlockSize)-mbuf.PktHdrSize, n)
	}
	fmt.Fprintf(tw, "total\t\t\t\t%d\n", total)
	return tw.Flush()
}
