// The tdigestcli program builds a t-Digest from newline-delimited
// floating-point observations read from stdin, prints requested quantiles
// and ranks, and can optionally roundtrip the resulting digest through the
// native binary codec to a file.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Claudenw/tdigest-go/tdigest"
)

var (
	k          = flag.Uint("k", tdigest.DefaultK, "compression parameter")
	quantiles  = flag.String("q", "0.5,0.9,0.99", "comma-separated quantiles to report")
	ranks      = flag.String("rank", "", "comma-separated values to report ranks for")
	outFile   = flag.String("out", "", "write the serialized digest to this file")
	inFile    = flag.String("in", "", "read observations from this file instead of stdin")
	roundtrip = flag.String("roundtrip", "", "deserialize a digest (native or legacy compat format, auto-detected) and report on it instead of reading observations")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tdigestcli:", err)
		os.Exit(1)
	}
}

func run() error {
	if *roundtrip != "" {
		return reportRoundtrip(*roundtrip)
	}

	d, err := tdigest.NewDouble(uint16(*k))
	if err != nil {
		return err
	}

	in := os.Stdin
	if *inFile != "" {
		f, err := os.Open(*inFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	if err := load(d, in); err != nil {
		return err
	}

	if err := report(d); err != nil {
		return err
	}

	if *outFile != "" {
		f, err := os.Create(*outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := d.Serialize(f); err != nil {
			return err
		}
		fmt.Printf("wrote %d bytes to %s\n", d.SerializedSizeBytes(), *outFile)
	}

	return nil
}

func load(d *tdigest.Double, r *os.File) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return fmt.Errorf("parsing observation %q: %w", line, err)
		}
		if err := d.Update(v); err != nil {
			return fmt.Errorf("updating with %v: %w", v, err)
		}
	}
	return scanner.Err()
}

func report(d *tdigest.Double) error {
	if d.IsEmpty() {
		fmt.Println("digest is empty; no observations read")
		return nil
	}

	fmt.Printf("observations: %d\n", d.TotalWeight())
	min, _ := d.MinValue()
	max, _ := d.MaxValue()
	fmt.Printf("min: %v  max: %v\n", min, max)

	for _, s := range splitCSV(*quantiles) {
		q, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing quantile %q: %w", s, err)
		}
		v, err := d.Quantile(q)
		if err != nil {
			return fmt.Errorf("computing quantile %v: %w", q, err)
		}
		fmt.Printf("quantile(%v) = %v\n", q, v)
	}

	for _, s := range splitCSV(*ranks) {
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parsing rank value %q: %w", s, err)
		}
		r, err := d.Rank(v)
		if err != nil {
			return fmt.Errorf("computing rank of %v: %w", v, err)
		}
		fmt.Printf("rank(%v) = %v\n", v, r)
	}

	return nil
}

func reportRoundtrip(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	d, err := tdigest.DeserializeBytes[float64](data)
	if err != nil {
		return err
	}
	return report(d)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
