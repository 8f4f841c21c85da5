// Command leakix searches the LeakIX API from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/leakix-tools/leakix-go/pkg/client"
	"github.com/leakix-tools/leakix-go/pkg/config"
	"github.com/leakix-tools/leakix-go/pkg/keystore"
	"github.com/leakix-tools/leakix-go/pkg/logging"
	"github.com/leakix-tools/leakix-go/pkg/search"
	"github.com/leakix-tools/leakix-go/pkg/stats"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage: leakix <command> [flags]

Commands:
  search    run a search and stream results
  stats     run a search and summarize field values
  plugins   list available query plugins
  lookup    host, domain or subdomain details
  key       manage the stored API key
  cache     manage the response cache

Run "leakix <command> -h" for command flags.`)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "search":
		err = cmdSearch(ctx, rest, stdout)
	case "stats":
		err = cmdStats(ctx, rest, stdout)
	case "plugins":
		err = cmdPlugins(ctx, rest, stdout)
	case "lookup":
		err = cmdLookup(ctx, rest, stdout, stderr)
	case "key":
		err = cmdKey(rest, stdout, stderr)
	case "cache":
		err = cmdCache(ctx, rest, stdout, stderr)
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "leakix: %v\n", err)
		return 1
	}
	return 0
}

// commonFlags are shared by every subcommand that talks to the API.
type commonFlags struct {
	verbose bool
	silent  bool
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.BoolVar(&cf.verbose, "v", false, "Enable debug logging")
	fs.BoolVar(&cf.silent, "silent", false, "Suppress all logging")
	return cf
}

func loadClient(cf *commonFlags) (*client.Client, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Config{}, err
	}

	level := logging.FromFlags(cf.verbose, cf.silent)
	if !cf.verbose && !cf.silent {
		level = logging.Level(cfg.LogLevel)
	}
	logging.Setup(logging.Config{Level: level, Pretty: true, Output: os.Stderr})

	c, err := client.NewFromConfig(cfg)
	return c, cfg, err
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// openOutput returns stdout when path is empty, a fresh file otherwise.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open output: %w", err)
	}
	return f, f.Close, nil
}

func cmdSearch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	cf := bindCommon(fs)
	scope := fs.String("scope", string(search.ScopeLeak), "Search scope: leak or service")
	query := fs.String("q", "", "Search query")
	pages := fs.Int("pages", 2, "Number of pages to fetch")
	bulk := fs.Bool("bulk", false, "Use the bulk streaming endpoint (pro, leak scope only)")
	plugins := fs.String("plugins", "", "Comma-separated plugin filter")
	fields := fs.String("fields", "", "Comma-separated fields to print (default protocol,ip,port as URLs)")
	raw := fs.Bool("raw", false, "Print raw JSON records")
	dedup := fs.Bool("dedup", false, "Suppress duplicate output lines")
	output := fs.String("o", "", "Write results to a file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, _, err := loadClient(cf)
	if err != nil {
		return err
	}

	seq, err := c.Search(ctx, search.Query{
		Scope:   search.Scope(*scope),
		Query:   *query,
		Plugins: splitList(*plugins),
		Pages:   *pages,
		Bulk:    *bulk,
	})
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(*output, stdout)
	if err != nil {
		return err
	}

	n, werr := client.WriteRecords(w, seq, client.WriteOptions{
		Fields: splitList(*fields),
		Raw:    *raw,
		Dedup:  *dedup,
	})
	if cerr := closeOut(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("after %d results: %w", n, werr)
	}
	return nil
}

func cmdStats(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	cf := bindCommon(fs)
	scope := fs.String("scope", string(search.ScopeLeak), "Search scope: leak or service")
	query := fs.String("q", "", "Search query")
	pages := fs.Int("pages", 2, "Number of pages to fetch")
	plugins := fs.String("plugins", "", "Comma-separated plugin filter")
	fields := fs.String("fields", "", "Comma-separated fields to tally (defaults to common event fields)")
	top := fs.Int("top", 10, "Show the N most frequent values per field (0 for all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, _, err := loadClient(cf)
	if err != nil {
		return err
	}

	seq, err := c.Search(ctx, search.Query{
		Scope:   search.Scope(*scope),
		Query:   *query,
		Plugins: splitList(*plugins),
		Pages:   *pages,
	})
	if err != nil {
		return err
	}

	summary, err := stats.Analyze(seq, splitList(*fields))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "total results: %d\n", summary.Total)
	for field := range summary.Fields {
		fmt.Fprintf(stdout, "\n%s (%d unique):\n", field, summary.Unique(field))
		for _, count := range summary.Top(field, *top) {
			fmt.Fprintf(stdout, "  %6d  %s\n", count.N, count.Value)
		}
	}
	return nil
}

func cmdPlugins(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("plugins", flag.ContinueOnError)
	cf := bindCommon(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, _, err := loadClient(cf)
	if err != nil {
		return err
	}

	names, err := c.PluginNames(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(stdout, n)
	}
	return nil
}

func cmdLookup(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	cf := bindCommon(fs)
	ip := fs.String("ip", "", "Look up a host by IP address")
	domain := fs.String("domain", "", "Look up a domain")
	subdomains := fs.Bool("subdomains", false, "List subdomains instead of domain details")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*ip == "") == (*domain == "") {
		return errors.New("lookup needs exactly one of -ip or -domain")
	}

	c, _, err := loadClient(cf)
	if err != nil {
		return err
	}

	switch {
	case *ip != "":
		rec, err := c.Host(ctx, *ip)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(rec.Raw()))
	case *subdomains:
		records, err := c.Subdomains(ctx, *domain)
		if err != nil {
			return err
		}
		for _, rec := range records {
			fmt.Fprintln(stdout, rec.FieldOr("subdomain", string(rec.Raw())))
		}
	default:
		rec, err := c.Domain(ctx, *domain)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, string(rec.Raw()))
	}
	return nil
}

func cmdKey(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("key", flag.ContinueOnError)
	set := fs.String("set", "", "Store an API key")
	del := fs.Bool("delete", false, "Delete the stored API key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	manager := keystore.DefaultManager(cfg.ConfigDir)

	switch {
	case *set != "":
		if !keystore.IsValid(*set) {
			return fmt.Errorf("API key must be %d characters", keystore.KeyLength)
		}
		if err := manager.Store(strings.TrimSpace(*set)); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "API key stored")
	case *del:
		if err := manager.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "API key deleted")
	default:
		if _, err := manager.Load(); errors.Is(err, keystore.ErrNotFound) {
			fmt.Fprintln(stdout, "no API key stored")
		} else if err != nil {
			return err
		} else {
			fmt.Fprintln(stdout, "API key present")
		}
	}
	return nil
}

func cmdCache(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("cache", flag.ContinueOnError)
	cf := bindCommon(fs)
	clear := fs.Bool("clear", false, "Drop all cached responses")
	ttl := fs.Duration("set-ttl", 0, "Persist a new cache TTL (e.g. 30m)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if *ttl > 0 {
		if err := config.SetCacheTTL(cfg.ConfigDir, *ttl); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "cache TTL set to %s\n", ttl.Round(time.Minute))
		return nil
	}

	if *clear {
		c, _, err := loadClient(cf)
		if err != nil {
			return err
		}
		if err := c.ClearCache(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "cache cleared")
		return nil
	}

	effective, err := config.CacheTTLFor(cfg.ConfigDir, cfg.CacheTTL)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cache TTL: %s\n", effective)
	return nil
}
