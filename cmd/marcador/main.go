// Package main is the marcador CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/marcador/internal/annotate"
	"github.com/hyperjump/marcador/internal/cli"
	"github.com/hyperjump/marcador/internal/config"
	"github.com/hyperjump/marcador/internal/extract"
	"github.com/hyperjump/marcador/internal/models"
	"github.com/hyperjump/marcador/internal/server"
	"github.com/hyperjump/marcador/internal/session"
	"github.com/hyperjump/marcador/internal/sink"
	"github.com/hyperjump/marcador/internal/storage"
	"github.com/hyperjump/marcador/internal/watcher"
	"github.com/hyperjump/marcador/pkg/utils"
)

var version = "dev"

// errNoMatches makes the highlight command exit non-zero without an error line.
var errNoMatches = errors.New("no matches")

// loadConfig loads config from path. For the default path, a config.yaml in
// the current directory wins, and when neither exists the built-in defaults
// are used. Returns the config and the path it came from ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == config.DefaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "highlight":
		runHighlight()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("marcador version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds the logger shared by all commands.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, logger
}

// newManager builds a session manager from cfg. store may be nil.
func newManager(cfg *config.Config, logger *zap.Logger, store session.Store, onNoMatches session.NoMatchesFunc) *session.Manager {
	loader := extract.NewLoader(extract.WithPassword(cfg.PDF.Password), extract.WithLogger(logger))
	writer := annotate.NewWriter(annotate.WithAuthor(cfg.Highlight.Author), annotate.WithLogger(logger))
	opts := []session.Option{
		session.WithLogger(logger),
		session.WithScale(cfg.Render.Scale),
		session.WithStyle(cfg.Highlight.Style()),
		session.WithDecorations(cfg.Export.Marks()),
	}
	if store != nil {
		opts = append(opts, session.WithStore(store))
	}
	if onNoMatches != nil {
		opts = append(opts, session.WithNoMatches(onNoMatches))
	}
	return session.NewManager(loader, writer, opts...)
}

// logNoMatches reports searches without matches in the log.
func logNoMatches(logger *zap.Logger) session.NoMatchesFunc {
	return func(id, term string) {
		logger.Info("no occurrences found", zap.String("session", id), zap.String("term", term))
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	manager := newManager(cfg, logger, store, logNoMatches(logger))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The inbox gets its own manager without storage: watched files are not
	// API documents.
	if len(cfg.Watch.Directories) > 0 && len(cfg.Watch.Terms) > 0 {
		w, err := startWatch(ctx, cfg, logger, cfg.Watch.Directories, cfg.Watch.Terms)
		if err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	srv := server.NewServer(manager, store, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()
	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// startWatch highlights terms in every PDF under dirs, now and as they change.
func startWatch(ctx context.Context, cfg *config.Config, logger *zap.Logger, dirs, terms []string) (*watcher.Watcher, error) {
	manager := newManager(cfg, logger, nil, nil)
	out := sink.NewFileSink(cfg.Watch.OutputDir, sink.WithLogger(logger))
	inbox, err := watcher.NewInbox(manager, out, terms, logger)
	if err != nil {
		return nil, err
	}
	w := watcher.NewWatcher(dirs, cfg.Watch.RecursiveOrDefault(), inbox.Handle(ctx),
		watcher.WithLogger(logger),
		watcher.WithExclude(cfg.Watch.OutputDir),
		watcher.WithRemove(inbox.Forget),
	)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	go w.ScanExisting()
	logger.Info("watching directories",
		zap.Strings("directories", dirs), zap.Strings("terms", terms), zap.String("output_dir", cfg.Watch.OutputDir))
	return w, nil
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: marcador %s [flags] <file.pdf> <term>\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "The term is all remaining arguments joined by spaces; matching ignores case.\n\n")
	fs.PrintDefaults()
}

// buildTerm joins the positional args after the file name into one term.
// Surrounding spaces are kept: they take part in matching.
func buildTerm(args []string) string {
	return strings.Join(args, " ")
}

// argsReorder moves flags (and their values) to the front, since flag.Parse
// stops at the first non-flag. Positional args keep their relative order and
// everything after "--" stays positional.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	flags := make([]string, 0, len(args))
	positional := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		name := strings.TrimLeft(a, "-")
		if strings.Contains(name, "=") {
			continue
		}
		if f := fs.Lookup(name); f != nil && !isBoolFlag(f) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(f *flag.Flag) bool {
	b, ok := f.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

// searchFile opens path, searches term and returns the report.
func searchFile(ctx context.Context, manager *session.Manager, path, term string, scale float64) (*cli.Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sess, err := manager.Open(ctx, filepath.Base(path), content, scale)
	if err != nil {
		return nil, err
	}
	defer manager.Close(ctx, sess.ID())

	start := time.Now()
	res, err := sess.Search(ctx, term)
	if err != nil {
		return nil, err
	}
	report, err := cli.NewReport(path, res, sess.Info().Pages)
	if err != nil {
		return nil, err
	}
	report.QueryTime = time.Since(start).Milliseconds()
	return report, nil
}

// highlightFile writes a copy of path with every match of term highlighted
// to out and returns the path written and the number of matches.
func highlightFile(ctx context.Context, manager *session.Manager, path, term, out string, logger *zap.Logger) (string, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	sess, err := manager.Open(ctx, filepath.Base(path), content, 0)
	if err != nil {
		return "", 0, err
	}
	defer manager.Close(ctx, sess.ID())

	res, err := sess.Search(ctx, term)
	if err != nil {
		return "", 0, err
	}
	if res.Total() == 0 {
		return "", 0, errNoMatches
	}
	dst := sink.NewFileSink(filepath.Dir(out), sink.WithLogger(logger))
	written, err := sess.ExportTo(ctx, dst, filepath.Base(out))
	if err != nil {
		return "", 0, err
	}
	return written, res.Total(), nil
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	scale := fs.Float64("scale", 0, "display scale (default from config)")
	outputFormat := fs.String("format", "text", "output format: text, compact (one highlight per line), or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	if fs.NArg() < 2 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	manager := newManager(cfg, logger, nil, logNoMatches(logger))
	report, err := searchFile(context.Background(), manager, fs.Arg(0), buildTerm(fs.Args()[1:]), *scale)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// defaultOutput is where highlight writes when -o is not given: next to the
// input, or into dir when it is set.
func defaultOutput(input, dir string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, sink.OutputName(input))
}

func runHighlight() {
	fs := flag.NewFlagSet("highlight", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	output := fs.String("o", "", "output file (default: <name>.marcado.pdf next to the input)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	if fs.NArg() < 2 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, false)
	defer logger.Sync()

	input := fs.Arg(0)
	out := *output
	if out == "" {
		out = defaultOutput(input, "")
	}
	manager := newManager(cfg, logger, nil, nil)
	written, n, err := highlightFile(context.Background(), manager, input, buildTerm(fs.Args()[1:]), out, logger)
	if err := reportHighlight(os.Stdout, written, n, err); err != nil {
		fmt.Fprintf(os.Stderr, "Highlight failed: %v\n", err)
		os.Exit(1)
	}
}

// reportHighlight prints the outcome of highlightFile. It returns err unless
// it was fully reported.
func reportHighlight(w io.Writer, written string, n int, err error) error {
	switch {
	case errors.Is(err, errNoMatches):
		fmt.Fprintln(w, models.NoMatchesMessage)
		return err
	case errors.Is(err, session.ErrExport):
		return session.ErrExport
	case err != nil:
		return err
	}
	fmt.Fprintf(w, "Highlighted %d occurrences: %s\n", n, written)
	return nil
}

// parseTerms splits a comma-separated list, dropping blank entries.
func parseTerms(s string) []string {
	var terms []string
	for _, t := range strings.Split(s, ",") {
		if strings.TrimSpace(t) != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	termsFlag := fs.String("terms", "", "comma-separated terms (default from config)")
	outDir := fs.String("out", "", "output directory (default from config)")
	_ = fs.Parse(argsReorder(fs, os.Args[2:]))

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	dirs := cfg.Watch.Directories
	if fs.NArg() > 0 {
		dirs = fs.Args()
	}
	terms := cfg.Watch.Terms
	if *termsFlag != "" {
		terms = parseTerms(*termsFlag)
	}
	if *outDir != "" {
		cfg.Watch.OutputDir = *outDir
	}
	if len(dirs) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: marcador watch [flags] <dir>...  (or set watch.directories in the config)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := startWatch(ctx, cfg, logger, dirs, terms)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		os.Exit(1)
	}
	defer w.Stop()
	waitForSignal()
	logger.Info("Shutting down...")
}

func printUsage() {
	fmt.Println(`marcador - find and highlight text in PDF files

Usage:
  marcador server [flags]                     Start the HTTP API
  marcador search [flags] <file.pdf> <term>   Print where a term occurs
  marcador highlight [flags] <file.pdf> <term> Save a highlighted copy
  marcador watch [flags] [dir...]             Highlight PDFs dropped into directories
  marcador version                            Show version
  marcador help                               Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/marcador/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string    Config file path
  --scale float      Display scale (default from config, 1.5)
  --format string    Output format: text, compact, or json (default: text)

Highlight Flags:
  --config string    Config file path
  -o string          Output file (default: <name>.marcado.pdf next to the input)

Watch Flags:
  --config string    Config file path
  --terms string     Comma-separated terms (default: watch.terms from config)
  --out string       Output directory (default: watch.output_dir from config)
  --debug            Enable debug logging

Examples:
  marcador server
  marcador search report.pdf "net income"
  marcador search --format json report.pdf revenue
  marcador highlight -o marked.pdf report.pdf revenue
  marcador watch --terms invoice,total ~/Inbox`)
}
