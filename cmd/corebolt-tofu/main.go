// Command corebolt-tofu inspects and edits the known-hosts file used for
// trust-on-first-use host verification.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vanshika/corebolt/internal/config"
	"github.com/vanshika/corebolt/internal/dotdir"
	"github.com/vanshika/corebolt/internal/logging"
	"github.com/vanshika/corebolt/tofu"
)

func main() {
	var (
		knownHostsFile = flag.String("known-hosts-file", "", "Path to the known-hosts file (defaults to the per-user config directory)")
	)
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging).With("component", "corebolt-tofu")

	path := *knownHostsFile
	if path == "" {
		path, err = dotdir.DefaultKnownHostsPath()
		if err != nil {
			logger.Error("resolving default known-hosts path failed", "error", err)
			os.Exit(1)
		}
	}

	switch args[0] {
	case "check":
		runCheck(logger, path, args[1:])
	case "trust":
		runTrust(logger, path, args[1:])
	default:
		printUsage()
		os.Exit(2)
	}
}

func runCheck(logger *slog.Logger, path string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: corebolt-tofu check <host:port> <fingerprint>")
		os.Exit(2)
	}
	hostLabel, fingerprint := args[0], args[1]

	err := tofu.CheckKnownHost(context.Background(), path, hostLabel, fingerprint, promptVerifier)
	switch {
	case err == nil:
		logger.Info("host trusted", "host", hostLabel)
	case tofu.IsMismatch(err):
		logger.Error("fingerprint mismatch — possible man-in-the-middle", "host", hostLabel, "error", err)
		os.Exit(1)
	case tofu.IsUnrecognizedHost(err):
		logger.Error("host rejected", "host", hostLabel, "error", err)
		os.Exit(1)
	default:
		logger.Error("check failed", "host", hostLabel, "error", err)
		os.Exit(1)
	}
}

func runTrust(logger *slog.Logger, path string, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: corebolt-tofu trust <host:port> <fingerprint>")
		os.Exit(2)
	}
	hostLabel, fingerprint := args[0], args[1]
	if err := tofu.Replace(path, hostLabel, fingerprint); err != nil {
		logger.Error("trust failed", "host", hostLabel, "error", err)
		os.Exit(1)
	}
	logger.Info("host trusted unconditionally", "host", hostLabel)
}

// promptVerifier asks the operator on stdin/stdout whether to trust an
// unrecognized or changed fingerprint.
func promptVerifier(_ context.Context, status tofu.VerificationStatus) (tofu.Decision, error) {
	if status.Reason == tofu.ReasonMismatch {
		fmt.Printf("WARNING: host %s previously presented %s, now presents %s.\n",
			status.HostLabel, status.Known, status.Fingerprint)
	} else {
		fmt.Printf("Host %s is not in the known-hosts file; it presents fingerprint %s.\n",
			status.HostLabel, status.Fingerprint)
	}
	fmt.Print("Trust this fingerprint? [y/N] ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return tofu.Reject, err
	}
	switch line {
	case "y\n", "Y\n", "yes\n":
		return tofu.TrustAndStore, nil
	default:
		return tofu.Reject, nil
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: corebolt-tofu [-known-hosts-file path] <check|trust> <host:port> <fingerprint>")
}
