package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/telegram-mtproto/mtclient/internal/crypto"
	"github.com/telegram-mtproto/mtclient/internal/dcconfig"
	"github.com/telegram-mtproto/mtclient/internal/errs"
	"github.com/telegram-mtproto/mtclient/internal/handshake"
	"github.com/telegram-mtproto/mtclient/internal/metrics"
	"github.com/telegram-mtproto/mtclient/internal/ratelimit"
	"github.com/telegram-mtproto/mtclient/internal/rsa"
	"github.com/telegram-mtproto/mtclient/internal/transport"
)

type dialOptions struct {
	dcConfigPath string
	rsaKeysPath  string
	dcID         int
	mode         string
	proxyAddr    string
	dialTimeout  time.Duration
	retries      int
	retryPerSec  int
	logFile      string
}

func newDialCmd() *cobra.Command {
	opts := &dialOptions{}

	cmd := &cobra.Command{
		Use:   "dial",
		Short: "Dial a configured data center and run the authorization handshake",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDial(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.dcConfigPath, "dc-config", "", "path to the dc address table (required)")
	flags.StringVar(&opts.rsaKeysPath, "rsa-keys", "", "path to a PEM file of RSA PUBLIC KEY blocks (required)")
	flags.IntVar(&opts.dcID, "dc", -1, "data center id to dial (defaults to the table's dc_default)")
	flags.StringVar(&opts.mode, "mode", "obfuscated", "transport framing: full, intermediate, abridged, obfuscated")
	flags.StringVar(&opts.proxyAddr, "proxy", "", "SOCKS5 proxy address (host:port); empty dials directly")
	flags.DurationVar(&opts.dialTimeout, "dial-timeout", 10*time.Second, "TCP dial timeout")
	flags.IntVar(&opts.retries, "retries", 5, "handshake attempts before giving up")
	flags.IntVar(&opts.retryPerSec, "retries-per-second", 0, "cap handshake attempts per second across the process (0 = unlimited)")
	flags.StringVar(&opts.logFile, "log-file", "", "log file path (reopened on SIGHUP); defaults to stderr")

	cmd.MarkFlagRequired("dc-config")
	cmd.MarkFlagRequired("rsa-keys")

	return cmd
}

func runDial(cmd *cobra.Command, opts *dialOptions) error {
	logw, closeLog, err := setupLogWriter(opts.logFile)
	if err != nil {
		return fmt.Errorf("log writer: %w", err)
	}
	defer closeLog()
	installSIGHUPReopen(logw)

	loggerFactory := logging.NewDefaultLoggerFactory()
	loggerFactory.Writer = logw
	log := loggerFactory.NewLogger("dial")

	mode, err := parseMode(opts.mode)
	if err != nil {
		return err
	}

	table, err := dcconfig.ParseFile(opts.dcConfigPath)
	if err != nil {
		return fmt.Errorf("parse dc config: %w", err)
	}

	dc, ok := resolveDataCenter(table, opts.dcID)
	if !ok {
		return fmt.Errorf("data center not found in %s", opts.dcConfigPath)
	}
	if len(dc.Endpoints) == 0 {
		return fmt.Errorf("data center %d has no endpoints", dc.ID)
	}
	endpoint := dc.Endpoints[0]

	keysData, err := os.ReadFile(opts.rsaKeysPath)
	if err != nil {
		return fmt.Errorf("read rsa keys: %w", err)
	}
	keys, err := rsa.LoadPublicKeysPEM(keysData)
	if err != nil {
		return fmt.Errorf("load rsa keys: %w", err)
	}
	rsaTable := rsa.NewTable(keys)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	limiter := ratelimit.New(opts.retryPerSec)

	dial := func() (handshake.Sender, error) {
		if !limiter.Allow(time.Now()) {
			return nil, fmt.Errorf("handshake attempt rate limited")
		}
		log.Debugf("dialing dc=%d %s:%d mode=%s", endpoint.DataCenterID, endpoint.Host, endpoint.Port, opts.mode)
		return transport.Dial(endpoint, mode, opts.proxyAddr, opts.dialTimeout, transport.WithByteCounter(collector))
	}

	auth := handshake.New(rsaTable)

	started := time.Now()
	result, err := auth.Do(dial, opts.retries)
	elapsed := time.Since(started)
	collector.RecordHandshake(outcomeLabel(err), elapsed)
	if err != nil {
		log.Errorf("handshake failed: %v", err)
		return err
	}

	keyHash := crypto.SHA1(result.AuthKey[:])
	fmt.Fprintf(cmd.OutOrStdout(), "auth_key_id=%x time_offset=%s\n", keyHash[12:20], result.TimeOffset)
	return nil
}

func parseMode(s string) (transport.Mode, error) {
	switch s {
	case "full":
		return transport.Full, nil
	case "intermediate":
		return transport.Intermediate, nil
	case "abridged":
		return transport.Abridged, nil
	case "obfuscated":
		return transport.Obfuscated, nil
	default:
		return 0, fmt.Errorf("unknown transport mode %q", s)
	}
}

func resolveDataCenter(cfg dcconfig.Config, dcID int) (dcconfig.DataCenter, bool) {
	if dcID >= 0 {
		return cfg.DataCenter(dcID)
	}
	return cfg.DefaultDataCenter()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, errs.SecurityError):
		return metrics.OutcomeSecurityError
	case errors.Is(err, errs.ProtocolMismatch):
		return metrics.OutcomeProtocolMismatch
	case errors.Is(err, errs.RetryRequested):
		return metrics.OutcomeRetryRequested
	default:
		return metrics.OutcomeExhausted
	}
}
