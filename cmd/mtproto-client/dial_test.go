package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/telegram-mtproto/mtclient/internal/dcconfig"
	"github.com/telegram-mtproto/mtclient/internal/errs"
	"github.com/telegram-mtproto/mtclient/internal/metrics"
	"github.com/telegram-mtproto/mtclient/internal/transport"
)

func TestParseMode(t *testing.T) {
	cases := map[string]transport.Mode{
		"full":         transport.Full,
		"intermediate": transport.Intermediate,
		"abridged":     transport.Abridged,
		"obfuscated":   transport.Obfuscated,
	}
	for s, want := range cases {
		got, err := parseMode(s)
		if err != nil {
			t.Fatalf("parseMode(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("parseMode(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := parseMode("bogus"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestResolveDataCenterExplicitID(t *testing.T) {
	cfg, err := dcconfig.Parse("dc 1 1.2.3.4:443; dc 2 5.6.7.8:443; dc_default 2;")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dc, ok := resolveDataCenter(cfg, 1)
	if !ok || dc.ID != 1 {
		t.Fatalf("expected dc 1, got %+v ok=%v", dc, ok)
	}
}

func TestResolveDataCenterDefaultsToTableDefault(t *testing.T) {
	cfg, err := dcconfig.Parse("dc 1 1.2.3.4:443; dc 2 5.6.7.8:443; dc_default 2;")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	dc, ok := resolveDataCenter(cfg, -1)
	if !ok || dc.ID != 2 {
		t.Fatalf("expected default dc 2, got %+v ok=%v", dc, ok)
	}
}

func TestOutcomeLabel(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, metrics.OutcomeOK},
		{fmt.Errorf("wrap: %w", errs.SecurityError), metrics.OutcomeSecurityError},
		{fmt.Errorf("wrap: %w", errs.ProtocolMismatch), metrics.OutcomeProtocolMismatch},
		{fmt.Errorf("wrap: %w", errs.RetryRequested), metrics.OutcomeRetryRequested},
		{errors.New("some other failure"), metrics.OutcomeExhausted},
	}
	for _, c := range cases {
		if got := outcomeLabel(c.err); got != c.want {
			t.Fatalf("outcomeLabel(%v) = %q, want %q", c.err, got, c.want)
		}
	}
}
