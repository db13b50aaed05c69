package dcconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseBasicTable(t *testing.T) {
	cfg, err := Parse(`
		# production DCs
		dc 2 149.154.167.50:443;
		dc 2 149.154.167.51:443;
		dc 1 149.154.175.50:443;
		dc_default 2;
		timeout 7000;
	`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.TimeoutMS != 7000 {
		t.Fatalf("expected timeout 7000, got %d", cfg.TimeoutMS)
	}
	if cfg.DefaultDataCenterID != 2 {
		t.Fatalf("expected default dc 2, got %d", cfg.DefaultDataCenterID)
	}

	dc, ok := cfg.DefaultDataCenter()
	if !ok {
		t.Fatalf("expected default dc to resolve")
	}
	if len(dc.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints for dc 2, got %d", len(dc.Endpoints))
	}
	if dc.Endpoints[0].Host != "149.154.167.50" || dc.Endpoints[0].Port != 443 {
		t.Fatalf("unexpected endpoint: %+v", dc.Endpoints[0])
	}

	dc1, ok := cfg.DataCenter(1)
	if !ok || len(dc1.Endpoints) != 1 {
		t.Fatalf("unexpected dc 1: %+v ok=%v", dc1, ok)
	}
}

func TestParseBracketedIPv6(t *testing.T) {
	cfg, err := Parse(`dc 1 [2001:db8::1]:443;`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	dc, _ := cfg.DataCenter(1)
	if dc.Endpoints[0].Host != "2001:db8::1" || dc.Endpoints[0].Port != 443 {
		t.Fatalf("unexpected endpoint: %+v", dc.Endpoints[0])
	}
}

func TestParseRequiresSemicolons(t *testing.T) {
	if _, err := Parse("dc 1 1.2.3.4:443"); err == nil {
		t.Fatalf("expected error for missing trailing semicolon")
	}
}

func TestParseRequiresAtLeastOneDC(t *testing.T) {
	if _, err := Parse("timeout 1000;"); err == nil {
		t.Fatalf("expected error when no dc directive is present")
	}
}

func TestParseRejectsUnknownDirective(t *testing.T) {
	if _, err := Parse("bogus 1;"); err == nil {
		t.Fatalf("expected error for unknown directive")
	}
}

func TestParseRejectsBadTimeout(t *testing.T) {
	if _, err := Parse("dc 1 1.2.3.4:443; timeout 1;"); err == nil {
		t.Fatalf("expected error for out-of-range timeout")
	}
}

func TestParseFileReadsAndParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dc.conf")
	if err := os.WriteFile(path, []byte("dc 1 149.154.175.50:443;\ndc_default 1;\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	dc, ok := cfg.DefaultDataCenter()
	if !ok || len(dc.Endpoints) != 1 {
		t.Fatalf("unexpected config from file: %+v ok=%v", cfg, ok)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
