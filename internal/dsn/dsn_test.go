package dsn

import "testing"

func TestParse_DefaultPort(t *testing.T) {
	target, err := Parse("bolt://db.example.com")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Host != "db.example.com" || target.Port != DefaultPort {
		t.Fatalf("target = %+v", target)
	}
	if target.RequiresTLS() || target.TrustAllCertificates() {
		t.Fatalf("plain bolt:// should not require TLS, got %+v", target)
	}
}

func TestParse_ExplicitPortAndTLSVariant(t *testing.T) {
	target, err := Parse("bolt+s://db.example.com:7688")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if target.Port != 7688 {
		t.Fatalf("port = %d, want 7688", target.Port)
	}
	if !target.RequiresTLS() {
		t.Fatal("bolt+s:// should require TLS")
	}
	if target.TrustAllCertificates() {
		t.Fatal("bolt+s:// should not trust all certificates")
	}
	if target.HostLabel() != "db.example.com:7688" {
		t.Fatalf("HostLabel = %q", target.HostLabel())
	}
}

func TestParse_SelfSignedVariant(t *testing.T) {
	target, err := Parse("bolt+ssc://db.example.com")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !target.RequiresTLS() || !target.TrustAllCertificates() {
		t.Fatalf("bolt+ssc:// should require TLS and trust all certs, got %+v", target)
	}
}

func TestParse_RejectsUnsupportedScheme(t *testing.T) {
	if _, err := Parse("http://db.example.com"); err == nil {
		t.Fatal("expected an error for an unsupported scheme")
	}
}

func TestParse_RejectsMissingHost(t *testing.T) {
	if _, err := Parse("bolt://"); err == nil {
		t.Fatal("expected an error for a missing host")
	}
}
