package fhir

import "testing"

func TestParseURLVersion_WithVersion(t *testing.T) {
	url, version := ParseURLVersion("http://hl7.org/fhir/ValueSet/example|4.0.1")
	if url != "http://hl7.org/fhir/ValueSet/example" {
		t.Errorf("unexpected url: %q", url)
	}
	if version != "4.0.1" {
		t.Errorf("unexpected version: %q", version)
	}
}

func TestParseURLVersion_WithoutVersion(t *testing.T) {
	url, version := ParseURLVersion("http://hl7.org/fhir/ValueSet/example")
	if url != "http://hl7.org/fhir/ValueSet/example" {
		t.Errorf("unexpected url: %q", url)
	}
	if version != "" {
		t.Errorf("expected empty version, got %q", version)
	}
}

func TestStripVersion(t *testing.T) {
	if got := StripVersion("http://loinc.org/vs/LL1000-0|2.1"); got != "http://loinc.org/vs/LL1000-0" {
		t.Errorf("unexpected stripped url: %q", got)
	}
	if got := StripVersion("http://loinc.org/vs/LL1000-0"); got != "http://loinc.org/vs/LL1000-0" {
		t.Errorf("unexpected stripped url: %q", got)
	}
}

func TestAuthority(t *testing.T) {
	host, err := Authority("http://terminology.hl7.org/ValueSet/v3-ActCode")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if host != "terminology.hl7.org" {
		t.Errorf("unexpected authority: %q", host)
	}
}

func TestAuthority_NoHost(t *testing.T) {
	if _, err := Authority("urn:oid:2.16.840.1.113883"); err == nil {
		t.Error("expected error for url without authority")
	}
}
