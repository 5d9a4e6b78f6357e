package terminology

import (
	"testing"
	"time"
)

func TestNewSessionFactory_Defaults(t *testing.T) {
	f := NewSessionFactory(0)
	if f.RetryMax != 4 {
		t.Errorf("expected default retry max 4, got %d", f.RetryMax)
	}
	if f.Backoff != 2*time.Second {
		t.Errorf("expected default backoff 2s, got %s", f.Backoff)
	}
}

func TestSessionFactory_NewSessionsAreIndependent(t *testing.T) {
	f := NewSessionFactory(3)
	a := f.New()
	b := f.New()
	if a == b {
		t.Fatal("expected distinct sessions per call")
	}
	if a.client == b.client {
		t.Fatal("expected distinct underlying clients per session")
	}
	a.Close()
	b.Close()
}

func TestSessionFactory_AppliesRetryPolicy(t *testing.T) {
	f := &SessionFactory{RetryMax: 7, Backoff: time.Second}
	s := f.New()
	defer s.Close()
	if s.client.RetryMax != 7 {
		t.Errorf("expected retry max 7, got %d", s.client.RetryMax)
	}
	if s.client.RetryWaitMin != time.Second {
		t.Errorf("expected min wait 1s, got %s", s.client.RetryWaitMin)
	}
	if s.client.RetryWaitMax != 32*time.Second {
		t.Errorf("expected max wait 32s, got %s", s.client.RetryWaitMax)
	}
}
