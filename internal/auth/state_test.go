package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/pixvault/internal/model"
)

func newTestStateSigner(t *testing.T) *StateSigner {
	t.Helper()
	s, err := NewStateSigner("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewStateSigner: %v", err)
	}
	return s
}

func TestNewStateSigner_ShortSecret(t *testing.T) {
	if _, err := NewStateSigner("short"); err == nil {
		t.Fatal("NewStateSigner() should reject secrets shorter than 16 chars")
	}
}

func TestState_RoundTrip(t *testing.T) {
	s := newTestStateSigner(t)

	state, err := s.Sign(model.ProviderGitHub)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if strings.Count(state, ".") != 2 {
		t.Errorf("Sign() = %q, does not look like a JWT", state)
	}
	if err := s.Verify(state, model.ProviderGitHub); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestState_UniquePerCall(t *testing.T) {
	s := newTestStateSigner(t)

	a, _ := s.Sign(model.ProviderGoogle)
	b, _ := s.Sign(model.ProviderGoogle)
	if a == b {
		t.Error("Sign() returned the same state twice")
	}
}

func TestState_WrongProvider(t *testing.T) {
	s := newTestStateSigner(t)

	state, _ := s.Sign(model.ProviderGoogle)
	err := s.Verify(state, model.ProviderFacebook)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Verify() error = %v, want ErrInvalidState", err)
	}
}

func TestState_Expired(t *testing.T) {
	s := newTestStateSigner(t)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return issued }

	state, err := s.Sign(model.ProviderGitHub)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	s.now = func() time.Time { return issued.Add(StateTTL + time.Second) }
	if err := s.Verify(state, model.ProviderGitHub); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Verify() of expired state error = %v, want ErrInvalidState", err)
	}
}

func TestState_WrongSecret(t *testing.T) {
	s1, _ := NewStateSigner("correct-secret-32-chars-long!!!!")
	s2, _ := NewStateSigner("wrong-secret-32-chars-long!!!!!!")

	state, _ := s1.Sign(model.ProviderGitHub)
	if err := s2.Verify(state, model.ProviderGitHub); err == nil {
		t.Fatal("Verify() should fail with a different secret")
	}
}

func TestState_Garbage(t *testing.T) {
	s := newTestStateSigner(t)

	for _, state := range []string{"", "not.a.jwt", "xxxxxxxx"} {
		if err := s.Verify(state, model.ProviderGitHub); err == nil {
			t.Errorf("Verify(%q) should fail", state)
		}
	}
}
