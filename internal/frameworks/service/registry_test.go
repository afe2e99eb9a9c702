package service

import (
	"log/slog"
	"net/http"
	"testing"
)

type stubService struct{}

func (s *stubService) Handler() http.Handler { return http.NewServeMux() }
func (s *stubService) Prefix() string        { return "stub" }
func (s *stubService) Close() error          { return nil }
func (s *stubService) Unprotected() []string { return nil }

func stubFactory(conf map[string]any, log *slog.Logger) (Service, error) {
	return &stubService{}, nil
}

func TestRegisterAndGet(t *testing.T) {
	resetRegistry()

	if err := Register("stub", stubFactory); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	factory := Get("stub")
	if factory == nil {
		t.Fatal("Get returned nil for a registered service")
	}
	svc, err := factory(nil, nil)
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if svc.Prefix() != "stub" {
		t.Errorf("expected prefix stub, got %q", svc.Prefix())
	}

	if Get("unknown") != nil {
		t.Error("Get must return nil for unregistered services")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	resetRegistry()

	if err := Register("stub", stubFactory); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := Register("stub", stubFactory); err == nil {
		t.Error("duplicate registration must fail")
	}
}

func TestMustRegister_PanicsOnDuplicate(t *testing.T) {
	resetRegistry()

	MustRegister("stub", stubFactory)

	defer func() {
		if recover() == nil {
			t.Error("MustRegister must panic on duplicate registration")
		}
	}()
	MustRegister("stub", stubFactory)
}

func TestRegisteredServices(t *testing.T) {
	resetRegistry()

	MustRegister("a", stubFactory)
	MustRegister("b", stubFactory)

	names := RegisteredServices()
	if len(names) != 2 {
		t.Fatalf("expected 2 services, got %d: %v", len(names), names)
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("missing registered names: %v", names)
	}
}
