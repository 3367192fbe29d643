package noop

import (
	"context"
	"testing"

	"github.com/rhuss/fetchbridge/pkg/auth"
)

func TestNoopAcceptsEverything(t *testing.T) {
	result := (&Authenticator{}).Authenticate(context.Background(), nil)
	if result.Decision != auth.Yes {
		t.Fatalf("decision = %v, want Yes", result.Decision)
	}
	if result.Identity == nil || result.Identity.Subject != "anonymous" {
		t.Errorf("identity = %+v, want anonymous", result.Identity)
	}
	if result.Identity.ServiceTier != auth.DefaultTier {
		t.Errorf("tier = %q, want %q", result.Identity.ServiceTier, auth.DefaultTier)
	}
}
