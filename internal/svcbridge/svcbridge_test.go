package svcbridge

import (
	"testing"

	"github.com/linux-automation/tacd/internal/model"
)

func TestActRejectsUnknownVerb(t *testing.T) {
	s := &Service{unit: "example.service"}
	if err := s.Act(nil, model.ServiceAction("Frobnicate")); err == nil {
		t.Fatal("expected unknown action to be rejected before any exec")
	}
}
