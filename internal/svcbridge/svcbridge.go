// Package svcbridge adapts systemd units to per-service Status topics
// plus a Start/Stop/Restart action verb, exec-wrapping
// `systemctl` the same way internal/rauc exec-wraps `rauc`.
package svcbridge

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/linux-automation/tacd/internal/errkind"
	"github.com/linux-automation/tacd/internal/execcli"
	"github.com/linux-automation/tacd/internal/model"
	"github.com/linux-automation/tacd/internal/topic"
)

// Service tracks and controls one systemd unit.
type Service struct {
	unit   string
	cli    *execcli.Runner
	Status *topic.Topic[model.ServiceStatus]
}

func NewService(cli *execcli.Runner, unit string, status *topic.Topic[model.ServiceStatus]) *Service {
	return &Service{unit: unit, cli: cli, Status: status}
}

type showProps struct {
	ActiveState   string `json:"ActiveState"`
	SubState      string `json:"SubState"`
	ActiveEnterTS string `json:"ActiveEnterTimestampMonotonic"`
	ActiveExitTS  string `json:"ActiveExitTimestampMonotonic"`
}

// Refresh runs `systemctl show` and publishes the unit's current status.
func (s *Service) Refresh(ctx context.Context) error {
	out, err := s.cli.Run(ctx, "show", s.unit,
		"--property=ActiveState,SubState,ActiveEnterTimestampMonotonic,ActiveExitTimestampMonotonic",
		"--output=json")
	if err != nil {
		return err
	}
	var props showProps
	if err := json.Unmarshal(out, &props); err != nil {
		return errkind.Wrap(errkind.Internal, "svcbridge.Refresh", err)
	}
	enter, _ := strconv.ParseInt(strings.TrimSpace(props.ActiveEnterTS), 10, 64)
	exit, _ := strconv.ParseInt(strings.TrimSpace(props.ActiveExitTS), 10, 64)
	s.Status.Publish(model.ServiceStatus{
		ActiveState:   props.ActiveState,
		SubState:      props.SubState,
		ActiveEnterTS: enter,
		ActiveExitTS:  exit,
	})
	return nil
}

// Act dispatches a control verb to systemctl, then refreshes status.
func (s *Service) Act(ctx context.Context, action model.ServiceAction) error {
	var verb string
	switch action {
	case model.ActionStart:
		verb = "start"
	case model.ActionStop:
		verb = "stop"
	case model.ActionRestart:
		verb = "restart"
	default:
		return errkind.New(errkind.BadRequest, "svcbridge.Act", "unknown action: "+string(action))
	}
	if _, err := s.cli.Run(ctx, verb, s.unit); err != nil {
		return err
	}
	return s.Refresh(ctx)
}
