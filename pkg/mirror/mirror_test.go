// Copyright 2025 Certen Protocol

package mirror

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/certen/sovereign-engine/pkg/event"
	"github.com/certen/sovereign-engine/pkg/projections"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), &ClientConfig{
		Enabled: false,
		Logger:  log.New(log.Writer(), "[mirror-test] ", 0),
	})
	require.NoError(t, err)
	require.False(t, c.IsEnabled())
	return c
}

func TestNewClient_DisabledIsNoNetworkNoOp(t *testing.T) {
	disabledClient(t)
}

func TestNewClient_EnabledWithoutProjectIDFails(t *testing.T) {
	_, err := NewClient(context.Background(), &ClientConfig{Enabled: true})
	require.Error(t, err)
}

func TestService_MirrorKillSwitch_DisabledIsNoOp(t *testing.T) {
	svc := NewService(disabledClient(t))
	svc.MirrorKillSwitch(context.Background(), projections.KillSwitchState{
		Level: 1, Reason: "caution", Found: true, UpdatedAt: time.Now(),
	})
}

func TestService_MirrorOpenPositions_DisabledIsNoOp(t *testing.T) {
	svc := NewService(disabledClient(t))
	svc.MirrorOpenPositions(context.Background(), []*event.PositionOpenedPayload{
		{PositionID: "p1", Asset: "BTC-USD", Direction: "long"},
	})
}

func TestService_MirrorConviction_DisabledIsNoOp(t *testing.T) {
	svc := NewService(disabledClient(t))
	svc.MirrorConviction(context.Background(), ConvictionSnapshot{
		CycleID: "c1", Symbol: "BTC-USD", Direction: "long", Ts: time.Now(),
	})
}
