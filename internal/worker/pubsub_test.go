package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/invitely/invitely/internal/export"
)

type processFunc func(ctx context.Context, id string) error

func (f processFunc) Process(ctx context.Context, id string) error { return f(ctx, id) }

type reconcileFunc func(ctx context.Context) (export.Report, error)

func (f reconcileFunc) Reconcile(ctx context.Context) (export.Report, error) { return f(ctx) }

func TestHandleMessage(t *testing.T) {
	var processed []string
	proc := processFunc(func(_ context.Context, id string) error {
		if id == "exp_broken" {
			return errors.New("repository unavailable")
		}
		processed = append(processed, id)
		return nil
	})

	swept := 0
	sweep := NewSweepJob(SweepConfig{}, reconcileFunc(func(context.Context) (export.Report, error) {
		swept++
		return export.Report{}, nil
	}), zerolog.Nop())

	tests := []struct {
		name string
		data string
		ack  bool
	}{
		{"render", `{"job_type":"export_render","export_id":"exp_1"}`, true},
		{"render failure is redelivered", `{"job_type":"export_render","export_id":"exp_broken"}`, false},
		{"missing export id", `{"job_type":"export_render"}`, true},
		{"sweep", `{"job_type":"export_sweep"}`, true},
		{"unknown job type", `{"job_type":"provider_refresh"}`, true},
		{"malformed", `{not json`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := handleMessage(context.Background(), zerolog.Nop(), proc, sweep, []byte(tt.data))
			assert.Equal(t, tt.ack, ack)
		})
	}

	assert.Equal(t, []string{"exp_1"}, processed)
	assert.Equal(t, 1, swept)
}

func TestHandleMessage_SweepNotConfigured(t *testing.T) {
	proc := processFunc(func(context.Context, string) error { return nil })
	assert.True(t, handleMessage(context.Background(), zerolog.Nop(), proc, nil, []byte(`{"job_type":"export_sweep"}`)))
}
