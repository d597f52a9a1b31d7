// Package memory implements an in-process gate service backed by the
// generic memory store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relforge/tagship/runtime/execution"
	"github.com/relforge/tagship/service/dao"
	"github.com/relforge/tagship/service/dao/store"
	"github.com/relforge/tagship/service/gate"
	"github.com/relforge/tagship/service/messaging"
	qmem "github.com/relforge/tagship/service/messaging/memory"
)

type service struct {
	executionDAO dao.Service[string, execution.StepExecution]

	reqDAO dao.Service[string, gate.Request]
	decDAO dao.Service[string, gate.Decision]

	// fan-out queue
	events messaging.Queue[gate.Event]

	// owning run store, needed to update the execution embedded in the run
	// stack once a decision lands
	runDAO dao.Service[string, execution.Run]
}

func reqKey(r *gate.Request) string  { return r.ID }
func decKey(d *gate.Decision) string { return d.ID }

// New creates a gate service over the given execution store.
func New(executionDAO dao.Service[string, execution.StepExecution], options ...Option) gate.Service {
	ret := &service{
		executionDAO: executionDAO,
		reqDAO:       store.NewMemory[string, gate.Request](reqKey),
		decDAO:       store.NewMemory[string, gate.Decision](decKey),
		events:       qmem.NewQueue[gate.Event](qmem.DefaultConfig()),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Request registers a pending gate request; resubmissions overwrite the
// previous copy.
func (s *service) Request(ctx context.Context, r *gate.Request) error {
	if r == nil {
		return errors.New("invalid request")
	}
	if r.ID == "" {
		switch {
		case r.ExecutionID != "":
			r.ID = r.ExecutionID
		case r.RunID != "":
			r.ID = fmt.Sprintf("%s/%d", r.RunID, time.Now().UnixNano())
		default:
			r.ID = fmt.Sprintf("anon-%d", time.Now().UnixNano())
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_ = s.reqDAO.Save(ctx, r)
	_ = s.events.Publish(ctx, &gate.Event{Topic: gate.TopicRequestCreated, Data: r})
	return nil
}

// ListPending returns requests without a recorded decision.
func (s *service) ListPending(ctx context.Context) ([]*gate.Request, error) {
	all, err := s.reqDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*gate.Request, 0, len(all))
	for _, r := range all {
		if d, _ := s.decDAO.Load(ctx, r.ID); d == nil {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// Decide records the decision and moves the parked execution back to
// pending so the allocator picks it up again.
func (s *service) Decide(ctx context.Context, id string, ok bool, reason string) (*gate.Decision, error) {
	if id == "" {
		return nil, errors.New("empty id")
	}
	request, _ := s.reqDAO.Load(ctx, id)
	if request == nil {
		return nil, fmt.Errorf("request %s not found", id)
	}
	if d, _ := s.decDAO.Load(ctx, id); d != nil {
		return nil, fmt.Errorf("already decided")
	}

	if s.executionDAO != nil && request.ExecutionID != "" {
		anExecution, err := s.executionDAO.Load(ctx, request.ExecutionID)
		if err != nil {
			return nil, err
		}
		anExecution.GateApproved = &ok
		anExecution.GateReason = reason
		anExecution.State = execution.StepStatePending
		if err = s.executionDAO.Save(ctx, anExecution); err != nil {
			return nil, err
		}

		// Update the copy embedded in the run stack so the allocator sees
		// the change.
		if s.runDAO != nil {
			if aRun, rErr := s.runDAO.Load(ctx, request.RunID); rErr == nil && aRun != nil {
				if inRun := aRun.LookupExecution(anExecution.StepID); inRun != nil {
					inRun.GateApproved = anExecution.GateApproved
					inRun.GateReason = reason
					inRun.State = execution.StepStatePending
					_ = s.runDAO.Save(ctx, aRun)
				}
			}
		}
	}

	d := &gate.Decision{
		ID:        id,
		Approved:  ok,
		Reason:    reason,
		DecidedAt: time.Now(),
	}
	_ = s.decDAO.Save(ctx, d)
	_ = s.events.Publish(ctx, &gate.Event{Topic: gate.TopicDecisionCreated, Data: d})
	return d, nil
}

// Queue exposes the gate event queue.
func (s *service) Queue() messaging.Queue[gate.Event] { return s.events }

var _ gate.Service = (*service)(nil)
