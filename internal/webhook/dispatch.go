package webhook

import (
	"errors"
	"fmt"

	"github.com/gosnap/gosnap/internal/feedback"
)

// ErrBatchTooLarge reports a batch exceeding the configured cap. The
// batch is rejected wholesale: no record is created.
var ErrBatchTooLarge = errors.New("batch size exceeds limit")

// Result is the webhook response body. Pointer fields keep false/zero
// values visible in JSON while omitting fields the event doesn't use.
type Result struct {
	OK      bool  `json:"ok"`
	Created *int  `json:"created,omitempty"`
	Updated *bool `json:"updated,omitempty"`
	Deleted *bool `json:"deleted,omitempty"`
}

// Dispatcher applies validated sync payloads to the feedback store.
type Dispatcher struct {
	store    feedback.Store
	maxBatch int
}

func NewDispatcher(store feedback.Store, maxBatch int) *Dispatcher {
	return &Dispatcher{store: store, maxBatch: maxBatch}
}

// Dispatch routes a payload by event kind. Unresolvable update/delete
// targets are not errors: the record may predate this process or have
// been removed already, so the result just reports updated/deleted as
// false. The switch is exhaustive over the event enum; an unknown kind
// reaching this point is a programming error and is returned as one.
func (d *Dispatcher) Dispatch(p *SyncPayload) (Result, error) {
	switch p.Event {
	case EventCreated:
		return d.created(p)
	case EventUpdated:
		return d.updated(p)
	case EventDeleted:
		return d.deleted(p)
	case EventBatch:
		return d.batch(p)
	default:
		return Result{}, fmt.Errorf("unhandled sync event %q", p.Event)
	}
}

func (d *Dispatcher) created(p *SyncPayload) (Result, error) {
	if p.Feedback == nil {
		return createdResult(0), nil
	}
	if _, err := d.store.CreateFeedback(transformItem(p.Feedback, p.Page)); err != nil {
		return Result{}, err
	}
	return createdResult(1), nil
}

func (d *Dispatcher) updated(p *SyncPayload) (Result, error) {
	if p.FeedbackID == "" || p.UpdatedContent == "" {
		return updatedResult(false), nil
	}
	id, err := d.store.FindByExternalID(p.FeedbackID)
	if errors.Is(err, feedback.ErrNotFound) {
		return updatedResult(false), nil
	}
	if err != nil {
		return Result{}, err
	}
	content := p.UpdatedContent
	if _, err := d.store.UpdateFeedback(id, feedback.UpdateFeedbackInput{Comment: &content}); err != nil {
		return Result{}, err
	}
	return updatedResult(true), nil
}

func (d *Dispatcher) deleted(p *SyncPayload) (Result, error) {
	if p.FeedbackID == "" {
		return deletedResult(false), nil
	}
	id, err := d.store.FindByExternalID(p.FeedbackID)
	if errors.Is(err, feedback.ErrNotFound) {
		return deletedResult(false), nil
	}
	if err != nil {
		return Result{}, err
	}
	if _, err := d.store.DeleteFeedback(id); err != nil {
		// Already resolved or dismissed: nothing left to delete.
		if errors.Is(err, feedback.ErrInvalidState) || errors.Is(err, feedback.ErrNotFound) {
			return deletedResult(false), nil
		}
		return Result{}, err
	}
	return deletedResult(true), nil
}

func (d *Dispatcher) batch(p *SyncPayload) (Result, error) {
	if len(p.Feedbacks) > d.maxBatch {
		return Result{}, fmt.Errorf("%w: %d items, maximum is %d", ErrBatchTooLarge, len(p.Feedbacks), d.maxBatch)
	}
	for i := range p.Feedbacks {
		if _, err := d.store.CreateFeedback(transformItem(&p.Feedbacks[i], p.Page)); err != nil {
			return Result{}, err
		}
	}
	return createdResult(len(p.Feedbacks)), nil
}

func createdResult(n int) Result  { return Result{OK: true, Created: &n} }
func updatedResult(b bool) Result { return Result{OK: true, Updated: &b} }
func deletedResult(b bool) Result { return Result{OK: true, Deleted: &b} }
