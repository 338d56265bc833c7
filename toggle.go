package feedsync

import (
	"context"
	"sync"
)

// Field is a copy of a Toggle's state. When Pending is false,
// Displayed == Committed.
type Field struct {
	Committed bool
	Displayed bool
	Pending   bool
}

// SendFunc writes the wanted value remotely.
type SendFunc func(ctx context.Context, want bool) error

// ToggleOptions tune a Toggle.
type ToggleOptions struct {
	OnChange func(Field)
	OnError  func(error) // one-line notification hook for failed writes
	Logger   Logger      // if nil, NopLogger is used
	Hooks    Hooks       // if nil, NopHooks is used
}

// Toggle is a local-first binary field (liked, saved, attending).
//
// Toggle flips the displayed value at once and writes it in the background.
// Writes are serialized: while one is in flight further toggles only flip the
// displayed value, and when the write settles the latest displayed value is
// sent if it still differs from what was committed. A failed write restores
// the last committed value and drops anything queued.
type Toggle struct {
	send     SendFunc
	onChange func(Field)
	onError  func(error)
	log      Logger
	hooks    Hooks

	mu        sync.Mutex
	committed bool
	displayed bool
	inflight  bool
	done      chan struct{}
	lastErr   error
}

// NewToggle seeds a Toggle from the last known committed value. It panics
// if send is nil.
func NewToggle(committed bool, send SendFunc, opts ToggleOptions) *Toggle {
	if send == nil {
		panic("feedsync: toggle send func is required")
	}
	return &Toggle{
		send:      send,
		onChange:  opts.OnChange,
		onError:   opts.OnError,
		log:       coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:     coalesce[Hooks](opts.Hooks, NopHooks{}),
		committed: committed,
		displayed: committed,
	}
}

// Toggle flips the displayed value and schedules the write. It never blocks
// on the network.
func (t *Toggle) Toggle(ctx context.Context) {
	t.mu.Lock()
	t.displayed = !t.displayed
	if t.inflight {
		f := t.fieldLocked()
		t.mu.Unlock()
		t.emit(f)
		return
	}
	t.inflight = true
	t.done = make(chan struct{})
	t.lastErr = nil
	want := t.displayed
	done := t.done
	f := t.fieldLocked()
	t.mu.Unlock()
	t.emit(f)

	go t.loop(context.WithoutCancel(ctx), want, done)
}

// loop owns the write sequence. done is closed after every callback of the
// sequence has run.
func (t *Toggle) loop(ctx context.Context, want bool, done chan struct{}) {
	defer close(done)
	for {
		err := t.send(ctx, want)

		t.mu.Lock()
		if err != nil {
			t.displayed = t.committed
			t.inflight = false
			t.lastErr = err
			f := t.fieldLocked()
			t.mu.Unlock()

			t.log.Warn("toggle write failed; reverted", Fields{"committed": f.Committed, "err": err})
			t.hooks.ToggleReverted(err)
			t.emit(f)
			if t.onError != nil {
				t.onError(err)
			}
			return
		}

		t.committed = want
		if t.displayed != t.committed {
			want = t.displayed
			f := t.fieldLocked()
			t.mu.Unlock()
			t.emit(f)
			continue
		}
		t.inflight = false
		f := t.fieldLocked()
		t.mu.Unlock()
		t.emit(f)
		return
	}
}

// State returns committed, displayed and pending read under one lock.
func (t *Toggle) State() Field {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fieldLocked()
}

// Displayed is the value to render.
func (t *Toggle) Displayed() bool { return t.State().Displayed }

// Reset reseeds the committed value from a fresh read. It is ignored while a
// write is pending.
func (t *Toggle) Reset(committed bool) {
	t.mu.Lock()
	if t.inflight {
		t.mu.Unlock()
		return
	}
	changed := t.committed != committed
	t.committed = committed
	t.displayed = committed
	f := t.fieldLocked()
	t.mu.Unlock()
	if changed {
		t.emit(f)
	}
}

// Wait blocks until the latest write sequence and its callbacks have finished
// and returns its error, if it failed.
func (t *Toggle) Wait(ctx context.Context) error {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Toggle) fieldLocked() Field {
	return Field{Committed: t.committed, Displayed: t.displayed, Pending: t.inflight}
}

func (t *Toggle) emit(f Field) {
	if t.onChange != nil {
		t.onChange(f)
	}
}
