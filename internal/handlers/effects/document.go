package effects

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Iframe mounts an embedded frame on the session document.
func Iframe(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	frame := act.(action.Iframe)
	if frame.ID == "" {
		frame.ID = "iframe-" + uuid.NewString()
	}
	doc := rt.Capabilities.Document
	if doc == nil {
		return swallow(ctx, rt, frame.Type(), ErrNoDocument, event.IframeError{ID: frame.ID, Src: frame.Src, Err: ErrNoDocument})
	}
	if err := guard(func() error { return doc.MountIframe(ctx, frame) }); err != nil {
		return swallow(ctx, rt, frame.Type(), err, event.IframeError{ID: frame.ID, Src: frame.Src, Err: err})
	}
	rt.Emit(ctx, event.IframeLoaded{ID: frame.ID, Src: frame.Src})
	return action.Succeed(map[string]any{"id": frame.ID})
}

// CustomHTML injects HTML fragments and schedules their removal when
// removeAfter is set. Pending removals are registered as cancellable work.
type CustomHTML struct {
	wg sync.WaitGroup
}

// NewCustomHTML creates a customHtml handler.
func NewCustomHTML() *CustomHTML {
	return &CustomHTML{}
}

// Handle implements ports.ActionHandler.
func (c *CustomHTML) Handle(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	html := act.(action.CustomHTML)
	fragment := action.HTMLFragment{
		ID:       html.ID,
		HTML:     html.HTML,
		Target:   html.Target,
		Position: html.Position,
	}
	if fragment.ID == "" {
		fragment.ID = "custom-html-" + uuid.NewString()
	}
	if fragment.Target == "" {
		fragment.Target = action.DefaultHTMLTarget
	}
	if fragment.Position == "" {
		fragment.Position = action.DefaultHTMLPosition
	}

	doc := rt.Capabilities.Document
	if doc == nil {
		return swallow(ctx, rt, html.Type(), ErrNoDocument, event.HTMLError{ID: fragment.ID, Err: ErrNoDocument})
	}
	if err := guard(func() error { return doc.InjectHTML(ctx, fragment) }); err != nil {
		return swallow(ctx, rt, html.Type(), err, event.HTMLError{ID: fragment.ID, Err: err})
	}
	rt.Emit(ctx, event.HTMLRendered{ID: fragment.ID, Target: fragment.Target, Position: fragment.Position})

	if html.RemoveAfter > 0 {
		c.scheduleRemoval(ctx, fragment.ID, html.RemoveAfter, doc, rt)
	}
	return action.Succeed(map[string]any{"id": fragment.ID})
}

// Wait blocks until every scheduled removal has fired or been cancelled.
func (c *CustomHTML) Wait() {
	c.wg.Wait()
}

func (c *CustomHTML) scheduleRemoval(ctx context.Context, id string, after time.Duration, doc action.Document, rt ports.Runtime) {
	registry := rt.Cancellations
	if registry == nil {
		registry = cancellation.NewRegistry()
	}
	token := cancellation.NewToken(context.WithoutCancel(ctx))
	requestID := registry.Register(cancellation.OwnerFrom(ctx), token)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer registry.Release(requestID)

		timer := time.NewTimer(after)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-token.Done():
			return
		}

		bg := token.Context()
		if err := guard(func() error { return doc.RemoveHTML(bg, id) }); err != nil {
			swallow(bg, rt, action.KindCustomHTML, err, event.HTMLError{ID: id, Err: err})
			return
		}
		rt.Emit(bg, event.HTMLRemoved{ID: id})
	}()
}
