package effects

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/actionflow/internal/cancellation"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/events"
	"github.com/alexisbeaulieu97/actionflow/internal/infrastructure/logging"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType())
	}
	return out
}

func (r *recorder) last() event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func newRuntime(t *testing.T, caps action.Capabilities) (ports.Runtime, *recorder) {
	t.Helper()
	rec := &recorder{}
	bus := events.NewBus(logging.NewNoOpLogger())
	all := []event.Type{
		event.TypeAnalyticsEvent, event.TypeAnalyticsError,
		event.TypePixelFired, event.TypePixelError,
		event.TypeIframeLoaded, event.TypeIframeError,
		event.TypeHTMLRendered, event.TypeHTMLError, event.TypeHTMLRemoved,
		event.TypeLogEvent,
	}
	for _, typ := range all {
		bus.On(typ, func(_ context.Context, ev event.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, ev)
			return nil
		})
	}
	return ports.Runtime{
		Capabilities:  caps,
		Cancellations: cancellation.NewRegistry(),
		Events:        bus,
		Logger:        logging.NewNoOpLogger(),
	}, rec
}

type fakeDocument struct {
	mu        sync.Mutex
	injected  []action.HTMLFragment
	removed   []string
	frames    []action.Iframe
	injectErr error
	panicOn   string
}

func (d *fakeDocument) InjectHTML(_ context.Context, f action.HTMLFragment) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOn == "inject" {
		panic("document detached")
	}
	if d.injectErr != nil {
		return d.injectErr
	}
	d.injected = append(d.injected, f)
	return nil
}

func (d *fakeDocument) RemoveHTML(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removed = append(d.removed, id)
	return nil
}

func (d *fakeDocument) MountIframe(_ context.Context, f action.Iframe) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
	return nil
}

func (d *fakeDocument) removedIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removed...)
}

func TestAnalyticsUsesProviderClient(t *testing.T) {
	t.Parallel()

	var got []string
	caps := action.Capabilities{
		Analytics: map[action.Provider]action.AnalyticsProvider{
			action.ProviderSegment: action.AnalyticsProviderFunc(func(_ context.Context, name string, _ map[string]any) error {
				got = append(got, name)
				return nil
			}),
		},
	}
	rt, rec := newRuntime(t, caps)

	res := Analytics(context.Background(), action.Analytics{Event: "signup", Provider: action.ProviderSegment}, rt)
	require.True(t, res.Success)
	require.Equal(t, []string{"signup"}, got)
	require.Equal(t, event.AnalyticsTracked{Provider: "segment", Event: "signup"}, rec.last())
}

func TestAnalyticsFallsBackToTrackEvent(t *testing.T) {
	t.Parallel()

	var props map[string]any
	caps := action.Capabilities{
		TrackEvent: func(_ context.Context, _ string, p map[string]any) error {
			props = p
			return nil
		},
	}
	rt, _ := newRuntime(t, caps)

	res := Analytics(context.Background(), action.Analytics{Event: "view", Properties: map[string]any{"page": "home"}}, rt)
	require.True(t, res.Success)
	require.Equal(t, map[string]any{"page": "home", "provider": "gtag"}, props)
}

func TestAnalyticsFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	caps := action.Capabilities{
		TrackEvent: func(context.Context, string, map[string]any) error { return errors.New("blocked") },
	}
	rt, rec := newRuntime(t, caps)

	res := Analytics(context.Background(), action.Analytics{Event: "view"}, rt)
	require.True(t, res.Success)
	require.Equal(t, []event.Type{event.TypeAnalyticsError}, rec.types())

	rt, rec = newRuntime(t, action.Capabilities{})
	res = Analytics(context.Background(), action.Analytics{Event: "view", Provider: action.ProviderMixpanel}, rt)
	require.True(t, res.Success)
	failed := rec.last().(event.AnalyticsFailed)
	require.EqualError(t, failed.Err, `no analytics provider "mixpanel"`)
}

func TestLogWritesThroughLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Writer: &buf, Level: "debug", Format: logging.FormatJSON})
	require.NoError(t, err)

	rt, rec := newRuntime(t, action.Capabilities{})
	rt.Logger = logger

	res := Log(context.Background(), action.Log{Message: "checkout started", Level: action.LevelWarn, Data: map[string]any{"step": 2}}, rt)
	require.True(t, res.Success)
	require.Contains(t, buf.String(), `"message":"checkout started"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Equal(t, event.LogEvent{Level: "warn", Message: "checkout started", Data: map[string]any{"step": 2}}, rec.last())

	res = Log(context.Background(), action.Log{Message: "plain"}, rt)
	require.True(t, res.Success)
	require.Equal(t, "info", rec.last().(event.LogEvent).Level)
}

// panickingLogger fails on every write.
type panickingLogger struct{ ports.Logger }

func (panickingLogger) Info(context.Context, string, ...interface{}) { panic("log sink closed") }

func TestLogSurvivesPanickingLogger(t *testing.T) {
	t.Parallel()

	rt, rec := newRuntime(t, action.Capabilities{})
	rt.Logger = panickingLogger{}

	res := Log(context.Background(), action.Log{Message: "still here"}, rt)
	require.True(t, res.Success)
	require.Equal(t, event.LogEvent{Level: "info", Message: "still here"}, rec.last())
}

func TestIframeMountsOnDocument(t *testing.T) {
	t.Parallel()

	doc := &fakeDocument{}
	rt, rec := newRuntime(t, action.Capabilities{Document: doc})

	res := Iframe(context.Background(), action.Iframe{Src: "https://video.test/embed", Width: "640", Height: "360"}, rt)
	require.True(t, res.Success)
	require.Len(t, doc.frames, 1)
	require.True(t, strings.HasPrefix(doc.frames[0].ID, "iframe-"))
	require.Equal(t, event.TypeIframeLoaded, rec.last().EventType())
}

func TestIframeWithoutDocumentStillSucceeds(t *testing.T) {
	t.Parallel()

	rt, rec := newRuntime(t, action.Capabilities{})
	res := Iframe(context.Background(), action.Iframe{Src: "https://x.test", Width: "1", Height: "1", ID: "frame"}, rt)
	require.True(t, res.Success)
	failed := rec.last().(event.IframeError)
	require.Equal(t, "frame", failed.ID)
	require.ErrorIs(t, failed.Err, ErrNoDocument)
}

func TestCustomHTMLAppliesDefaults(t *testing.T) {
	t.Parallel()

	doc := &fakeDocument{}
	rt, rec := newRuntime(t, action.Capabilities{Document: doc, AllowCustomHTML: true})

	res := NewCustomHTML().Handle(context.Background(), action.CustomHTML{HTML: "<b>hi</b>", ID: "promo"}, rt)
	require.True(t, res.Success)
	require.Equal(t, []action.HTMLFragment{{ID: "promo", HTML: "<b>hi</b>", Target: "body", Position: "append"}}, doc.injected)
	require.Equal(t, event.HTMLRendered{ID: "promo", Target: "body", Position: "append"}, rec.last())
}

func TestCustomHTMLRemovesAfterDelay(t *testing.T) {
	t.Parallel()

	doc := &fakeDocument{}
	rt, rec := newRuntime(t, action.Capabilities{Document: doc})
	handler := NewCustomHTML()

	res := handler.Handle(context.Background(), action.CustomHTML{HTML: "<p/>", ID: "toast", RemoveAfter: 50 * time.Millisecond}, rt)
	require.True(t, res.Success)
	require.Equal(t, 1, rt.Cancellations.Size())

	handler.Wait()
	require.Equal(t, []string{"toast"}, doc.removedIDs())
	require.Equal(t, event.HTMLRemoved{ID: "toast"}, rec.last())
	require.Equal(t, 0, rt.Cancellations.Size())
}

func TestCustomHTMLRemovalIsCancellable(t *testing.T) {
	t.Parallel()

	doc := &fakeDocument{}
	rt, _ := newRuntime(t, action.Capabilities{Document: doc})
	handler := NewCustomHTML()

	ctx := cancellation.WithOwner(context.Background(), "banner")
	handler.Handle(ctx, action.CustomHTML{HTML: "<p/>", ID: "late", RemoveAfter: time.Hour}, rt)
	require.Equal(t, 1, rt.Cancellations.CancelOwner("banner"))

	handler.Wait()
	require.Empty(t, doc.removedIDs())
	require.Equal(t, 0, rt.Cancellations.Size())
}

func TestCustomHTMLPanicIsContained(t *testing.T) {
	t.Parallel()

	doc := &fakeDocument{panicOn: "inject"}
	rt, rec := newRuntime(t, action.Capabilities{Document: doc})

	res := NewCustomHTML().Handle(context.Background(), action.CustomHTML{HTML: "<p/>", ID: "x"}, rt)
	require.True(t, res.Success)
	failed := rec.last().(event.HTMLError)
	require.EqualError(t, failed.Err, "panic: document detached")
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestPixelAppendsParams(t *testing.T) {
	t.Parallel()

	var got string
	pixel := NewPixel(doerFunc(func(req *http.Request) (*http.Response, error) {
		got = req.URL.String()
		return &http.Response{StatusCode: http.StatusNoContent, Body: io.NopCloser(strings.NewReader(""))}, nil
	}))
	rt, rec := newRuntime(t, action.Capabilities{})

	res := pixel.Handle(context.Background(), action.Pixel{
		URL:    "https://px.test/p.gif?v=1",
		Params: map[string]any{"cid": "abc", "n": 3},
	}, rt)
	require.True(t, res.Success)
	require.Equal(t, "https://px.test/p.gif?cid=abc&n=3&v=1", got)
	require.Equal(t, event.PixelFired{URL: got, Status: http.StatusNoContent}, rec.last())
}

func TestPixelAsyncCompletesInBackground(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	pixel := NewPixel(doerFunc(func(*http.Request) (*http.Response, error) {
		<-release
		return nil, errors.New("dns failure")
	}))
	rt, rec := newRuntime(t, action.Capabilities{})

	res := pixel.Handle(context.Background(), action.Pixel{URL: "https://px.test/a.gif", Async: true}, rt)
	require.True(t, res.Success)
	require.Empty(t, rec.types())

	close(release)
	pixel.Wait()
	require.Equal(t, []event.Type{event.TypePixelError}, rec.types())
}
