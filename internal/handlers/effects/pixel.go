package effects

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/domain/event"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// PixelTimeout bounds a single pixel request.
const PixelTimeout = 10 * time.Second

// Pixel fires tracking pixels with a GET request. Async pixels return
// immediately and complete in the background.
type Pixel struct {
	client  ports.HTTPDoer
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewPixel creates a pixel handler. A nil client means http.DefaultClient.
func NewPixel(client ports.HTTPDoer) *Pixel {
	if client == nil {
		client = http.DefaultClient
	}
	return &Pixel{client: client, timeout: PixelTimeout}
}

// Handle implements ports.ActionHandler.
func (p *Pixel) Handle(ctx context.Context, act action.Action, rt ports.Runtime) action.Result {
	px := act.(action.Pixel)
	target, err := pixelURL(px)
	if err != nil {
		return swallow(ctx, rt, px.Type(), err, event.PixelFailed{URL: px.URL, Err: err})
	}

	if !px.Async {
		p.fire(ctx, target, px, rt)
		return action.Succeed(nil)
	}

	bg := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.fire(bg, target, px, rt)
	}()
	return action.Succeed(nil)
}

// Wait blocks until every background pixel has settled.
func (p *Pixel) Wait() {
	p.wg.Wait()
}

func (p *Pixel) fire(ctx context.Context, target string, px action.Pixel, rt ports.Runtime) {
	status, err := p.get(ctx, target)
	if err != nil {
		swallow(ctx, rt, px.Type(), err, event.PixelFailed{URL: target, Err: err})
		return
	}
	rt.Emit(ctx, event.PixelFired{URL: target, Status: status})
}

func (p *Pixel) get(ctx context.Context, target string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("pixel returned HTTP %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func pixelURL(px action.Pixel) (string, error) {
	u, err := url.Parse(px.URL)
	if err != nil {
		return "", fmt.Errorf("parse pixel url: %w", err)
	}
	if len(px.Params) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	keys := make([]string, 0, len(px.Params))
	for k := range px.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(k, action.Stringify(px.Params[k]))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
