// Package builtin registers the handlers for every built-in action kind.
package builtin

import (
	"fmt"
	"net/url"

	"github.com/alexisbeaulieu97/actionflow/internal/domain/action"
	"github.com/alexisbeaulieu97/actionflow/internal/engine"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/effects"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/flow"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/mutation"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/navigation"
	"github.com/alexisbeaulieu97/actionflow/internal/handlers/network"
	"github.com/alexisbeaulieu97/actionflow/internal/ports"
)

// Options configures the stateful built-in handlers.
type Options struct {
	// HTTPClient serves network and pixel actions. Nil means http.DefaultClient.
	HTTPClient ports.HTTPDoer
	// BaseURL resolves relative network action URLs.
	BaseURL *url.URL
	// Sleeper replaces the network retry wait, mainly for tests.
	Sleeper network.Sleeper
}

// Handlers keeps the built-in handlers that own background work.
type Handlers struct {
	Network    *network.Handler
	Pixel      *effects.Pixel
	CustomHTML *effects.CustomHTML
}

// Wait blocks until async pixels and scheduled HTML removals have settled.
func (h *Handlers) Wait() {
	h.Pixel.Wait()
	h.CustomHTML.Wait()
}

// Register installs a handler for every kind in action.BuiltinKinds.
func Register(reg *engine.Registry, opts Options) (*Handlers, error) {
	netOpts := []network.Option{network.WithClient(opts.HTTPClient), network.WithBaseURL(opts.BaseURL)}
	if opts.Sleeper != nil {
		netOpts = append(netOpts, network.WithSleeper(opts.Sleeper))
	}
	h := &Handlers{
		Network:    network.New(netOpts...),
		Pixel:      effects.NewPixel(opts.HTTPClient),
		CustomHTML: effects.NewCustomHTML(),
	}

	funcs := map[action.Kind]ports.HandlerFunc{
		action.KindNavigate:    navigation.Navigate,
		action.KindRedirect:    navigation.Redirect,
		action.KindClosePopup:  navigation.ClosePopup,
		action.KindAnalytics:   effects.Analytics,
		action.KindIframe:      effects.Iframe,
		action.KindLog:         effects.Log,
		action.KindSetState:    mutation.SetState,
		action.KindCart:        mutation.Cart,
		action.KindChain:       flow.Chain,
		action.KindParallel:    flow.Parallel,
		action.KindConditional: flow.Conditional,
		action.KindDelay:       flow.Delay,
	}
	for kind, fn := range funcs {
		if err := reg.RegisterFunc(kind, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", kind, err)
		}
	}

	handlers := map[action.Kind]ports.ActionHandler{
		action.KindGet:        h.Network,
		action.KindPost:       h.Network,
		action.KindPut:        h.Network,
		action.KindPatch:      h.Network,
		action.KindDelete:     h.Network,
		action.KindPixel:      h.Pixel,
		action.KindCustomHTML: h.CustomHTML,
	}
	for kind, handler := range handlers {
		if err := reg.Register(kind, handler); err != nil {
			return nil, fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return h, nil
}
