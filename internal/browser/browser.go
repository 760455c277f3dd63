// Package browser owns the headless browser lifecycle and exposes the small
// set of page primitives the extraction engines are written against. The
// interfaces keep extractors portable across automation backends and make
// them trivially fakeable in tests.
package browser

import "context"

// Tab is one open page. Every operation is bounded by the caller's context;
// none blocks indefinitely.
type Tab interface {
	// Navigate loads the URL and waits for the document to commit.
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until the selector exists in the DOM.
	WaitReady(ctx context.Context, selector string) error
	// WaitVisible blocks until the selector is rendered and visible.
	WaitVisible(ctx context.Context, selector string) error
	// HTML returns the full serialized DOM of the current page.
	HTML(ctx context.Context) (string, error)
	// Eval runs a JavaScript expression and unmarshals the result into out.
	Eval(ctx context.Context, expr string, out any) error
	// Location returns the current page URL after any redirects.
	Location(ctx context.Context) (string, error)
}

// Session owns a browser process and hands out tabs. The stage runner
// acquires one tab per work item and releases it on every path.
type Session interface {
	// NewTab opens a tab and returns it with its release func.
	NewTab(ctx context.Context) (Tab, func(), error)
	// Restart tears down the browser process and starts a fresh one. The
	// runner calls it before retrying an item whose tab appeared wedged.
	Restart(ctx context.Context) error
	// Close shuts the browser down.
	Close(ctx context.Context) error
}
