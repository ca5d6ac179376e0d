// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the HTML document shell.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="`)
		w.text(Locale(ctx))
		w.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		w.text(title)
		w.raw(` | `)
		w.text(T(ctx, "app_name"))
		w.raw(`</title></head><body><main>`)
		w.component(ctx, body)
		w.raw(`</main></body></html>`)
		return w.err
	})
}

// Flash renders an alert paragraph, or nothing for an empty message.
func Flash(message string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		if message == "" {
			return nil
		}
		w := &writer{w: out}
		w.raw(`<p role="alert"><i>`)
		w.text(message)
		w.raw(`</i></p>`)
		return w.err
	})
}
