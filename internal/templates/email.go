// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ConfirmationEmail renders the HTML body of the double opt-in email.
// The link is written verbatim into the href and the visible text.
func ConfirmationEmail(name, link string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="`)
		w.text(Locale(ctx))
		w.raw(`"><body><p>`)
		w.text(TData(ctx, "email_confirmation_greeting", map[string]any{"Name": name}))
		w.raw(`</p><p>`)
		w.text(T(ctx, "email_confirmation_instructions"))
		w.raw(`</p><p><a href="`)
		w.text(link)
		w.raw(`">`)
		w.text(T(ctx, "email_confirmation_link"))
		w.raw(`</a></p><p>`)
		w.text(link)
		w.raw(`</p></body></html>`)
		return w.err
	})
}
