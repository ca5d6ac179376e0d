// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates

import (
	"context"
	"io"

	"codeberg.org/oliverandrich/newsletter/internal/models"
	"github.com/a-h/templ"
)

// HomePage renders the subscription form.
func HomePage() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
			w := &writer{w: out}
			w.raw(`<h1>`)
			w.text(T(ctx, "home_title"))
			w.raw(`</h1><p>`)
			w.text(T(ctx, "home_intro"))
			w.raw(`</p><form action="/subscriptions" method="post"><label>`)
			w.text(T(ctx, "subscribe_name"))
			w.raw(`<input type="text" name="name" required></label><label>`)
			w.text(T(ctx, "subscribe_email"))
			w.raw(`<input type="email" name="email" required></label><button type="submit">`)
			w.text(T(ctx, "subscribe_submit"))
			w.raw(`</button></form>`)
			return w.err
		})
		return Layout(T(ctx, "home_title"), body).Render(ctx, out)
	})
}

// LoginPage renders the operator login form with an optional flash message.
func LoginPage(flash string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
			w := &writer{w: out}
			w.raw(`<h1>`)
			w.text(T(ctx, "login_title"))
			w.raw(`</h1>`)
			w.component(ctx, Flash(flash))
			w.raw(`<form action="/login" method="post">`)
			w.csrfField(ctx)
			w.raw(`<label>`)
			w.text(T(ctx, "login_username"))
			w.raw(`<input type="text" name="username" autocomplete="username"></label><label>`)
			w.text(T(ctx, "login_password"))
			w.raw(`<input type="password" name="password" autocomplete="current-password"></label><button type="submit">`)
			w.text(T(ctx, "login_submit"))
			w.raw(`</button></form>`)
			return w.err
		})
		return Layout(T(ctx, "login_title"), body).Render(ctx, out)
	})
}

// DashboardData is what the admin dashboard shows.
type DashboardData struct {
	Counts map[models.SubscriptionStatus]int64
	Recent []models.Subscriber
	User   *models.User
}

// DashboardPage renders the operator's landing page.
func DashboardPage(data DashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
			w := &writer{w: out}
			w.raw(`<h1>`)
			w.text(T(ctx, "dashboard_title"))
			w.raw(`</h1><p>`)
			username := ""
			if data.User != nil {
				username = data.User.Username
			}
			w.text(TData(ctx, "dashboard_welcome", map[string]any{"Username": username}))
			w.raw(`</p><dl><dt>`)
			w.text(T(ctx, "dashboard_pending"))
			w.rawf(`</dt><dd id="count-pending">%d</dd><dt>`, data.Counts[models.StatusPendingConfirmation])
			w.text(T(ctx, "dashboard_confirmed"))
			w.rawf(`</dt><dd id="count-confirmed">%d</dd></dl>`, data.Counts[models.StatusConfirmed])

			if len(data.Recent) > 0 {
				w.raw(`<h2>`)
				w.text(T(ctx, "dashboard_recent"))
				w.raw(`</h2><table><tbody>`)
				for _, sub := range data.Recent {
					w.raw(`<tr><td>`)
					w.text(sub.Name)
					w.raw(`</td><td>`)
					w.text(sub.Email)
					w.raw(`</td><td>`)
					w.text(string(sub.Status))
					w.raw(`</td><td>`)
					w.text(sub.SubscribedAt.Format("2006-01-02 15:04"))
					w.raw(`</td></tr>`)
				}
				w.raw(`</tbody></table>`)
			}

			w.raw(`<form action="/admin/logout" method="post">`)
			w.csrfField(ctx)
			w.raw(`<button type="submit">`)
			w.text(T(ctx, "logout"))
			w.raw(`</button></form>`)
			return w.err
		})
		return Layout(T(ctx, "dashboard_title"), body).Render(ctx, out)
	})
}

// MessagePage renders a title and a single paragraph. It serves the
// confirmation results and error pages.
func MessagePage(titleID, bodyID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
			w := &writer{w: out}
			w.raw(`<h1>`)
			w.text(T(ctx, titleID))
			w.raw(`</h1><p>`)
			w.text(T(ctx, bodyID))
			w.raw(`</p>`)
			return w.err
		})
		return Layout(T(ctx, titleID), body).Render(ctx, out)
	})
}
