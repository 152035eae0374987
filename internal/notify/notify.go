// Package notify delivers outbound WhatsApp messages.
package notify

import "context"

// Sender delivers one text message to a phone number. Callers treat delivery
// as fire-and-forget: a returned error is logged, never retried.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}
