package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// registerTimeout bounds one handshake exchange with the host.
	registerTimeout = 5 * time.Second

	// registerBackoff is the delay between handshake attempts. Fixed,
	// not exponential: the host is a single local peer, so the usual
	// reason to back off progressively does not apply.
	registerBackoff = 500 * time.Millisecond

	// maxRegisterAttempts is the cumulative handshake budget for one
	// session. It is never reset, so a session that exhausts it stays
	// unregistered until the owning application rebuilds the client.
	maxRegisterAttempts = 4
)

// Register establishes the session with the host. It is idempotent:
// an already-registered session returns immediately with no transport
// traffic, and concurrent callers during an in-flight handshake share
// that single attempt's outcome instead of starting their own.
//
// On success the client subscribes to host events, fires OnReady, and
// emits "ready". After maxRegisterAttempts cumulative failures it
// fails terminally with ErrRegistrationFailed, fires OnError, and
// emits "error" exactly once.
func (c *Client) Register(ctx context.Context, info RegistrationInfo) error {
	if !c.embedded() {
		return ErrNotEmbedded
	}
	if c.State() == StateRegistered {
		return nil
	}

	// Single-flight: the first caller runs the handshake, concurrent
	// callers block on the same in-flight operation and observe its
	// result.
	_, err, _ := c.reg.Do("register", func() (any, error) {
		return nil, c.handshake(ctx, info)
	})
	return err
}

// handshake runs sequential registration attempts until success,
// budget exhaustion, or context cancellation.
func (c *Client) handshake(ctx context.Context, info RegistrationInfo) error {
	// Re-check under the single-flight: a caller that queued behind a
	// successful flight has nothing left to do.
	if c.State() == StateRegistered {
		return nil
	}
	c.setState(StateRegistering)

	for {
		c.mu.Lock()
		if c.attempts >= maxRegisterAttempts {
			c.mu.Unlock()
			// Budget already spent by earlier calls. Fail without
			// another transport attempt and without re-firing the
			// terminal error signals.
			c.setState(StateUnregistered)
			return fmt.Errorf("%w: attempt budget exhausted", ErrRegistrationFailed)
		}
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		err := c.attemptOnce(ctx, info)
		if err == nil {
			return c.completeRegistration()
		}

		c.logger.Warn("handshake attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max", maxRegisterAttempts),
			slog.String("error", err.Error()),
		)

		if attempt >= maxRegisterAttempts {
			return c.failTerminal(fmt.Errorf("%w: %d attempts", ErrRegistrationFailed, attempt))
		}

		timer := time.NewTimer(registerBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.setState(StateUnregistered)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// attemptOnce sends one register message and awaits the host's reply.
func (c *Client) attemptOnce(ctx context.Context, info RegistrationInfo) error {
	req := registerRequest{
		Title: firstNonEmpty(info.Title, c.title, defaultTitle),
		URL:   firstNonEmpty(info.URL, c.launchURL),
		Color: firstNonEmpty(info.Color, c.color, defaultColor),
	}

	_, err := c.transport.Send(ctx, msgRegister, req, SendOptions{Timeout: registerTimeout})
	return err
}

// completeRegistration transitions to Registered, wires the event
// relay, and fires the ready signals.
func (c *Client) completeRegistration() error {
	c.setState(StateRegistered)

	if err := c.subscribeRelay(); err != nil {
		// The session is usable for outbound calls even if event
		// subscription failed; surface via log only.
		c.logger.Warn("subscribing to host events failed",
			slog.String("error", err.Error()),
		)
	}

	c.logger.Info("registered with host")

	if c.onReady != nil {
		c.onReady()
	}
	c.emit(EventReady, nil)
	return nil
}

// failTerminal reports budget exhaustion: error callback, error event,
// and the terminal error to every waiter on the flight.
func (c *Client) failTerminal(err error) error {
	c.setState(StateUnregistered)

	c.logger.Error("registration failed terminally",
		slog.String("error", err.Error()),
	)

	if c.onError != nil {
		c.onError(err)
	}
	c.emit(EventError, err)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
