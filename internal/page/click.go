package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Click tries each method in order and reports the one that worked. A lost
// session stops the chain at once; any other failure falls through to the next
// method.
func Click(ctx context.Context, d Driver, el Element, methods ...ClickMethod) (ClickMethod, error) {
	if len(methods) == 0 {
		methods = DefaultClickMethods
	}

	var errs []error
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return m, err
		}
		err := d.Click(ctx, el, m)
		if err == nil {
			return m, nil
		}
		if errors.Is(err, ErrSessionLost) {
			return m, err
		}
		slog.DebugContext(ctx, "click method failed", "method", m, "err", err)
		errs = append(errs, fmt.Errorf("%s click: %w", m, err))
	}
	return methods[len(methods)-1], errors.Join(errs...)
}
