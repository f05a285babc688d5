// SPDX-License-Identifier: MIT

package daemon

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
)

// Deps are the handlers and addresses the Manager serves. The relay API is
// mandatory; the metrics and dashboard listeners are each enabled by
// setting both their handler and their address.
type Deps struct {
	Logger     zerolog.Logger
	APIHandler http.Handler

	MetricsHandler http.Handler
	MetricsAddr    string

	DashboardHandler http.Handler
	DashboardAddr    string
}

// Validate reports every problem at once. A Nop logger counts as missing.
func (d Deps) Validate() error {
	var errs []error
	if d.Logger.GetLevel() == zerolog.Disabled {
		errs = append(errs, ErrMissingLogger)
	}
	if d.APIHandler == nil {
		errs = append(errs, ErrMissingAPIHandler)
	}
	if (d.MetricsHandler == nil) != (d.MetricsAddr == "") {
		errs = append(errs, fmt.Errorf("metrics: %w", ErrHalfConfigured))
	}
	if (d.DashboardHandler == nil) != (d.DashboardAddr == "") {
		errs = append(errs, fmt.Errorf("dashboard: %w", ErrHalfConfigured))
	}
	return errors.Join(errs...)
}
