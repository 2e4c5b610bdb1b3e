// Package handlers adapts each upstream API client into a
// registry.Handler, resolving one stop of the discovery DAG:
// discover-artists -> album_page -> track_page -> producer_discovery.
package handlers

import "github.com/oakmoss-dev/enrichqueue/internal/retry"

// statusCoder is implemented by the client packages' own HTTP error
// types so a single helper can turn an upstream response into the
// engine's retryable/terminal classification (spec §7 expansion).
type statusCoder interface {
	StatusCode() int
}

// classify wraps err as Retryable or Terminal based on the upstream
// HTTP status it carries. Anything that isn't a statusCoder (a dial
// timeout, a decode failure, a canceled context) is returned unwrapped.
func classify(err error) error {
	if err == nil {
		return nil
	}
	sc, ok := err.(statusCoder)
	if !ok {
		return err
	}
	if retry.ClassifyHTTPStatus(sc.StatusCode()) == retry.ClassRetryable {
		return retry.Retryable(err)
	}
	return retry.Terminal(err)
}
