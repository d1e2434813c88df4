package calendar

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"google.golang.org/api/googleapi"
)

// Kind classifies a calendar failure so callers can branch without
// inspecting transport details: auth prompts re-login, permission
// prompts re-consent, network offers a retry.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindPermission Kind = "permission"
	KindNetwork    Kind = "network"
	KindValidation Kind = "validation"
	KindGeneric    Kind = "generic"
)

// Failure is the typed error surfaced by every aggregator operation.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("calendar %s failure: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Classify maps an error from the calendar API into a Failure.
// HTTP 401 means the credential is missing or expired, 403 means the
// credential lacks the required scope; the two must stay distinct.
func Classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401:
			return &Failure{Kind: KindAuth, Err: err}
		case 403:
			return &Failure{Kind: KindPermission, Err: err}
		}
		return &Failure{Kind: KindGeneric, Err: err}
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &Failure{Kind: KindNetwork, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return &Failure{Kind: KindNetwork, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: KindNetwork, Err: err}
	}

	return &Failure{Kind: KindGeneric, Err: err}
}
