// Package trigger realizes planned triggers against a one-time trigger
// substrate and cleans them up again.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAlreadyExists = errors.New("trigger already exists")
	ErrNotFound      = errors.New("trigger not found")
	ErrGroupNotFound = errors.New("trigger group not found")
)

// Report statuses shared by dispatch, deletion and planning runs.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// States reported in Summary.State.
const (
	StateEnabled  = "ENABLED"
	StateDisabled = "DISABLED"
)

// Spec is a request to create one named one-time trigger.
type Spec struct {
	Name        string
	Group       string
	FireAt      time.Time
	Target      string
	Payload     []byte
	Description string
}

// Summary describes a trigger registered in a group.
type Summary struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	FireExpression string `json:"fire_expression"`
}

// Substrate is the external one-time trigger service.
//
// CreateGroup and CreateTrigger return ErrAlreadyExists on a name collision,
// ListTriggers returns ErrGroupNotFound for an unknown group, DeleteTrigger
// and DeleteGroup return ErrNotFound when there is nothing to delete.
type Substrate interface {
	CreateGroup(ctx context.Context, name string) error
	CreateTrigger(ctx context.Context, spec Spec) error
	ListTriggers(ctx context.Context, group string) ([]Summary, error)
	DeleteTrigger(ctx context.Context, name, group string) error
	DeleteGroup(ctx context.Context, name string) error
}

// ExpressionFetcher is implemented by substrates whose ListTriggers leaves
// FireExpression empty. Reconciler.List fills it in through the throttled
// pool.
type ExpressionFetcher interface {
	FireExpression(ctx context.Context, name, group string) (string, error)
}

const atLayout = "2006-01-02T15:04:05"

// AtExpression formats a one-time fire expression, at(yyyy-mm-ddThh:mm:ss) in UTC.
func AtExpression(t time.Time) string {
	return "at(" + t.UTC().Format(atLayout) + ")"
}

// ParseAtExpression is the inverse of AtExpression.
func ParseAtExpression(expr string) (time.Time, error) {
	if len(expr) < 5 || expr[:3] != "at(" || expr[len(expr)-1] != ')' {
		return time.Time{}, fmt.Errorf("not an at() expression: %q", expr)
	}
	return time.ParseInLocation(atLayout, expr[3:len(expr)-1], time.UTC)
}
