// ABOUTME: PlanLibrary interface: a persistent cache from desire fingerprint to plan
// ABOUTME: Callers treat every failure as a cache miss

package planlib

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-bdi/internal/bdi"
)

var (
	// ErrLibraryClosed is returned by operations on a closed library.
	ErrLibraryClosed = errors.New("plan library closed")
	// ErrUnsupportedDriver is returned by Open for an unknown SQL driver.
	ErrUnsupportedDriver = errors.New("unsupported plan library driver")
)

// Library stores plans keyed by the fingerprint of the desire they serve.
// Lookup reports a miss with ok=false and a nil error.
type Library interface {
	Insert(ctx context.Context, plan bdi.Plan) error
	Lookup(ctx context.Context, key bdi.Fingerprint) (plan bdi.Plan, ok bool, err error)
	Close() error
}

// Entry describes one stored plan for listings.
type Entry struct {
	Fingerprint bdi.Fingerprint `json:"fingerprint"`
	DesireName  string          `json:"desire_name"`
	Actions     int             `json:"actions"`
	Hits        int             `json:"hits"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
