package geolocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/zatekoja/providerdirectory/internal/domain/entities"
	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	"github.com/zatekoja/providerdirectory/pkg/geo"
)

// BrowserReportSource turns the result of the browser's
// navigator.geolocation.getCurrentPosition call, posted by the client, into a
// position or a classified error.
type BrowserReportSource struct{}

var _ providers.PositionSource = (*BrowserReportSource)(nil)

// NewBrowserReportSource creates a browser report source
func NewBrowserReportSource() *BrowserReportSource {
	return &BrowserReportSource{}
}

func (s *BrowserReportSource) Name() string { return "browser" }

// CurrentPosition reads the report carried by req
func (s *BrowserReportSource) CurrentPosition(ctx context.Context, req entities.PositionRequest) (geo.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, contextError(err)
	}

	report := req.Report
	if report == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: no position report from client", providers.ErrPositionUnavailable)
	}
	if report.Supported != nil && !*report.Supported {
		return geo.Coordinate{}, providers.ErrPositionUnsupported
	}

	switch report.ErrorCode {
	case 0:
	case entities.PositionErrorPermissionDenied:
		return geo.Coordinate{}, providers.ErrPermissionDenied
	case entities.PositionErrorPositionUnavailable:
		return geo.Coordinate{}, providers.ErrPositionUnavailable
	case entities.PositionErrorTimeout:
		return geo.Coordinate{}, providers.ErrPositionTimeout
	default:
		return geo.Coordinate{}, fmt.Errorf("%w: unknown error code %d", providers.ErrPositionUnavailable, report.ErrorCode)
	}

	if report.Coords == nil || !report.Coords.Valid() {
		return geo.Coordinate{}, fmt.Errorf("%w: report has no valid coordinates", providers.ErrPositionUnavailable)
	}
	return *report.Coords, nil
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.ErrPositionTimeout
	}
	return fmt.Errorf("%w: %v", providers.ErrPositionUnavailable, err)
}
