package grid

import "errors"

var (
	ErrNilInfo           = errors.New("grid: nil info")
	ErrNilSettings       = errors.New("grid: nil settings")
	ErrRefreshInProgress = errors.New("grid: refresh re-entered from its own callback")
)
