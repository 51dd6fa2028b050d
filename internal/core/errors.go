package core

import (
	"errors"
	"time"

	"sollist/pkg/domain"
)

var (
	// ErrBuildingRequired is returned when an operation names no building.
	ErrBuildingRequired = errors.New("building is required")
	// ErrBagNameRequired is returned when a write-back names no attribute bag.
	ErrBagNameRequired = errors.New("attribute bag name is required")
	// ErrInvalidTolerance aliases domain.ErrInvalidTolerance.
	ErrInvalidTolerance = domain.ErrInvalidTolerance
)

func timeNowUTC() time.Time { return time.Now().UTC() }
