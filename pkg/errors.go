package lsrna

import (
	"errors"
)

var ErrParse = errors.New("matrix parsing error")
var ErrDuplicateID = errors.New("duplicate identifier")
var ErrShape = errors.New("shape mismatch")

// ErrInsufficientData is returned when a stage has too little input to
// produce a meaningful result, e.g. every gene was filtered out.
var ErrInsufficientData = errors.New("insufficient data for test")

var ErrUnmatchedSample = errors.New("sample not present in sample sheet")
