package domain

import "errors"

var (
	// ErrUnknownMode is returned for a mode filter outside mv/ped/bike/*
	ErrUnknownMode = errors.New("unknown mode type")

	// ErrUnknownLayer is returned for a layer name outside the four map layers
	ErrUnknownLayer = errors.New("unknown layer")

	// ErrNotLoaded is returned when data needed for an operation has not been published yet
	ErrNotLoaded = errors.New("not loaded")

	// ErrUnexpectedStatus is returned when a resource answers with a non-200 status
	ErrUnexpectedStatus = errors.New("unexpected status")
)
