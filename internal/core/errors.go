package core

import "errors"

var (
	// Capture setup errors
	ErrDeviceList          = errors.New("dissect: could not access network interface list")
	ErrInterfaceNotFound   = errors.New("dissect: interface not found in network interface list")
	ErrNoDefaultDevice     = errors.New("dissect: no default capture device")
	ErrDeviceOpen          = errors.New("dissect: failed to open capture device")
	ErrUnsupportedLinkType = errors.New("dissect: unsupported link type")

	// Filter errors
	ErrFilterInvalid = errors.New("dissect: invalid capture filter")
	ErrFilterInstall = errors.New("dissect: failed to install capture filter")

	// Codec errors
	ErrUnknownProtocol = errors.New("dissect: unknown protocol")
	ErrPayloadEmpty    = errors.New("dissect: empty payload")

	// Configuration errors
	ErrConfigInvalid = errors.New("dissect: invalid configuration")
)
