package service

import "errors"

// Failure taxonomy for a publish attempt. Resolution and protocol
// errors each consume one unit of the post's retry budget; transient
// errors inside the polling loop are retried in place and never surface
// as one of these.
var (
	// Resolution errors.
	ErrNoAccountConnected     = errors.New("no active social account connected for scope")
	ErrAccountNotFound        = errors.New("target social account not found or inactive")
	ErrUnsupportedAssetFormat = errors.New("unsupported asset format")

	// Protocol errors.
	ErrContainerCreationFailed = errors.New("platform returned no container id")
	ErrContainerRejected       = errors.New("platform rejected the media container")
	ErrPublishTimeout          = errors.New("container did not become ready in time")
	ErrPublishRejected         = errors.New("platform returned no media id on publish")

	// Platform transport classification.
	ErrRateLimited = errors.New("platform rate limit exceeded")
	ErrAuthFailed  = errors.New("platform rejected the access token")
)
