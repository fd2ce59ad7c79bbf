package config

const (
	// DefaultPageSize is the number of messages returned when max_count is not given.
	DefaultPageSize = 10

	// MaxPageSize is the hard upper bound for max_count on listing and pagination.
	MaxPageSize = 1000

	// DefaultPathSafetyMargin is added to a tree's maximum stored depth to bound
	// ancestor walks. A walk that needs more hops than that indicates corrupt linkage.
	DefaultPathSafetyMargin = 8

	// MaxUsernameLength bounds the username filter.
	MaxUsernameLength = 128
)
