package storefront

// Version information for the storefront client
const (
	// Version is the current client version
	Version = "development"

	// APIVersion is the backend contract version the client speaks
	APIVersion = "v1"

	// BuildDate is set during build time
	BuildDate = "development"

	// GitCommit is set during build time
	GitCommit = "unknown"
)
