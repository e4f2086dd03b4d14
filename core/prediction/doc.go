// Package prediction defines the forecast provider boundary: given a region
// and a horizon it returns hourly carbon intensity estimates. Providers are
// built once at start-up and shared by all in-flight requests, so
// implementations must be safe for concurrent use.
package prediction
