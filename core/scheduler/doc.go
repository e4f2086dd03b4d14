// Package scheduler picks the lowest-intensity execution window across the
// forecasts of the eligible regions.
package scheduler
