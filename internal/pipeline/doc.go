// Package pipeline turns raw archive transfer records into transactions and
// derives the analytical views served to the dashboard: monthly series, the
// trader network, summary statistics and trader rankings.
//
// Every function in the package is a pure computation over its input.
package pipeline
