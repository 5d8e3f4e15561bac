// Package config holds the settings for a conformance run: how to reach the ARC service, which
// domains to check, and how long to wait for an automation session.
//
// Values are layered: NewConfig defaults, then an optional YAML file, then environment variables,
// then command line flags.
package config
