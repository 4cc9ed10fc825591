// Package config loads ncmat runtime configuration from YAML.
//
// Values may reference environment variables as ${VAR}; a reference to an
// unset variable is an error. Fields absent from the file keep the values of
// Default.
package config
