// Package config loads osb's host settings from YAML.
//
// Every field has a built-in default, so a missing settings file is not an
// error. Secrets are never read from the settings file.
package config
