// Package utils provides common utility functions for the sqlmerge application.
// It includes helper functions for type conversion that do not fit into
// domain-specific packages, such as interpreting query string flags.
package utils
