// Package utils holds small helpers shared by the API and the runtime:
// module input validation and source checksums.
package utils
