// Package testsupport provides shared helpers for constructing test
// configurations, stores, and fixture files.
package testsupport
