// Package shared holds helpers used across the collector packages that do
// not belong to any one of them.
//
// # Test Utilities
//
// The testutil subpackage provides:
//
//	- A buffered slog handler to assert on log records
//	- File fixtures for output and indicator directories
//	- Date helpers for window boundaries
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, handler := testutil.NewTestLogger(t)
//	    testutil.TouchFiles(t, dir, "Acoes_IBOV_01_2024.csv")
//	    ...
//	    testutil.AssertLogContains(t, handler, slog.LevelInfo, "Window written")
//	}
//
// It must not contain business logic.
package shared
