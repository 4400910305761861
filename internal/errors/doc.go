// Package errors defines the application error taxonomy used by the collectors.
//
// Every failure that crosses a package boundary is an *AppError carrying an
// ErrorType. The type decides how a collection run reacts:
//
//   - NOT_FOUND, CONFIG, STORAGE, VALIDATION, PERMISSION: structural, the run aborts.
//   - NETWORK, PARSING, BROWSER, EMPTY: scoped to one ticker or one window, the
//     item is skipped and the run continues.
//
// Use IsStructural to classify an error after wrapping with fmt.Errorf("%w").
package errors
