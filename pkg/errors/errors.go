// Package errors provides error wrapping helpers shared by every localnet package.
package errors

import "fmt"

// Wrap annotates err with a short description of the step that failed.
// A nil err stays nil.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
