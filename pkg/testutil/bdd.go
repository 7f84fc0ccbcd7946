package testutil

import "testing"

// Given, When, and Then keep scenario tests readable, e.g.
//
//	Given(t, "a child already checked in", func(t *testing.T) {
//		When(t, "the same child is submitted again", func(t *testing.T) {
//			Then(t, "the second item fails as a duplicate", ...)
//		})
//	})
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
