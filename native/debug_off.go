//go:build !shelldebug

package native

const failFast = false
