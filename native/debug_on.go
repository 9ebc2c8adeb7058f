//go:build shelldebug

package native

const failFast = true
