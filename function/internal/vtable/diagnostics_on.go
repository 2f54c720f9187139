//go:build funcbox_diagnostics

package vtable

const diagnostics = true
