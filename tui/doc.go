// Package tui is the interactive terminal front-end for docnotary.
//
// The screen mirrors a single-page notary form: the connected account, a
// file path to hash, notarize and verify actions, a status line, and a
// "check document details" lookup with its details panel. Every status
// message also opens a modal alert that must be dismissed with enter or esc
// before further input is accepted.
//
// Actions run as bubbletea commands so several may be in flight at once.
// Messages reach the model through a [Notifier] channel that the
// controller writes to.
package tui
