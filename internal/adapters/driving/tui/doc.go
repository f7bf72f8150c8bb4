// Package tui implements the full-screen chat interface.
//
// The interface is a bubbletea program with a scrolling transcript
// viewport above a single-line question input. Questions are answered
// asynchronously so the UI stays responsive while the pipeline embeds,
// retrieves and generates.
package tui
