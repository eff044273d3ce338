// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one roll:
//  1. [SetupView] : Pick dice mode, playlist size (steps of 10), and an optional genre filter
//  2. [RollingView] : Seeds are sampled and recommendations fetched in the background
//  3. [PreviewView] : Review the tracks and remove any you don't want
//  4. [TitleView] : Name the playlist (empty uses the dated default)
//  5. [CreatingView] : The playlist is created on YouTube
//  6. [ResultView] : Playlist link, plus the outcome of the history write once it lands
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Each background roll or creation is an operation with its own progress channel. Changing settings while a roll
// is in flight invalidates it, and its result is dropped when it arrives.
//
// Keyboard navigation uses vim-style bindings (j/k, h/l, enter, esc, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
