// Package alert implements the debounced threshold alert state machine.
//
// The engine has two states, idle and in-alert. A reading at or above the
// high threshold raises AlertHigh, gated by a cooldown keyed off the last
// notification. A reading at or below High-NormalMargin clears an active
// alert with AlertNormal. Readings inside the band never change the state.
// The current time is always passed in, the engine reads no clock.
package alert
