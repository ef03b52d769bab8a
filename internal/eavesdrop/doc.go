// Package eavesdrop mirrors device state from the original remotes.
//
// The Recognizer polls the shared radio in receive mode. Every received
// buffer is split into candidate windows, each window is decoded by a
// vendor Protocol, and valid frames are counted. The first poll that
// yields no valid frame ends the button press: the most frequently seen
// frame wins and is applied to the device model with Observe, which
// persists and publishes without ever transmitting.
//
// A light toggle flips between the two available states using the last
// persisted state; when that state is unknown nothing is written. A press
// that repeats more than HoldThreshold times is a press-and-hold (dimming)
// gesture and forces the light ON.
package eavesdrop
