// Package queue serializes operations per destination.
//
// Operations submitted under the same Key run one at a time in submission
// order. Operations under different keys, and every operation under NoKey,
// run concurrently. A failed operation releases its key like a successful
// one.
package queue
