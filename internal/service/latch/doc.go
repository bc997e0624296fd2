// Package latch fires the door latch relay by running an external command.
package latch
