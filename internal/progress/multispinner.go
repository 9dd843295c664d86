// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress shows one status line per input file while a command runs.
*/
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinChars []string = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// MultiSpinnerUpdateFunc sets the status of the line with the given label
type MultiSpinnerUpdateFunc func(string, string) error

type spinnerState struct {
	label       string
	status      string
	statusIsNew bool
	spinIndex   int
}

// MultiSpinner redraws its lines in place on a terminal. Elsewhere it
// only prints lines whose status changed.
type MultiSpinner struct {
	mu         sync.Mutex
	out        io.Writer
	isTerminal bool
	spinners   []spinnerState
	labelWidth int
	ticker     *time.Ticker
	done       chan bool
	spinning   bool
}

// NewMultiSpinner creates a MultiSpinner drawing to stderr
func NewMultiSpinner() *MultiSpinner {
	return NewMultiSpinnerWriter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewMultiSpinnerWriter creates a MultiSpinner drawing to out. Cursor
// movement is only used when isTerminal is true.
func NewMultiSpinnerWriter(out io.Writer, isTerminal bool) *MultiSpinner {
	return &MultiSpinner{
		out:        out,
		isTerminal: isTerminal,
		labelWidth: 20,
		done:       make(chan bool),
	}
}

// AddSpinner adds a line to the MultiSpinner
func (ms *MultiSpinner) AddSpinner(label string) (err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	// make sure label is unique
	for _, spinner := range ms.spinners {
		if spinner.label == label {
			err = fmt.Errorf("spinner with label %s already exists", label)
			return
		}
	}
	ms.spinners = append(ms.spinners, spinnerState{label, "?", false, 0})
	if len(label) > ms.labelWidth {
		ms.labelWidth = len(label)
	}
	return
}

// Start draws the lines and starts redrawing them periodically
func (ms *MultiSpinner) Start() {
	ms.mu.Lock()
	ms.draw(true)
	ms.mu.Unlock()
	ms.ticker = time.NewTicker(250 * time.Millisecond)
	ms.spinning = true
	go ms.onTick()
}

// Finish stops redrawing and leaves the final state on screen
func (ms *MultiSpinner) Finish() {
	if ms.spinning {
		ms.ticker.Stop()
		ms.done <- true
		ms.mu.Lock()
		ms.draw(false)
		ms.mu.Unlock()
		ms.spinning = false
	}
}

// Status updates the status of a line. It satisfies MultiSpinnerUpdateFunc.
func (ms *MultiSpinner) Status(label string, status string) (err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for spinnerIdx, spinner := range ms.spinners {
		if spinner.label == label {
			if status != spinner.status {
				ms.spinners[spinnerIdx].status = status
				ms.spinners[spinnerIdx].statusIsNew = true
			}
			return
		}
	}
	err = fmt.Errorf("did not find spinner with label %s", label)
	return
}

func (ms *MultiSpinner) onTick() {
	for {
		select {
		case <-ms.done:
			return
		case <-ms.ticker.C:
			ms.mu.Lock()
			ms.draw(true)
			ms.mu.Unlock()
		}
	}
}

// draw must be called with mu held
func (ms *MultiSpinner) draw(goUp bool) {
	for i, spinner := range ms.spinners {
		if !ms.isTerminal && !spinner.statusIsNew {
			continue
		}
		fmt.Fprintf(ms.out, "%-*s  %s  %-40s\n", ms.labelWidth, spinner.label, spinChars[spinner.spinIndex], spinner.status)
		ms.spinners[i].statusIsNew = false
		ms.spinners[i].spinIndex += 1
		if ms.spinners[i].spinIndex >= len(spinChars) {
			ms.spinners[i].spinIndex = 0
		}
	}
	if goUp && ms.isTerminal {
		for range ms.spinners {
			fmt.Fprintf(ms.out, "\x1b[1A")
		}
	}
}
