package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/capitalize-ai/tour-assistant/internal/assistant"
	"github.com/capitalize-ai/tour-assistant/internal/model"
)

// renderer prints the assistant reply of one cycle incrementally. Content
// only grows while streaming, so each update prints the new suffix.
type renderer struct {
	out     io.Writer
	skip    string
	msgID   string
	printed int
}

// newRenderer ignores the reply that was already on screen in snap.
func newRenderer(out io.Writer, snap assistant.Snapshot) *renderer {
	r := &renderer{out: out}
	if m, ok := lastAssistant(snap); ok {
		r.skip = m.ID
	}
	return r
}

func (r *renderer) update(snap assistant.Snapshot) {
	m, ok := lastAssistant(snap)
	if !ok || m.ID == r.skip {
		return
	}
	if m.ID != r.msgID {
		r.msgID = m.ID
		r.printed = 0
		fmt.Fprint(r.out, boldCyan("Assistant: "))
	}
	if r.printed > len(m.Content) {
		r.printed = len(m.Content)
	}
	if delta := m.Content[r.printed:]; delta != "" {
		if m.IsError {
			delta = red(delta)
		}
		fmt.Fprint(r.out, delta)
		r.printed = len(m.Content)
	}
}

// finish prints whatever the last update missed and the tour picks.
func (r *renderer) finish(snap assistant.Snapshot) {
	r.update(snap)
	if m, ok := lastAssistant(snap); ok && m.ID == r.msgID {
		fmt.Fprintln(r.out)
		r.printTours(m)
	}
	if snap.Alert != "" {
		fmt.Fprintln(r.out, yellow(snap.Alert))
	}
}

// printMessage prints a complete assistant message.
func (r *renderer) printMessage(m model.Message) {
	content := m.Content
	if m.IsError {
		content = red(content)
	}
	fmt.Fprintf(r.out, "%s%s\n", boldCyan("Assistant: "), content)
	r.printTours(m)
}

func (r *renderer) printTours(m model.Message) {
	switch {
	case len(m.TourPackages) > 0:
		for _, t := range m.TourPackages {
			line := fmt.Sprintf("  • %s - %s VNĐ", t.Name, model.FormatVND(t.Price))
			if t.DurationDays > 0 {
				line += fmt.Sprintf(", %d ngày", t.DurationDays)
			}
			fmt.Fprintln(r.out, yellow(line))
		}
	case len(m.Selections) > 0:
		var names []string
		for _, s := range m.Selections {
			names = append(names, fmt.Sprintf("%s (%s VNĐ)", s.Name, model.FormatVND(s.Price)))
		}
		fmt.Fprintln(r.out, faint("  Quick picks: "+strings.Join(names, ", ")))
	}
}

func lastAssistant(snap assistant.Snapshot) (model.Message, bool) {
	if n := len(snap.Messages); n > 0 && snap.Messages[n-1].Role == model.RoleAssistant {
		return snap.Messages[n-1], true
	}
	return model.Message{}, false
}
