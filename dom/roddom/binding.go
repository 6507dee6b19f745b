package roddom

import (
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/adfriend/dom"
)

// message is one binding call from the helper script.
type message struct {
	Kind    string     `json:"kind"`
	Global  string     `json:"global,omitempty"`
	Items   []any      `json:"items,omitempty"`
	Records []jsRecord `json:"records,omitempty"`
}

type jsRecord struct {
	Type   string `json:"type"`
	Target int    `json:"target"`
	Added  []int  `json:"added,omitempty"`
	Name   string `json:"name,omitempty"`
}

func decodeMessage(payload string) (*message, error) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("roddom: decode binding payload: %w", err)
	}
	switch m.Kind {
	case "push", "mutations":
		return &m, nil
	}
	return nil, fmt.Errorf("roddom: unknown binding message %q", m.Kind)
}

// listen receives binding calls until the document context ends, and
// releases collected nodes when the main frame navigates. Handlers
// never call back into CDP from here: pushes and mutation batches are
// handed off so the event loop keeps draining.
func (d *Document) listen() {
	d.page.EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		m, err := decodeMessage(e.Payload)
		if err != nil {
			d.logger.Warn("roddom: binding", "error", err)
			return
		}
		switch m.Kind {
		case "push":
			go d.win.onPush(m.Global, m.Items)
		case "mutations":
			d.mu.Lock()
			obs := d.observer
			d.mu.Unlock()
			if obs != nil {
				obs.enqueue(m.Records)
			}
		}
	}, func(e *proto.PageFrameNavigated) {
		if e.Frame != nil && e.Frame.ParentID == "" {
			go d.collectAll()
		}
	})()
}

func mutationType(s string) (dom.MutationType, bool) {
	switch s {
	case "childList":
		return dom.ChildList, true
	case "attributes":
		return dom.Attributes, true
	}
	return 0, false
}
