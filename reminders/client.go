package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Caller sends a payload to a named service. *connectivity.Router
// satisfies it.
type Caller interface {
	Call(ctx context.Context, service string, payload []byte) ([]byte, error)
}

// Client speaks the message API to a reminder service through a Caller,
// local or remote.
type Client struct {
	caller  Caller
	service string
}

// NewClient returns a Client for ServiceName.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller, service: ServiceName}
}

// TodayReminders fetches the reminders due today. A success:false answer
// is returned as an error carrying the service's message.
func (c *Client) TodayReminders(ctx context.Context) ([]Reminder, error) {
	var out []Reminder
	if err := c.call(ctx, Message{Action: ActionGetToday}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AllReminders fetches every stored reminder.
func (c *Client) AllReminders(ctx context.Context) ([]Reminder, error) {
	var out []Reminder
	if err := c.call(ctx, Message{Action: ActionGetAll}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save creates or updates a reminder.
func (c *Client) Save(ctx context.Context, in Input) (*Reminder, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out Reminder
	if err := c.call(ctx, Message{Action: ActionSave, Payload: payload}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, msg Message, data any) error {
	req, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("reminders: client: encode: %w", err)
	}
	raw, err := c.caller.Call(ctx, c.service, req)
	if err != nil {
		return fmt.Errorf("reminders: client: %s: %w", msg.Action, err)
	}
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("reminders: client: decode: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "request failed"
		}
		return errors.New("reminders: client: " + msg)
	}
	if data == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, data); err != nil {
		return fmt.Errorf("reminders: client: decode data: %w", err)
	}
	return nil
}
