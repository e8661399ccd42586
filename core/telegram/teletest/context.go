// Package teletest provides a recording tele.Context for handler tests.
package teletest

import (
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sent is one outgoing call captured by Context.
type Sent struct {
	// Method is "send", "edit" or "respond".
	Method string
	What   any
	Opts   []any
}

// Markup returns the reply markup passed with the call, if any.
func (s Sent) Markup() *tele.ReplyMarkup {
	for _, o := range s.Opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			return v
		case *tele.SendOptions:
			if v != nil {
				return v.ReplyMarkup
			}
		}
	}
	return nil
}

// Text returns the message text of the call.
func (s Sent) Text() string {
	switch v := s.What.(type) {
	case string:
		return v
	case *tele.CallbackResponse:
		if v != nil {
			return v.Text
		}
	}
	return ""
}

// Context is a tele.Context backed by a fixed update. Methods not overridden
// here panic through the nil embedded interface.
type Context struct {
	tele.Context

	Upd tele.Update

	mu    sync.Mutex
	store map[string]any
	sent  []Sent
	// EditErr, when set, is returned by Edit so EditOrSend falls back to Send.
	EditErr error
}

// NewMessage builds a context for a text message from user in a private chat.
func NewMessage(updateID int, userID int64, text string) *Context {
	user := &tele.User{ID: userID, Username: "user"}
	return &Context{Upd: tele.Update{
		ID: updateID,
		Message: &tele.Message{
			ID:     updateID,
			Sender: user,
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		},
	}}
}

// NewCallback builds a context for an inline button press carrying the raw
// telebot encoding "\f<key>|<payload>".
func NewCallback(updateID int, userID int64, key, payload string) *Context {
	user := &tele.User{ID: userID, Username: "user"}
	data := "\f" + key
	if payload != "" {
		data += "|" + payload
	}
	msg := &tele.Message{
		ID:     updateID,
		Sender: &tele.User{ID: 1, IsBot: true},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}
	return &Context{Upd: tele.Update{
		ID:       updateID,
		Callback: &tele.Callback{ID: "cb", Sender: user, Message: msg, Data: data},
	}}
}

func (c *Context) Update() tele.Update { return c.Upd }

func (c *Context) Message() *tele.Message {
	if c.Upd.Message != nil {
		return c.Upd.Message
	}
	if c.Upd.Callback != nil {
		return c.Upd.Callback.Message
	}
	return nil
}

func (c *Context) Callback() *tele.Callback { return c.Upd.Callback }

func (c *Context) Sender() *tele.User {
	switch {
	case c.Upd.Callback != nil:
		return c.Upd.Callback.Sender
	case c.Upd.Message != nil:
		return c.Upd.Message.Sender
	}
	return nil
}

func (c *Context) Chat() *tele.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *Context) Text() string {
	if c.Upd.Message != nil {
		return c.Upd.Message.Text
	}
	return ""
}

func (c *Context) Args() []string {
	text := c.Text()
	if !strings.HasPrefix(text, "/") {
		return nil
	}
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

func (c *Context) Get(key string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, val any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = val
}

func (c *Context) record(method string, what any, opts []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Sent{Method: method, What: what, Opts: opts})
}

func (c *Context) Send(what any, opts ...any) error {
	c.record("send", what, opts)
	return nil
}

func (c *Context) Reply(what any, opts ...any) error {
	c.record("send", what, opts)
	return nil
}

func (c *Context) Edit(what any, opts ...any) error {
	if c.EditErr != nil {
		return c.EditErr
	}
	c.record("edit", what, opts)
	return nil
}

func (c *Context) EditOrSend(what any, opts ...any) error {
	if c.Upd.Callback != nil {
		if err := c.Edit(what, opts...); err == nil {
			return nil
		}
	}
	return c.Send(what, opts...)
}

func (c *Context) Respond(resp ...*tele.CallbackResponse) error {
	var r *tele.CallbackResponse
	if len(resp) > 0 {
		r = resp[0]
	}
	c.record("respond", r, nil)
	return nil
}

func (c *Context) RespondText(text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text})
}

func (c *Context) RespondAlert(text string) error {
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

// Sent returns a copy of every recorded call.
func (c *Context) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Last returns the most recent non-respond call.
func (c *Context) Last() (Sent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Method != "respond" {
			return c.sent[i], true
		}
	}
	return Sent{}, false
}
