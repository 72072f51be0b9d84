package notification

import (
	"encoding/json"
	"time"
)

// Message is the payload clients receive. Key names follow the socket clients already
// in the field.
type Message struct {
	ThreadID  uint64    `json:"threadId,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	Links     []string  `json:"links,omitempty"`
	SenderID  uint64    `json:"senderId"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Store     bool      `json:"store"`
}

// Event is a transient notification: either for everyone or for the holder of Token.
type Event struct {
	Token   *string
	Message Message
	ToAll   bool
}

func Broadcast(message Message) Event {
	return Event{Message: message, ToAll: true}
}

func Directed(token string, message Message) Event {
	return Event{Token: &token, Message: message}
}

// Envelope is the wire format on the pub/sub channel.
type Envelope struct {
	Data Payload `json:"data"`
}

type Payload struct {
	Token   *string         `json:"token"`
	Message json.RawMessage `json:"message"`
	ToAll   bool            `json:"toAll"`
}

// Room is the gateway room a directed envelope is delivered to.
func (p Payload) Room() string {
	if p.Token == nil {
		return ""
	}
	return RoomFor(*p.Token)
}

func RoomFor(token string) string {
	return "room:" + token
}

func Encode(event Event) ([]byte, error) {
	message, err := json.Marshal(event.Message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Data: Payload{
		Token:   event.Token,
		Message: message,
		ToAll:   event.ToAll,
	}})
}

func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}
