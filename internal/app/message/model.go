package message

import "messenger/internal/app/thread"

// Fields are the message attributes a draft carries. Required fields are checked after
// the per-send overrides are merged in.
type Fields struct {
	Subject  string   `json:"subject" validate:"required"`
	Body     string   `json:"body" validate:"required"`
	Link     string   `json:"link"`
	Links    []string `json:"links"`
	SenderID uint64   `json:"sender_id" validate:"required"`
	Category string   `json:"category"`
}

// merge lays non-empty overrides over f.
func (f Fields) merge(o Fields) Fields {
	if o.Subject != "" {
		f.Subject = o.Subject
	}
	if o.Body != "" {
		f.Body = o.Body
	}
	if o.Link != "" {
		f.Link = o.Link
	}
	if len(o.Links) > 0 {
		f.Links = o.Links
	}
	if o.SenderID != 0 {
		f.SenderID = o.SenderID
	}
	if o.Category != "" {
		f.Category = o.Category
	}
	return f
}

type Result struct {
	Thread   *thread.Thread  `json:"thread,omitempty"`
	Message  *thread.Message `json:"message,omitempty"`
	Notified int             `json:"notified"`
}

type SendRequest struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Link       string   `json:"link"`
	Links      []string `json:"links"`
	Category   string   `json:"category"`
	Recipients []uint64 `json:"recipients"`
	ToAll      bool     `json:"to_all"`
	Store      *bool    `json:"store"`
	Notify     bool     `json:"notify"`
}

// Sender is the authenticated author of a reply. Only admins may write into broadcast threads.
type Sender struct {
	ID    uint64
	Admin bool
}

type ReplyRequest struct {
	Body   string `json:"body" binding:"required"`
	Notify bool   `json:"notify"`
}

type ReplyResponse struct {
	Message  *thread.Message `json:"message"`
	Notified int             `json:"notified"`
}
