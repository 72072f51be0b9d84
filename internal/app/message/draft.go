package message

import "context"

// Draft accumulates a message before it is sent. Setters return the same draft so calls
// can be chained. A draft stores by default and does not notify.
type Draft struct {
	svc        *service
	fields     Fields
	recipients []uint64
	toAll      bool
	store      bool
	notify     bool
}

func (d *Draft) WithSubject(subject string) *Draft {
	d.fields.Subject = subject
	return d
}

func (d *Draft) WithBody(body string) *Draft {
	d.fields.Body = body
	return d
}

func (d *Draft) WithLink(link string) *Draft {
	d.fields.Link = link
	return d
}

func (d *Draft) WithLinks(links ...string) *Draft {
	d.fields.Links = links
	return d
}

func (d *Draft) WithSender(userID uint64) *Draft {
	d.fields.SenderID = userID
	return d
}

func (d *Draft) WithCategory(category string) *Draft {
	d.fields.Category = category
	return d
}

// To addresses the draft to specific users and clears ToAll.
func (d *Draft) To(userIDs ...uint64) *Draft {
	d.recipients = append([]uint64(nil), userIDs...)
	d.toAll = false
	return d
}

func (d *Draft) ToAll() *Draft {
	d.recipients = nil
	d.toAll = true
	return d
}

func (d *Draft) Store() *Draft {
	d.store = true
	return d
}

func (d *Draft) Unstore() *Draft {
	d.store = false
	return d
}

func (d *Draft) Notify(notify bool) *Draft {
	d.notify = notify
	return d
}

// Send validates the draft with overrides merged in, persists it when storing and then
// publishes notifications when notifying.
func (d *Draft) Send(ctx context.Context, overrides Fields) (*Result, error) {
	return d.svc.send(ctx, d, overrides)
}
