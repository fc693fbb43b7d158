package mailshake

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Lead statuses accepted by leads/list. "closed" is what the dashboard calls won.
const (
	LeadStatusClosed = "closed"
	LeadStatusLost   = "lost"
	LeadStatusOpen   = "open"
)

// Page is one page of any paginated Mailshake list endpoint.
type Page struct {
	Results   json.RawMessage `json:"results"`
	NextToken string          `json:"nextToken"`
}

// items returns the page's results, treating a missing or non-array value as empty.
func (p Page) items() []json.RawMessage {
	raw := bytes.TrimSpace(p.Results)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// FlexID decodes an identifier that Mailshake sends as a number or a string.
// null, 0 and "" all decode to the empty ID.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || string(b) == "null":
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			// Objects, booleans and the like carry no usable ID.
			*f = ""
			return nil
		}
		if s := n.String(); s != "0" {
			*f = FlexID(s)
		} else {
			*f = ""
		}
	}
	return nil
}

// Int64 returns the ID as a positive integer, or 0.
func (f FlexID) Int64() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// Party is the recipient or lead embedded in an activity record.
type Party struct {
	ID           FlexID `json:"id"`
	EmailAddress string `json:"emailAddress"`
}

// Activity is the subset of an activity/* record used for counting.
type Activity struct {
	ID           FlexID `json:"id"`
	EmailAddress string `json:"emailAddress"`
	RecipientID  FlexID `json:"recipientID"`
	LeadID       FlexID `json:"leadID"`
	Recipient    *Party `json:"recipient"`
	Lead         *Party `json:"lead"`
}

// DedupKey identifies the person behind an activity: the lowercased email
// (recipient, then lead, then top level) or "id:" plus the first non-empty ID.
// ok is false when the record carries neither.
func (a Activity) DedupKey() (key string, ok bool) {
	var email string
	switch {
	case a.Recipient != nil && a.Recipient.EmailAddress != "":
		email = a.Recipient.EmailAddress
	case a.Lead != nil && a.Lead.EmailAddress != "":
		email = a.Lead.EmailAddress
	default:
		email = a.EmailAddress
	}
	if email != "" {
		return strings.ToLower(email), true
	}

	var ids []FlexID
	if a.Recipient != nil {
		ids = append(ids, a.Recipient.ID)
	}
	if a.Lead != nil {
		ids = append(ids, a.Lead.ID)
	}
	ids = append(ids, a.RecipientID, a.LeadID, a.ID)
	for _, id := range ids {
		if id != "" {
			return "id:" + string(id), true
		}
	}
	return "", false
}

// CountUniqueOpens returns the number of distinct people in a list of open events.
// Records that fail to decode or carry no identity are ignored.
func CountUniqueOpens(events []json.RawMessage) int {
	seen := make(map[string]struct{}, len(events))
	for _, raw := range events {
		var a Activity
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		if key, ok := a.DedupKey(); ok {
			seen[key] = struct{}{}
		}
	}
	return len(seen)
}

// CampaignInfo is the campaigns/get payload.
type CampaignInfo struct {
	ID     FlexID `json:"id"`
	Title  string `json:"title"`
	Sender *struct {
		EmailAddress string `json:"emailAddress"`
	} `json:"sender"`
}

// SenderEmail returns the sender's address or "".
func (c CampaignInfo) SenderEmail() string {
	if c.Sender == nil {
		return ""
	}
	return c.Sender.EmailAddress
}

// CampaignSummary is one entry of campaigns/list.
type CampaignSummary struct {
	ID    FlexID `json:"id"`
	Title string `json:"title"`
}

// WonLead is a closed lead tagged with the campaign it came from. Fields keeps
// the full upstream record for CSV export.
type WonLead struct {
	CampaignID string
	Fields     map[string]any
}
