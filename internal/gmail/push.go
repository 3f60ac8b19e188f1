package gmail

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPush = errors.New("invalid push notification")

// PubSubMessage is the envelope Pub/Sub posts to push endpoints.
type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushNotification is the Gmail payload carried in the envelope data.
type PushNotification struct {
	EmailAddress string
	HistoryID    uint64
}

// UnmarshalJSON accepts historyId as a JSON number or a numeric string.
func (p *PushNotification) UnmarshalJSON(data []byte) error {
	var raw struct {
		EmailAddress string      `json:"emailAddress"`
		HistoryID    json.Number `json:"historyId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.EmailAddress = raw.EmailAddress
	p.HistoryID = 0
	if raw.HistoryID != "" {
		id, err := strconv.ParseUint(raw.HistoryID.String(), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid historyId %q", raw.HistoryID)
		}
		p.HistoryID = id
	}
	return nil
}

// DecodePushNotification unwraps a Pub/Sub push body into the Gmail notification.
func DecodePushNotification(body []byte) (*PushNotification, error) {
	var envelope PubSubMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPush, err)
	}
	if envelope.Message.Data == "" {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidPush)
	}

	data, err := decodeBase64(envelope.Message.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPush, err)
	}

	var notification PushNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPush, err)
	}
	notification.EmailAddress = strings.TrimSpace(notification.EmailAddress)
	if notification.EmailAddress == "" {
		return nil, fmt.Errorf("%w: missing emailAddress", ErrInvalidPush)
	}
	return &notification, nil
}

func decodeBase64(s string) ([]byte, error) {
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
