package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/leapstack-labs/leapview/pkg/core"
)

// UnknownKindError is returned when a message carries an unrecognised type tag.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown message type %q", e.Kind)
}

type tagged[T any] struct {
	Type Kind `json:"type"`
	Body T
}

// MarshalJSON writes the type tag next to the fields of Body.
func (t tagged[T]) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(t.Body)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(t.Type)
	if err != nil {
		return nil, err
	}
	if string(body) == "{}" {
		return []byte(`{"type":` + string(tag) + `}`), nil
	}
	return append([]byte(`{"type":`+string(tag)+`,`), body[1:]...), nil
}

// Successful pages always carry results, even when empty.
type firstPage struct {
	Success   bool          `json:"success"`
	Results   []core.Row    `json:"results"`
	Describe  []core.Column `json:"describe"`
	RequestID uint64        `json:"requestId,omitempty"`
}

type nextPage struct {
	Success   bool       `json:"success"`
	Results   []core.Row `json:"results"`
	RequestID uint64     `json:"requestId,omitempty"`
}

type failurePage struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID uint64 `json:"requestId,omitempty"`
}

type configBody struct {
	AutoQuery *bool `json:"autoQuery,omitempty"`
}

type empty struct{}

// EncodeFront serialises a renderer to backend message.
func EncodeFront(msg FrontMessage) ([]byte, error) {
	switch m := msg.(type) {
	case QueryRequest:
		return json.Marshal(tagged[QueryRequest]{m.Kind(), m})
	case MoreRequest:
		return json.Marshal(tagged[MoreRequest]{m.Kind(), m})
	case ConfigRequest:
		return json.Marshal(tagged[ConfigRequest]{m.Kind(), m})
	case ReloadRequest:
		return json.Marshal(tagged[empty]{m.Kind(), empty{}})
	case CopyRequest:
		return json.Marshal(tagged[CopyRequest]{m.Kind(), m})
	default:
		return nil, fmt.Errorf("cannot encode front message %T", msg)
	}
}

// DecodeFront parses a renderer to backend message.
func DecodeFront(data []byte) (FrontMessage, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch head.Type {
	case KindQuery:
		return decodeInto[QueryRequest](data)
	case KindMore:
		return decodeInto[MoreRequest](data)
	case KindConfig:
		return decodeInto[ConfigRequest](data)
	case KindReloadBaseView:
		return ReloadRequest{}, nil
	case KindCopy:
		return decodeInto[CopyRequest](data)
	default:
		return nil, &UnknownKindError{Kind: head.Type}
	}
}

// EncodeBack serialises a backend to renderer message.
func EncodeBack(msg BackMessage) ([]byte, error) {
	return json.Marshal(WireBack(msg))
}

// WireBack returns a JSON-marshalable value with the wire shape of msg.
func WireBack(msg BackMessage) json.Marshaler {
	switch m := msg.(type) {
	case QueryResult:
		if !m.Success {
			return tagged[failurePage]{m.Kind(), failurePage{Message: m.Message, RequestID: m.RequestID}}
		}
		return tagged[firstPage]{m.Kind(), firstPage{
			Success:   true,
			Results:   nonNilRows(m.Results),
			Describe:  nonNilColumns(m.Describe),
			RequestID: m.RequestID,
		}}
	case MoreResult:
		if !m.Success {
			return tagged[failurePage]{m.Kind(), failurePage{Message: m.Message, RequestID: m.RequestID}}
		}
		return tagged[nextPage]{m.Kind(), nextPage{
			Success:   true,
			Results:   nonNilRows(m.Results),
			RequestID: m.RequestID,
		}}
	case ConfigNotice:
		return tagged[configBody]{m.Kind(), configBody{AutoQuery: m.AutoQuery}}
	default:
		return tagged[empty]{msg.Kind(), empty{}}
	}
}

// DecodeBack parses a backend to renderer message.
func DecodeBack(data []byte) (BackMessage, error) {
	var wire struct {
		Type      Kind            `json:"type"`
		Success   bool            `json:"success"`
		Results   json.RawMessage `json:"results"`
		Describe  json.RawMessage `json:"describe"`
		Message   string          `json:"message"`
		AutoQuery *bool           `json:"autoQuery"`
		RequestID uint64          `json:"requestId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch wire.Type {
	case KindQuery:
		results, err := decodeOptional[[]core.Row](wire.Results)
		if err != nil {
			return nil, err
		}
		describe, err := decodeOptional[[]core.Column](wire.Describe)
		if err != nil {
			return nil, err
		}
		return QueryResult{
			Success:   wire.Success,
			Results:   results,
			Describe:  describe,
			Message:   wire.Message,
			RequestID: wire.RequestID,
		}, nil
	case KindMore:
		results, err := decodeOptional[[]core.Row](wire.Results)
		if err != nil {
			return nil, err
		}
		return MoreResult{
			Success:   wire.Success,
			Results:   results,
			Message:   wire.Message,
			RequestID: wire.RequestID,
		}, nil
	case KindConfig:
		return ConfigNotice{AutoQuery: wire.AutoQuery}, nil
	case KindReloadBaseView:
		return ReloadNotice{}, nil
	default:
		return nil, &UnknownKindError{Kind: wire.Type}
	}
}

func decodeInto[T FrontMessage](data []byte) (FrontMessage, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", msg.Kind(), err)
	}
	return msg, nil
}

// decodeOptional leaves the result nil when the field is absent or null.
func decodeOptional[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("invalid message payload: %w", err)
	}
	return v, nil
}

func nonNilRows(rows []core.Row) []core.Row {
	if rows == nil {
		return []core.Row{}
	}
	return rows
}

func nonNilColumns(cols []core.Column) []core.Column {
	if cols == nil {
		return []core.Column{}
	}
	return cols
}
