// Package protocol defines the messages exchanged between a renderer and the
// backend of a document session.
//
// Each direction is a closed sum type: FrontMessage for renderer to backend,
// BackMessage for backend to renderer. Every message is tagged by a "type"
// field on the wire.
package protocol

import "github.com/leapstack-labs/leapview/pkg/core"

// Kind is the wire tag of a message.
type Kind string

// Message kinds.
const (
	KindQuery          Kind = "query"
	KindMore           Kind = "more"
	KindConfig         Kind = "config"
	KindReloadBaseView Kind = "reloadBaseView"
	KindCopy           Kind = "copy"
)

// FrontMessage is a message sent from the renderer to the backend.
type FrontMessage interface {
	Kind() Kind
	frontMessage()
}

// BackMessage is a message sent from the backend to the renderer.
type BackMessage interface {
	Kind() Kind
	backMessage()
}

// QueryRequest asks for the first page of a fresh query.
type QueryRequest struct {
	SQL       string `json:"sql"`
	Limit     int    `json:"limit"`
	RequestID uint64 `json:"requestId,omitempty"`
}

// MoreRequest asks for the page of SQL starting at Offset.
// The cursor is tracked by the renderer; the backend keeps no paging state.
type MoreRequest struct {
	SQL       string `json:"sql"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	RequestID uint64 `json:"requestId,omitempty"`
}

// ConfigRequest pushes a new auto-query flag.
type ConfigRequest struct {
	AutoQuery bool `json:"autoQuery"`
}

// ReloadRequest asks the backend to rebuild the backing view.
type ReloadRequest struct{}

// CopyRequest asks the backend to copy the full query to the clipboard.
type CopyRequest struct {
	SQL string `json:"sql"`
}

func (QueryRequest) Kind() Kind  { return KindQuery }
func (MoreRequest) Kind() Kind   { return KindMore }
func (ConfigRequest) Kind() Kind { return KindConfig }
func (ReloadRequest) Kind() Kind { return KindReloadBaseView }
func (CopyRequest) Kind() Kind   { return KindCopy }

func (QueryRequest) frontMessage()  {}
func (MoreRequest) frontMessage()   {}
func (ConfigRequest) frontMessage() {}
func (ReloadRequest) frontMessage() {}
func (CopyRequest) frontMessage()   {}

// QueryResult answers a QueryRequest. On success it carries the first page
// and the column descriptors; on failure only Message is set.
type QueryResult struct {
	Success   bool
	Results   []core.Row
	Describe  []core.Column
	Message   string
	RequestID uint64
}

// MoreResult answers a MoreRequest. It never carries column descriptors.
type MoreResult struct {
	Success   bool
	Results   []core.Row
	Message   string
	RequestID uint64
}

// ConfigNotice tells the renderer the session's auto-query flag.
type ConfigNotice struct {
	AutoQuery *bool
}

// ReloadNotice tells the renderer that the backing view was rebuilt.
type ReloadNotice struct{}

func (QueryResult) Kind() Kind  { return KindQuery }
func (MoreResult) Kind() Kind   { return KindMore }
func (ConfigNotice) Kind() Kind { return KindConfig }
func (ReloadNotice) Kind() Kind { return KindReloadBaseView }

func (QueryResult) backMessage()  {}
func (MoreResult) backMessage()   {}
func (ConfigNotice) backMessage() {}
func (ReloadNotice) backMessage() {}

// QueryFailure builds a failed QueryResult carrying message verbatim.
func QueryFailure(message string, requestID uint64) QueryResult {
	return QueryResult{Message: message, RequestID: requestID}
}

// MoreFailure builds a failed MoreResult carrying message verbatim.
func MoreFailure(message string, requestID uint64) MoreResult {
	return MoreResult{Message: message, RequestID: requestID}
}

// NewConfigNotice builds a ConfigNotice for autoQuery.
func NewConfigNotice(autoQuery bool) ConfigNotice {
	return ConfigNotice{AutoQuery: &autoQuery}
}
