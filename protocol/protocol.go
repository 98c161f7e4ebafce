// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package protocol defines the request and response messages exchanged with
// grid nodes. Messages are portable objects with reserved negative type ids,
// so user types must register non-conflicting ids.
package protocol

import (
	"fmt"

	"github.com/luxfi/gridclient/portable"
)

// Reserved type ids.
const (
	CacheRequestTypeID int32 = -1001
	TaskRequestTypeID  int32 = -1002
	ResponseTypeID     int32 = -1003
)

// Method names routed by the transport.
const (
	MethodCache = "cache"
	MethodTask  = "task"
)

// Op is a cache operation.
type Op string

const (
	OpPut    Op = "put"
	OpGet    Op = "get"
	OpRemove Op = "remove"
)

// Status is the outcome of a request.
type Status int32

const (
	StatusOK Status = iota
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// RegisterTypes registers the message types in reg. It may be called more
// than once.
func RegisterTypes(reg *portable.Registry) error {
	if err := portable.Register[CacheRequest](reg, CacheRequestTypeID); err != nil {
		return err
	}
	if err := portable.Register[TaskRequest](reg, TaskRequestTypeID); err != nil {
		return err
	}
	return portable.Register[Response](reg, ResponseTypeID)
}

// CacheRequest asks a node to operate on one entry of a named cache.
// AffinityKey is set when the entry is collocated by a key other than Key;
// the entry is still identified by Key alone.
type CacheRequest struct {
	Op          Op
	Cache       string
	Key         any
	AffinityKey any
	Value       any
}

func (*CacheRequest) TypeID() int32 { return CacheRequestTypeID }

func (c *CacheRequest) WritePortable(w *portable.Writer) error {
	if err := w.WriteString("op", string(c.Op)); err != nil {
		return err
	}
	if err := w.WriteString("cache", c.Cache); err != nil {
		return err
	}
	if err := w.WriteObject("key", c.Key); err != nil {
		return err
	}
	if err := w.WriteObject("affinityKey", c.AffinityKey); err != nil {
		return err
	}
	return w.WriteObject("value", c.Value)
}

func (c *CacheRequest) ReadPortable(r *portable.Reader) error {
	op, err := r.ReadString("op")
	if err != nil {
		return err
	}
	if c.Cache, err = r.ReadString("cache"); err != nil {
		return err
	}
	if c.Key, err = r.ReadObject("key"); err != nil {
		return err
	}
	if c.AffinityKey, err = r.ReadObject("affinityKey"); err != nil {
		return err
	}
	if c.Value, err = r.ReadObject("value"); err != nil {
		return err
	}
	c.Op = Op(op)
	return nil
}

func (c *CacheRequest) HashCode() int32 { return portable.StringHash(c.Cache) }

func (c *CacheRequest) Equals(other portable.Portable) bool {
	o, ok := other.(*CacheRequest)
	return ok && o == c
}

// TaskRequest asks a node to run a named task. AffinityKey is informational
// for the node; routing already happened on the client.
type TaskRequest struct {
	Task        string
	Cache       string
	AffinityKey any
	Arg         any
}

func (*TaskRequest) TypeID() int32 { return TaskRequestTypeID }

func (t *TaskRequest) WritePortable(w *portable.Writer) error {
	if err := w.WriteString("task", t.Task); err != nil {
		return err
	}
	if err := w.WriteString("cache", t.Cache); err != nil {
		return err
	}
	if err := w.WriteObject("affinityKey", t.AffinityKey); err != nil {
		return err
	}
	return w.WriteObject("arg", t.Arg)
}

func (t *TaskRequest) ReadPortable(r *portable.Reader) error {
	var err error
	if t.Task, err = r.ReadString("task"); err != nil {
		return err
	}
	if t.Cache, err = r.ReadString("cache"); err != nil {
		return err
	}
	if t.AffinityKey, err = r.ReadObject("affinityKey"); err != nil {
		return err
	}
	t.Arg, err = r.ReadObject("arg")
	return err
}

func (t *TaskRequest) HashCode() int32 { return portable.StringHash(t.Task) }

func (t *TaskRequest) Equals(other portable.Portable) bool {
	o, ok := other.(*TaskRequest)
	return ok && o == t
}

// Response carries the result of a request, or the error text of a failed
// one.
type Response struct {
	Status Status
	Error  string
	Result any
}

// OK returns a successful response.
func OK(result any) *Response {
	return &Response{Status: StatusOK, Result: result}
}

// Failed returns an error response.
func Failed(err error) *Response {
	return &Response{Status: StatusError, Error: err.Error()}
}

func (*Response) TypeID() int32 { return ResponseTypeID }

func (r *Response) WritePortable(w *portable.Writer) error {
	if err := w.WriteInt32("status", int32(r.Status)); err != nil {
		return err
	}
	if err := w.WriteString("error", r.Error); err != nil {
		return err
	}
	return w.WriteObject("result", r.Result)
}

func (r *Response) ReadPortable(rd *portable.Reader) error {
	status, err := rd.ReadInt32("status")
	if err != nil {
		return err
	}
	if r.Error, err = rd.ReadString("error"); err != nil {
		return err
	}
	if r.Result, err = rd.ReadObject("result"); err != nil {
		return err
	}
	r.Status = Status(status)
	return nil
}

func (r *Response) HashCode() int32 { return int32(r.Status) }

func (r *Response) Equals(other portable.Portable) bool {
	o, ok := other.(*Response)
	return ok && o == r
}
