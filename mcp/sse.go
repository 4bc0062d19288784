// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"io"
	"iter"
)

// An event is a single Server-Sent Event, as written to or parsed from a
// text/event-stream response body (WHATWG HTML "Server-sent events").
type event struct {
	name string
	id   string
	data []byte
}

// writeEvent writes e in the text/event-stream wire format: an optional
// "event:" line, an optional "id:" line, one "data:" line per line of
// e.data, and a terminating blank line. It returns the number of bytes
// written.
func writeEvent(w io.Writer, e event) (int, error) {
	var buf bytes.Buffer
	if e.name != "" {
		buf.WriteString("event: ")
		buf.WriteString(e.name)
		buf.WriteByte('\n')
	}
	if e.id != "" {
		buf.WriteString("id: ")
		buf.WriteString(e.id)
		buf.WriteByte('\n')
	}
	for _, line := range bytes.Split(e.data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	n, err := w.Write(buf.Bytes())
	if err != nil {
		return n, err
	}
	if f, ok := w.(interface{ Flush() }); ok {
		f.Flush()
	}
	return n, nil
}

// scanEvents parses a text/event-stream body, yielding one event per
// blank-line-terminated record. Unrecognized field names are ignored, per
// the SSE spec. Iteration stops (with a final err of io.EOF) when r is
// exhausted.
func scanEvents(r io.Reader) iter.Seq2[event, error] {
	return func(yield func(event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		var cur event
		var data bytes.Buffer
		haveData := false

		flush := func() (event, bool) {
			if !haveData && cur.name == "" && cur.id == "" {
				return event{}, false
			}
			cur.data = bytes.Clone(bytes.TrimSuffix(data.Bytes(), []byte("\n")))
			e := cur
			cur = event{}
			data.Reset()
			haveData = false
			return e, true
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if e, ok := flush(); ok {
					if !yield(e, nil) {
						return
					}
				}
				continue
			}
			field, value, _ := bytes.Cut([]byte(line), []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				cur.name = string(value)
			case "id":
				cur.id = string(value)
			case "data":
				data.Write(value)
				data.WriteByte('\n')
				haveData = true
			}
		}
		if err := scanner.Err(); err != nil {
			yield(event{}, err)
			return
		}
		if e, ok := flush(); ok {
			if !yield(e, nil) {
				return
			}
		}
		yield(event{}, io.EOF)
	}
}
