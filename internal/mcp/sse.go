package mcp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// sseMessage extracts the JSON-RPC response for id from a buffered
// text/event-stream body. Data lines of one event are joined with "\n".
// The event whose id matches wins; failing that, the last event that
// carried data. It returns nil when the stream holds no data.
func sseMessage(body []byte, id int64) []byte {
	want := strconv.FormatInt(id, 10)

	var last []byte
	var data []string
	flush := func() bool {
		if len(data) == 0 {
			return false
		}
		msg := []byte(strings.Join(data, "\n"))
		data = data[:0]
		last = msg

		var head struct {
			ID json.RawMessage `json:"id"`
		}
		return json.Unmarshal(msg, &head) == nil && string(bytes.TrimSpace(head.ID)) == want
	}

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), max(64*1024, len(body)+1))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if flush() {
				return last
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	flush()
	return last
}
