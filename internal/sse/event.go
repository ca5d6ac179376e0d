// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"strings"
)

// FormatEvent formats a message as an SSE event with optional event name.
// Multiline content is properly prefixed with "data:".
func FormatEvent(eventName, data string) string {
	var sb strings.Builder

	if eventName != "" {
		sb.WriteString("event: ")
		sb.WriteString(eventName)
		sb.WriteString("\n")
	}

	for line := range strings.SplitSeq(data, "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n") // Empty line marks end of event
	return sb.String()
}

// Heartbeat is an SSE comment that keeps the connection alive.
// Comments (lines starting with :) are ignored by SSE clients.
const Heartbeat = ": heartbeat\n\n"
