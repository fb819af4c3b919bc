// ABOUTME: Turns successive conversation snapshots into terminal output lines
// ABOUTME: Prints new messages, typing changes and read receipts for the open conversation

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/chatsync/internal/chat"
	"github.com/2389/chatsync/internal/conversation"
)

var (
	incomingColor = color.New(color.FgCyan)
	outgoingColor = color.New(color.FgGreen)
	dimColor      = color.New(color.FgHiBlack)
	errorColor    = color.New(color.FgRed)
)

// renderer remembers the last snapshot it printed so each new snapshot only
// prints what changed.
type renderer struct {
	selfID string
	prev   conversation.State
}

// diff returns the lines describing what changed between the previous
// snapshot and next, then remembers next.
func (r *renderer) diff(next conversation.State) []string {
	prev := r.prev
	r.prev = next

	if next.Selected == nil {
		return nil
	}
	name := next.Selected.Name

	// A new selection or a history reload is printed by /history, not here.
	if prev.Selected == nil || prev.Selected.ID != next.Selected.ID || prev.MessagesLoading {
		return nil
	}

	var lines []string

	if len(next.Messages) > len(prev.Messages) {
		for _, m := range next.Messages[len(prev.Messages):] {
			lines = append(lines, r.formatMessage(m, name))
		}
	}

	for i := 0; i < min(len(prev.Messages), len(next.Messages)); i++ {
		was, is := prev.Messages[i], next.Messages[i]
		if was.ID == is.ID && !was.IsRead && is.IsRead && is.SenderID == r.selfID {
			lines = append(lines, dimColor.Sprintf("  ✓ read: %s", truncate(is.Content, 40)))
		}
	}

	wasTyping := slices.Contains(prev.TypingUsers, next.Selected.ID)
	isTyping := slices.Contains(next.TypingUsers, next.Selected.ID)
	switch {
	case isTyping && !wasTyping:
		lines = append(lines, dimColor.Sprintf("  %s is typing...", name))
	case wasTyping && !isTyping:
		lines = append(lines, dimColor.Sprintf("  %s stopped typing", name))
	}

	return lines
}

func (r *renderer) formatMessage(m chat.Message, counterpartName string) string {
	var b strings.Builder

	if m.SenderID == r.selfID {
		b.WriteString(outgoingColor.Sprint("→ you"))
	} else {
		b.WriteString(incomingColor.Sprintf("← %s", counterpartName))
	}
	b.WriteString(dimColor.Sprintf(" [%s]", shortID(m.ID)))
	b.WriteString(": ")
	b.WriteString(m.Content)

	for _, a := range m.Attachments {
		b.WriteString(dimColor.Sprintf(" [attachment %s]", a))
	}
	if m.IsRead && m.SenderID == r.selfID {
		b.WriteString(dimColor.Sprint(" ✓"))
	}
	return b.String()
}

// printHistory writes the full loaded conversation.
func (r *renderer) printHistory(s conversation.State) {
	if s.Selected == nil {
		fmt.Println("No conversation selected. Use /use <user_id> first.")
		return
	}
	if len(s.Messages) == 0 {
		fmt.Printf("No messages with %s yet\n", s.Selected.Name)
		return
	}

	fmt.Printf("Conversation with %s (%d messages):\n", s.Selected.Name, len(s.Messages))
	fmt.Println(strings.Repeat("-", 60))
	for _, m := range s.Messages {
		fmt.Println(r.formatMessage(m, s.Selected.Name))
	}
	fmt.Println(strings.Repeat("-", 60))
}

// shortID keeps message IDs readable in the terminal.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// consoleNotifier prints store failures to the terminal.
type consoleNotifier struct{}

func (consoleNotifier) NotifyError(msg string) {
	errorColor.Printf("[error] %s\n", msg)
}
