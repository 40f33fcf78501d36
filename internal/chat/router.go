package chat

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/zulandar/shiftlog/internal/report"
)

// Router classifies inbound chat messages and routes them to the report
// controller: slash commands, photos, or free text for the current step.
type Router struct {
	ctrl      *report.Controller
	store     *SessionStore
	adapter   Adapter
	fetcher   FileFetcher
	botUserID string // the bot's own user ID (to filter self-messages)
	counter   InboundCounter
	out       io.Writer
}

// InboundCounter is notified of every non-self inbound message. kind is
// "command", "photo" or "text".
type InboundCounter interface {
	InboundMessage(platform, kind string)
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Controller *report.Controller
	Store      *SessionStore
	Adapter    Adapter
	BotUserID  string         // bot's user ID for self-message filtering
	Counter    InboundCounter // optional
	Out        io.Writer      // defaults to os.Stdout
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Controller == nil {
		return nil, fmt.Errorf("chat: router: controller is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("chat: router: session store is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("chat: router: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	fetcher, _ := opts.Adapter.(FileFetcher)
	return &Router{
		ctrl:      opts.Controller,
		store:     opts.Store,
		adapter:   opts.Adapter,
		fetcher:   fetcher,
		botUserID: opts.BotUserID,
		counter:   opts.Counter,
		out:       out,
	}, nil
}

// Handle classifies and routes a single inbound message. Routing paths:
//  1. Bot self-message → ignore
//  2. Slash command → start, report, cancel or help; unknown ones are ignored
//  3. Photo → current photo step
//  4. Text → current text step
//
// A panic while handling resets the user's conversation and sends the
// generic error reply.
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.isSelfMessage(msg) {
		return
	}

	key := SessionKey(msg)
	text := strings.TrimSpace(msg.Text)
	fmt.Fprintf(r.out, "chat: router: recv [%s user=%s photo=%t] %q\n",
		key, msg.UserName, msg.Photo != nil, truncate(text, 80))

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("chat: router: panic handling %s: %v", key, rec)
			if conv := r.store.Remove(key); conv != nil {
				r.ctrl.Expire(ctx, conv)
			}
			r.send(ctx, msg.ChannelID, []report.Reply{{Text: report.UnexpectedErrorText, RemoveKeyboard: true}})
		}
	}()

	conv := r.store.Acquire(key)
	defer r.store.Release(key)
	conv.Owner = report.Owner{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		UserName:  msg.UserName,
	}

	var replies []report.Reply
	if cmd, ok := ParseCommand(text); ok && msg.Photo == nil {
		r.count(msg.Platform, "command")
		fmt.Fprintf(r.out, "chat: router: → command %s\n", cmd)
		switch cmd {
		case CmdStart:
			replies = r.ctrl.Welcome(msg.UserName)
		case CmdReport:
			replies = r.ctrl.Start(ctx, conv)
		case CmdCancel:
			replies = r.ctrl.Cancel(ctx, conv)
		case CmdHelp:
			replies = r.ctrl.Help()
		}
	} else if msg.Photo == nil && LooksLikeCommand(text) {
		r.count(msg.Platform, "command")
		fmt.Fprintf(r.out, "chat: router: → ignore unknown command %q\n", truncate(text, 40))
		return
	} else if msg.Photo != nil {
		r.count(msg.Platform, "photo")
		replies = r.ctrl.Photo(ctx, conv, report.PhotoInput{
			FileRef: msg.Photo.FileRef,
			Fetcher: r.fetcher,
		})
	} else {
		r.count(msg.Platform, "text")
		replies = r.ctrl.Text(ctx, conv, msg.Text)
	}

	if replies == nil {
		fmt.Fprintf(r.out, "chat: router: → ignore (step %s)\n", conv.Step)
		return
	}
	r.send(ctx, msg.ChannelID, replies)
}

// send delivers replies in order. A failed send is logged and the rest are
// still attempted.
func (r *Router) send(ctx context.Context, channelID string, replies []report.Reply) {
	for _, rep := range replies {
		if err := r.adapter.Send(ctx, OutboundMessage{
			ChannelID:      channelID,
			Text:           rep.Text,
			Keyboard:       rep.Keyboard,
			RemoveKeyboard: rep.RemoveKeyboard,
		}); err != nil {
			log.Printf("chat: router: send reply to %s: %v", channelID, err)
		}
	}
}

func (r *Router) count(platform, kind string) {
	if r.counter != nil {
		r.counter.InboundMessage(platform, kind)
	}
}

// isSelfMessage returns true if the message is from the bot itself.
func (r *Router) isSelfMessage(msg InboundMessage) bool {
	return r.botUserID != "" && msg.UserID == r.botUserID
}

// truncate returns s cut to at most maxLen runes with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
