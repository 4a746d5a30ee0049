package cli

import (
	"context"
	"fmt"
	"log"
	"os"
)

// Chats lists the session's conversations with unread counters.
func (a *App) Chats(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first")
		return nil
	}

	chats, err := a.chat.ListChats(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	if len(chats) == 0 {
		printlnFn("No chats yet; use 'open' to start one")
		return nil
	}

	for _, c := range chats {
		name := c.PeerID
		if c.Peer != nil {
			name = c.Peer.Username
		}
		line := fmt.Sprintf("%s  %s", c.ChatID, name)
		if c.Unread > 0 {
			line = fmt.Sprintf("%s  (%d unread)", line, c.Unread)
		}
		printlnFn(line)
	}
	return nil
}

// Open prompts for a peer's username or email, opens (or finds) the chat
// with them, shows recent history and marks the chat read.
func (a *App) Open(ctx context.Context) error {
	if !a.isLoggedIn() {
		printlnFn("Log in first")
		return nil
	}

	peer, err := getSimpleText(a.reader, "Enter peer username or email", os.Stdout)
	if err != nil {
		return err
	}

	chat, err := a.chat.EnsureChat(ctx, peer)
	if err != nil {
		log.Println(err.Error())
		return err
	}
	a.active = chat

	if err := a.showHistory(ctx); err != nil {
		return err
	}
	if err := a.chat.MarkRead(chat.ChatID); err != nil {
		log.Println(err.Error())
	}
	return nil
}

// Send prompts for a message and sends it into the open chat.
func (a *App) Send(ctx context.Context) error {
	if !a.isLoggedIn() || a.active == nil {
		printlnFn("Open a chat first")
		return nil
	}

	text, err := getSimpleText(a.reader, "Message", os.Stdout)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	if err := a.chat.SendText(a.active, text); err != nil {
		log.Println(err.Error())
		return err
	}
	return nil
}

// History reprints the open chat's recent messages.
func (a *App) History(ctx context.Context) error {
	if !a.isLoggedIn() || a.active == nil {
		printlnFn("Open a chat first")
		return nil
	}
	return a.showHistory(ctx)
}

func (a *App) showHistory(ctx context.Context) error {
	msgs, err := a.chat.History(ctx, a.active.ChatID)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	for _, m := range msgs {
		who := m.SenderID
		if m.Mine {
			who = "me"
		} else if a.active.Peer != nil {
			who = a.active.Peer.Username
		}
		printlnFn(fmt.Sprintf("%s [%s] %s", m.SentAt.Local().Format("15:04"), who, m.Text))
	}
	return nil
}
