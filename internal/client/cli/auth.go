package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aturbins/hushwire/internal/client/services"
	"github.com/aturbins/hushwire/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username, an email and a password and creates a
// new account. The password doubles as the key-wrapping secret, so it is
// collected once and wiped before returning.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if _, err := a.authService.Register(ctx, username, email, password); err != nil {
		log.Printf("Registration unsuccessful: %s", err.Error())
		return err
	}

	fmt.Println("Success! You can log in now.")
	return nil
}

// Login prompts for credentials, runs the login handshake and unlocks the
// key ring. On success it connects the realtime channel and starts the
// incoming message watcher.
func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	session, err := a.authService.Login(ctx, identifier, password)
	if err != nil {
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	chat := services.NewChatService(a.api, session)
	if err := chat.Connect(ctx); err != nil {
		session.Close()
		log.Printf("Login unsuccessful: %s", err.Error())
		return err
	}

	a.session = session
	a.chat = chat
	a.active = nil

	go a.StartIncomingWatcher(ctx, chat)

	log.Printf("Logged in as %s", session.Username)
	return nil
}

// Logout tears down the realtime connection, drops the server cookie and
// wipes the key ring.
func (a *App) Logout(ctx context.Context) error {
	if a.chat != nil {
		a.chat.Close()
		a.chat = nil
	}
	a.active = nil

	session := a.session
	a.session = nil

	if err := a.authService.Logout(ctx, session); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}
