package cli

import (
	"bufio"
	"context"
	"log"
	"os"

	"github.com/aturbins/hushwire/internal/client/api"
	"github.com/aturbins/hushwire/internal/client/config"
	"github.com/aturbins/hushwire/internal/client/realtime"
	"github.com/aturbins/hushwire/internal/client/services"
)

// App holds the client state for one REPL run: the API client, the auth
// service, and after login the session with its unlocked key ring, the chat
// service, and the currently opened chat.
type App struct {
	config      *config.Config
	api         *api.Client
	authService *services.AuthService

	session *services.Session
	chat    *services.ChatService
	active  *api.Chat

	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	apiClient := api.NewClient(c.ServerAddr, c.RequestTimeout)
	as := services.NewAuthService(apiClient)

	return &App{
		config:      c,
		api:         apiClient,
		authService: as,
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.close()

	log.Println("Welcome to Hushwire CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

func (a *App) getStatus() string {
	s := ""
	if a.session != nil {
		s = a.session.Username
	}
	if a.active != nil && a.active.Peer != nil {
		s = s + " @" + a.active.Peer.Username
	}
	if s != "" {
		s = "(" + s + ")"
	}
	return s
}

// StartIncomingWatcher drains realtime events until the connection or the
// context goes away, printing decrypted incoming messages as they arrive.
// Messages for the currently open chat are acknowledged as read.
func (a *App) StartIncomingWatcher(ctx context.Context, chat *services.ChatService) {
	events := chat.Events()
	if events == nil {
		return
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				log.Println("Realtime connection closed")
				return
			}
			a.handleEvent(chat, ev)

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) handleEvent(chat *services.ChatService, ev *realtime.Event) {
	switch ev.Type {
	case realtime.EventMessageReceived:
		pm, err := chat.Decrypt(ev.Message)
		if err != nil {
			printlnFn("[" + ev.Message.SenderID + "] (message unavailable)")
			return
		}
		printlnFn("[" + pm.SenderID + "] " + pm.Text)
		if a.active != nil && a.active.ChatID == pm.ChatID {
			_ = chat.MarkRead(pm.ChatID)
		}

	case realtime.EventError:
		log.Printf("Server rejected an operation: %s", ev.Reason)
	}
}

func (a *App) close() {
	if a.chat != nil {
		a.chat.Close()
	}
	if a.session != nil {
		a.session.Close()
	}
}
