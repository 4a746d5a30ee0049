package repomanager

import (
	"context"
	"database/sql"

	"github.com/aturbins/hushwire/internal/dbx"
	"github.com/aturbins/hushwire/internal/server/repositories/chats"
	"github.com/aturbins/hushwire/internal/server/repositories/loginstates"
	"github.com/aturbins/hushwire/internal/server/repositories/messages"
	"github.com/aturbins/hushwire/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX so services can run
// several of them inside one transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	LoginStates(db dbx.DBTX) loginstates.Repository
	Chats(db dbx.DBTX) chats.Repository
	Messages(db dbx.DBTX) messages.Repository
}
