package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// TokenIssuer signs bearer tokens. *shared.TokenManager satisfies it.
type TokenIssuer interface {
	Issue(actor shared.Actor, ttl time.Duration) (string, error)
}

// TokenOptions defines the flags of the token command.
type TokenOptions struct {
	UserID   int64
	Name     string
	Email    string
	Role     string
	SectorID int64
	TTL      time.Duration
	Stdout   io.Writer
	Stderr   io.Writer
}

// TokenCommand prints a signed bearer token for local use and returns the
// process exit code.
func TokenCommand(issuer TokenIssuer, opts TokenOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.UserID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "token: --user is required and must be positive")
		return 1
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	actor := shared.Actor{
		ID:       opts.UserID,
		Name:     opts.Name,
		Email:    opts.Email,
		Role:     shared.ParseRole(opts.Role),
		SectorID: opts.SectorID,
	}
	token, err := issuer.Issue(actor, opts.TTL)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "token: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(opts.Stdout, token)
	return 0
}
