package cogtest

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/olympus-go/cogs/cog"
	"github.com/olympus-go/cogs/store"
)

const OwnerID = "owner"

func Handler() slog.Handler {
	return slog.NewTextHandler(io.Discard, nil)
}

// Deps returns plugin dependencies backed by a temporary sqlite store. Users whose id starts with "admin" hold the
// Administrator permission.
func Deps(t *testing.T) *cog.Deps {
	t.Helper()

	st, err := store.Open("sqlite", filepath.Join(t.TempDir(), "cogs.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	deps := &cog.Deps{
		Store:  st,
		Owners: []string{OwnerID},
		Prefix: "?",
		Permissions: func(userID string, _ string) (int64, error) {
			if strings.HasPrefix(userID, "admin") {
				return discordgo.PermissionAdministrator, nil
			}
			return 0, nil
		},
	}
	deps.Views = cog.NewViews(Handler(), deps.IsOwner)

	return deps
}
