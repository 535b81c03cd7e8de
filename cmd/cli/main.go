// Command grocerly is a command-line client for shared grocery lists.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/grocerly/internal/client"
	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/model"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Subject     string    `json:"subject,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "grocerly")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "grocerly")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func queuePath() string { return filepath.Join(cfgDir(), "queue.json") }

func cachePath(listID uuid.UUID) string {
	return filepath.Join(cfgDir(), "cache", listID.String()+".json")
}

func saveToken(tok string) (tokenFile, error) {
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser().ParseUnverified(tok, &claims)
	if err != nil {
		return tokenFile{}, fmt.Errorf("not a jwt: %w", err)
	}
	tf := tokenFile{AccessToken: tok, Subject: claims.Subject, ExpiresAt: time.Now().Add(24 * time.Hour)}
	if claims.ExpiresAt != nil {
		tf.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := writeJSON(tokenPath(), tf); err != nil {
		return tokenFile{}, err
	}
	return tf, nil
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", errors.New("no token saved (run: grocerly token)")
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("token expired (run: grocerly token)")
	}
	return tf.AccessToken, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// loadCache seeds st with the last known state of listID.
func loadCache(st *client.Store, listID uuid.UUID) {
	b, err := os.ReadFile(cachePath(listID))
	if err != nil {
		return
	}
	var c convert.ChangesDTO
	if json.Unmarshal(b, &c) != nil {
		return
	}
	ch := convert.FromChanges(c)
	st.Seed(listID, ch.ListRev, ch.Items)
}

func saveCache(st *client.Store, listID uuid.UUID) error {
	snap := st.Snapshot()
	ch := model.Changes{ListRev: snap.Revs[listID], Items: snap.Items[listID]}
	return writeJSON(cachePath(listID), convert.ToChanges(ch))
}

// ---- utils ----

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

const usageText = `grocerly CLI
Usage:
  grocerly [-api URL] [-docparser URL] [-timeout D] <cmd> [flags] [args]

Commands:
  version
  token     -secret S [-sub UUID] [-ttl D]     (issue and save a dev token)
  token     -set JWT                           (save an existing token)
  lists
  new       <name>
  rename    <list> <name>
  rm-list   <list>
  items     [-open] <list>
  add       [-c category] <list> <name>...
  check     <list> <item>
  edit      [-name N] [-c category] <list> <item>
  rm        <list> <item>
  share     [-role editor|viewer|owner] <list> <user>
  role      <list> <user> <role>
  unshare   <list> <user>
  members   <list>
  import    [-dry] <list> <file>               (docparser parse, then bulk add)
  sync                                         (replay offline queue)
  watch     <list>                             (print change events)
  tui       <list>

<item> is an item id or its exact name.
`

var errUsage = errors.New("usage")

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands; see run.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
