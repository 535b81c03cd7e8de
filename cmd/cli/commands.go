package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/grocerly/internal/auth"
	"github.com/and161185/grocerly/internal/client"
	"github.com/and161185/grocerly/internal/convert"
	"github.com/and161185/grocerly/internal/errs"
	"github.com/and161185/grocerly/internal/extract"
	"github.com/and161185/grocerly/internal/model"
	"github.com/and161185/grocerly/internal/tui"
)

// Local defaults; they match the listen addresses the services use by default.
const (
	defaultAPI       = "http://localhost:8080"
	defaultDocParser = "http://localhost:8000"
)

// run parses global flags and executes one command.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	gf := flag.NewFlagSet("grocerly", flag.ContinueOnError)
	gf.SetOutput(io.Discard)
	apiURL := gf.String("api", envOr("GROCERLY_API", defaultAPI), "api base url")
	docURL := gf.String("docparser", envOr("GROCERLY_DOCPARSER", defaultDocParser), "document parser base url")
	timeout := gf.Duration("timeout", 30*time.Second, "request timeout")
	if err := gf.Parse(args); err != nil {
		return err
	}
	if gf.NArg() < 1 {
		return errUsage
	}
	cmd, rest := gf.Arg(0), gf.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "grocerly %s (%s)\n", version, buildDate)
		return nil
	case "token":
		return cmdToken(rest, stdout)
	}

	token, err := loadToken()
	if err != nil {
		return err
	}
	c := &cli{
		api: client.NewAPI(*apiURL, *docURL, token, &http.Client{Timeout: *timeout}),
		out: stdout,
	}

	switch cmd {
	case "watch":
		return c.watch(ctx, rest)
	case "tui":
		return c.tui(ctx, rest)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	switch cmd {
	case "lists":
		return c.lists(ctx)
	case "new":
		return c.newList(ctx, rest)
	case "rename":
		return c.rename(ctx, rest)
	case "rm-list":
		return c.rmList(ctx, rest)
	case "items":
		return c.items(ctx, rest)
	case "add":
		return c.add(ctx, rest)
	case "check":
		return c.check(ctx, rest)
	case "edit":
		return c.edit(ctx, rest)
	case "rm":
		return c.rm(ctx, rest)
	case "share":
		return c.share(ctx, rest)
	case "role":
		return c.role(ctx, rest)
	case "unshare":
		return c.unshare(ctx, rest)
	case "members":
		return c.members(ctx, rest)
	case "import":
		return c.importFile(ctx, rest)
	case "sync":
		return c.sync(ctx)
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func cmdToken(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	set := fs.String("set", "", "existing access token")
	secret := fs.String("secret", os.Getenv("JWT_SECRET"), "signing secret (dev servers)")
	sub := fs.String("sub", "", "user id; random when empty")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	tok := *set
	if tok == "" {
		if *secret == "" {
			return fmt.Errorf("%w: token needs -set or -secret", errUsage)
		}
		id := uuid.Must(uuid.NewV4())
		if *sub != "" {
			var err error
			if id, err = uuid.FromString(*sub); err != nil {
				return fmt.Errorf("bad -sub: %w", err)
			}
		}
		var err error
		if tok, err = auth.Issue([]byte(*secret), id, "", *ttl); err != nil {
			return err
		}
	}
	tf, err := saveToken(tok)
	if err != nil {
		return err
	}
	printJSON(stdout, map[string]any{"subject": tf.Subject, "expires_at": tf.ExpiresAt})
	return nil
}

type cli struct {
	api *client.API
	out io.Writer
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("%w: need %s", errUsage, what)
	}
	return nil
}

func parseID(kind, s string) (uuid.UUID, error) {
	id, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("bad %s id %q", kind, s)
	}
	return id, nil
}

// store opens the offline queue and a store seeded from the list cache.
func (c *cli) store(listID uuid.UUID) (*client.Store, error) {
	q, err := client.OpenQueue(queuePath())
	if err != nil {
		return nil, err
	}
	st := client.NewStore(c.api, q, nil)
	loadCache(st, listID)
	return st, nil
}

// withList reconciles listID, runs fn and persists the cache.
// When the server is unreachable fn runs against cached state.
func (c *cli) withList(ctx context.Context, listID uuid.UUID, fn func(*client.Store) error) error {
	st, err := c.store(listID)
	if err != nil {
		return err
	}
	if err := st.Reconcile(ctx, listID); err != nil {
		if !client.Transient(err) {
			return err
		}
		fmt.Fprintln(os.Stderr, "offline: using cached state")
	}
	ferr := fn(st)
	if err := saveCache(st, listID); err != nil {
		return errors.Join(ferr, err)
	}
	return ferr
}

func findItem(st *client.Store, listID uuid.UUID, ref string) (model.Item, error) {
	items := st.Items(listID)
	if id, err := uuid.FromString(ref); err == nil {
		for _, it := range items {
			if it.ID == id {
				return it, nil
			}
		}
		return model.Item{}, errs.ErrNotFound
	}
	var found []model.Item
	for _, it := range items {
		if strings.EqualFold(it.Name, ref) {
			found = append(found, it)
		}
	}
	switch len(found) {
	case 0:
		return model.Item{}, fmt.Errorf("item %q: %w", ref, errs.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return model.Item{}, fmt.Errorf("item %q is ambiguous (%d matches); use its id", ref, len(found))
}

// report prints v, noting when the write only reached the local queue.
func (c *cli) report(v any, err error) error {
	if errors.Is(err, client.ErrQueued) {
		printJSON(c.out, v)
		fmt.Fprintln(c.out, "queued for sync")
		return nil
	}
	if err != nil {
		return err
	}
	printJSON(c.out, v)
	return nil
}

func (c *cli) lists(ctx context.Context) error {
	lists, err := c.api.Lists(ctx)
	if err != nil {
		return err
	}
	printJSON(c.out, convert.ToLists(lists))
	return nil
}

func (c *cli) newList(ctx context.Context, args []string) error {
	if err := need(args, 1, "<name>"); err != nil {
		return err
	}
	l, err := c.api.CreateList(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printJSON(c.out, convert.ToList(*l))
	return nil
}

func (c *cli) rename(ctx context.Context, args []string) error {
	if err := need(args, 2, "<list> <name>"); err != nil {
		return err
	}
	id, err := parseID("list", args[0])
	if err != nil {
		return err
	}
	l, err := c.api.RenameList(ctx, id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	printJSON(c.out, convert.ToList(*l))
	return nil
}

func (c *cli) rmList(ctx context.Context, args []string) error {
	if err := need(args, 1, "<list>"); err != nil {
		return err
	}
	id, err := parseID("list", args[0])
	if err != nil {
		return err
	}
	if err := c.api.DeleteList(ctx, id); err != nil {
		return err
	}
	_ = os.Remove(cachePath(id))
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *cli) items(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("items", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	open := fs.Bool("open", false, "only unchecked items")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs.Args(), 1, "<list>"); err != nil {
		return err
	}
	id, err := parseID("list", fs.Arg(0))
	if err != nil {
		return err
	}
	return c.withList(ctx, id, func(st *client.Store) error {
		out := []model.Item{}
		for _, it := range st.Items(id) {
			if !*open || !it.Checked {
				out = append(out, it)
			}
		}
		printJSON(c.out, convert.ToItems(out))
		return nil
	})
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cat := fs.String("c", "", "category; guessed from the name when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs.Args(), 2, "<list> <name>..."); err != nil {
		return err
	}
	id, err := parseID("list", fs.Arg(0))
	if err != nil {
		return err
	}
	return c.withList(ctx, id, func(st *client.Store) error {
		var added []model.Item
		var queued error
		for _, name := range fs.Args()[1:] {
			category := extract.Category(name)
			if *cat != "" {
				category = cat
			}
			it, err := st.AddItem(ctx, id, name, category)
			switch {
			case errors.Is(err, client.ErrQueued):
				queued = err
			case err != nil:
				return fmt.Errorf("add %q: %w", name, err)
			}
			added = append(added, it)
		}
		return c.report(convert.ToItems(added), queued)
	})
}

func (c *cli) itemArgs(args []string) (uuid.UUID, string, error) {
	if err := need(args, 2, "<list> <item>"); err != nil {
		return uuid.Nil, "", err
	}
	id, err := parseID("list", args[0])
	return id, strings.Join(args[1:], " "), err
}

func (c *cli) check(ctx context.Context, args []string) error {
	listID, ref, err := c.itemArgs(args)
	if err != nil {
		return err
	}
	return c.withList(ctx, listID, func(st *client.Store) error {
		it, err := findItem(st, listID, ref)
		if err != nil {
			return err
		}
		got, err := st.Toggle(ctx, listID, it.ID)
		return c.report(convert.ToItem(got), err)
	})
}

func (c *cli) edit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "new name")
	cat := fs.String("c", "", "new category; \"-\" clears it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	listID, ref, err := c.itemArgs(fs.Args())
	if err != nil {
		return err
	}
	var p model.ItemPatch
	if *name != "" {
		p.Name = name
	}
	switch *cat {
	case "":
	case "-":
		empty := ""
		p.Category = &empty
	default:
		p.Category = cat
	}
	if p.Empty() {
		return fmt.Errorf("%w: edit needs -name or -c", errUsage)
	}
	return c.withList(ctx, listID, func(st *client.Store) error {
		it, err := findItem(st, listID, ref)
		if err != nil {
			return err
		}
		got, err := st.Update(ctx, listID, it.ID, p)
		return c.report(convert.ToItem(got), err)
	})
}

func (c *cli) rm(ctx context.Context, args []string) error {
	listID, ref, err := c.itemArgs(args)
	if err != nil {
		return err
	}
	return c.withList(ctx, listID, func(st *client.Store) error {
		it, err := findItem(st, listID, ref)
		if err != nil {
			return err
		}
		return c.report(map[string]string{"deleted": it.ID.String()}, st.Delete(ctx, listID, it.ID))
	})
}

func (c *cli) memberArgs(args []string, n int, what string) (uuid.UUID, uuid.UUID, error) {
	if err := need(args, n, what); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	listID, err := parseID("list", args[0])
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	userID, err := parseID("user", args[1])
	return listID, userID, err
}

func (c *cli) share(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	role := fs.String("role", string(model.RoleEditor), "member role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	listID, userID, err := c.memberArgs(fs.Args(), 2, "<list> <user>")
	if err != nil {
		return err
	}
	m, err := c.api.AddMember(ctx, listID, userID, model.Role(*role))
	if err != nil {
		return err
	}
	printJSON(c.out, convert.ToMember(*m))
	return nil
}

func (c *cli) role(ctx context.Context, args []string) error {
	listID, userID, err := c.memberArgs(args, 3, "<list> <user> <role>")
	if err != nil {
		return err
	}
	if err := c.api.SetRole(ctx, listID, userID, model.Role(args[2])); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *cli) unshare(ctx context.Context, args []string) error {
	listID, userID, err := c.memberArgs(args, 2, "<list> <user>")
	if err != nil {
		return err
	}
	if err := c.api.RemoveMember(ctx, listID, userID); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "ok")
	return nil
}

func (c *cli) members(ctx context.Context, args []string) error {
	if err := need(args, 1, "<list>"); err != nil {
		return err
	}
	id, err := parseID("list", args[0])
	if err != nil {
		return err
	}
	ms, err := c.api.Members(ctx, id)
	if err != nil {
		return err
	}
	printJSON(c.out, convert.ToMembers(ms))
	return nil
}

func (c *cli) importFile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dry := fs.Bool("dry", false, "print parsed items without adding them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs.Args(), 2, "<list> <file>"); err != nil {
		return err
	}
	listID, err := parseID("list", fs.Arg(0))
	if err != nil {
		return err
	}
	path := fs.Arg(1)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := c.api.ParseDocument(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), f)
	if err != nil {
		return err
	}
	if *dry || res.Count == 0 {
		printJSON(c.out, res.Items)
		return nil
	}
	in := make([]model.NewItem, len(res.Items))
	for i, p := range res.Items {
		in[i] = model.NewItem{ID: uuid.Must(uuid.NewV4()), Name: p.Name, Category: p.Category}
	}
	added, err := c.api.AddItems(ctx, listID, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "imported %d items from %s\n", len(added), res.Filename)
	return nil
}

func (c *cli) sync(ctx context.Context) error {
	q, err := client.OpenQueue(queuePath())
	if err != nil {
		return err
	}
	if q.Len() == 0 {
		fmt.Fprintln(c.out, "nothing to sync")
		return nil
	}
	err = client.NewStore(c.api, q, nil).ReconcileAll(ctx)
	fmt.Fprintf(c.out, "%d pending\n", q.Len())
	return err
}

func (c *cli) watch(ctx context.Context, args []string) error {
	if err := need(args, 1, "<list>"); err != nil {
		return err
	}
	id, err := parseID("list", args[0])
	if err != nil {
		return err
	}
	for {
		err := c.api.Events(ctx, id, func(ch model.Change) { printJSON(c.out, ch) })
		if ctx.Err() != nil {
			return nil
		}
		if !client.Transient(err) {
			return err
		}
		fmt.Fprintln(os.Stderr, "stream lost, reconnecting:", err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *cli) tui(ctx context.Context, args []string) error {
	if err := need(args, 1, "<list>"); err != nil {
		return err
	}
	id, err := parseID("list", args[0])
	if err != nil {
		return err
	}
	name := id.String()
	lctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if l, err := c.api.GetList(lctx, id); err == nil {
		name = l.Name
	}
	cancel()

	st, err := c.store(id)
	if err != nil {
		return err
	}
	err = tui.Run(ctx, st, id, name)
	return errors.Join(err, saveCache(st, id))
}
