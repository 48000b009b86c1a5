package mailbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/entity"
)

const emlExt = ".eml"

// Dir serves messages stored as <root>/<userID>/<id>.eml files.
type Dir struct {
	root   string
	logger *slog.Logger
}

func NewDir(root string, logger *slog.Logger) *Dir {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dir{root: root, logger: logger}
}

func (d *Dir) userDir(userID string) (string, error) {
	if !validName(userID) {
		return "", common.NewAppError("INVALID_INPUT", fmt.Sprintf("invalid user id %q", userID), common.ErrInvalidInput)
	}
	return filepath.Join(d.root, userID), nil
}

func (d *Dir) List(ctx context.Context, userID string, since time.Time) ([]entity.MessageRef, error) {
	dir, err := d.userDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			d.logger.Warn("mailbox.list.missing_dir", "user_id", userID, "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read mailbox dir: %w", err)
	}

	var refs []entity.MessageRef
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), emlExt) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		received, err := receivedAt(path)
		if err != nil {
			d.logger.Warn("mailbox.list.skip", "path", path, "error", err)
			continue
		}
		if !since.IsZero() && received.Before(since) {
			continue
		}
		refs = append(refs, entity.MessageRef{ID: strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())), ReceivedAt: received})
	}

	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].ReceivedAt.Equal(refs[j].ReceivedAt) {
			return refs[i].ID < refs[j].ID
		}
		return refs[i].ReceivedAt.After(refs[j].ReceivedAt)
	})
	d.logger.Debug("mailbox.list.ok", "user_id", userID, "count", len(refs))
	return refs, nil
}

func (d *Dir) Fetch(ctx context.Context, userID, id string) (entity.RawEmailMessage, error) {
	if err := ctx.Err(); err != nil {
		return entity.RawEmailMessage{}, err
	}
	dir, err := d.userDir(userID)
	if err != nil {
		return entity.RawEmailMessage{}, err
	}
	if !validName(id) {
		return entity.RawEmailMessage{}, common.NewAppError("INVALID_INPUT", fmt.Sprintf("invalid message id %q", id), common.ErrInvalidInput)
	}
	path := filepath.Join(dir, id+emlExt)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return entity.RawEmailMessage{}, common.NewAppError("NOT_FOUND", "message not found: "+id, common.ErrNotFound)
		}
		return entity.RawEmailMessage{}, fmt.Errorf("open message: %w", err)
	}
	defer f.Close()

	msg, err := Parse(f, id)
	if err != nil {
		return msg, fmt.Errorf("parse %s: %w", path, err)
	}
	if msg.ReceivedAt.IsZero() {
		if st, err := f.Stat(); err == nil {
			msg.ReceivedAt = st.ModTime().UTC()
		}
	}
	return msg, nil
}

// receivedAt reads only the header block; files without a Date header fall
// back to their modification time.
func receivedAt(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err == nil {
		if date, err := mr.Header.Date(); err == nil && !date.IsZero() {
			return date.UTC(), nil
		}
	}
	st, err := f.Stat()
	if err != nil {
		return time.Time{}, err
	}
	return st.ModTime().UTC(), nil
}

func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// Users lists the user directories under the root.
func (d *Dir) Users(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read mailbox root: %w", err)
	}
	var users []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			users = append(users, e.Name())
		}
	}
	sort.Strings(users)
	return users, ctx.Err()
}
