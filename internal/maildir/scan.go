package maildir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dashstat/internal/mailbox"
)

// ErrRootMissing is returned by CheckRoot when the Maildir root is absent.
var ErrRootMissing = errors.New("maildir root does not exist")

// DefaultUnreadDir is the Maildir subdirectory holding undelivered-to-client mail.
const DefaultUnreadDir = "new"

// Scanner counts unread messages in a Maildir tree. Every immediate
// subdirectory of Root is a mailbox; its unread count is the number of
// regular files anywhere under <mailbox>/<UnreadDir>.
type Scanner struct {
	Root      string
	UnreadDir string
	Preview   bool
}

func NewScanner(root string, preview bool) *Scanner {
	return &Scanner{Root: root, UnreadDir: DefaultUnreadDir, Preview: preview}
}

// Mailboxes rescans the tree from scratch. Mailboxes without an unread
// subtree are skipped. The result is sorted by name.
func (s *Scanner) Mailboxes(ctx context.Context) ([]mailbox.Status, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("read maildir %s: %w", s.Root, err)
	}

	unreadDir := s.UnreadDir
	if unreadDir == "" {
		unreadDir = DefaultUnreadDir
	}

	statuses := make([]mailbox.Status, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		child := filepath.Join(s.Root, entry.Name())
		if !isDir(child) {
			continue
		}
		newDir := filepath.Join(child, unreadDir)
		if !isDir(newDir) {
			continue
		}

		count, newest, err := countFiles(newDir)
		if err != nil {
			return nil, fmt.Errorf("count unread in %s: %w", entry.Name(), err)
		}

		status := mailbox.Status{Name: entry.Name(), Unread: count}
		if s.Preview && newest != "" {
			status.Latest = previewMessage(newest)
		}
		statuses = append(statuses, status)
	}

	mailbox.SortByName(statuses)
	return statuses, nil
}

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootMissing, root)
	}
	if err != nil {
		return fmt.Errorf("stat maildir %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("maildir root %s is not a directory", root)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// countFiles walks dir and returns the number of regular files below it
// along with the path of the most recently modified one. Files removed while
// the walk is in progress are ignored; mail clients move messages out of
// new/ all the time.
func countFiles(dir string) (int, string, error) {
	var (
		count      int
		newest     string
		newestTime time.Time
	)

	// WalkDir does not descend into a symlinked root.
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return 0, "", err
	}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != root && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		count++
		if newest == "" || info.ModTime().After(newestTime) {
			newest = path
			newestTime = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return count, newest, nil
}
